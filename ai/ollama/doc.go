// Package ollama provides AI service implementations on the native Ollama API.
//
// It is the default backend: generation defaults to llama3.2:3b and
// embeddings to embeddinggemma, both served from http://localhost:11434.
// Sampling settings from ai.GenerationOptions, including the context window
// and repeat penalty, are passed to the server on every request.
package ollama
