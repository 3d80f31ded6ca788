// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides abstractions for the model services furrow depends on.
//
// Two capabilities are required: turning text into vectors (Embedder) and
// turning a prompt into a stream of text (Completer). AIProvider bundles both
// so a single configuration drives them.
//
// # Implementation Packages
//
//   - ai/ollama: native Ollama API, the default backend
//   - ai/openai: any OpenAI-compatible API
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors of the implementation packages return interface types.
// Mock constructors return concrete types so tests can inject behavior and
// read call counts.
//
// # Resilience
//
// Config.WrapEmbedder adds request pacing (golang.org/x/time/rate) and
// Config.WrapCompleter adds a circuit breaker (sony/gobreaker). Providers
// apply both according to their configuration.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithGenerationModel("llama3.2:3b"))
//	provider, err := ollama.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "soil nitrogen")
//	err = provider.Completer().Stream(ctx, prompt, func(ctx context.Context, chunk []byte) error {
//	    fmt.Print(string(chunk))
//	    return nil
//	})
package ai
