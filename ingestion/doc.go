// Package ingestion provides pipeline orchestration for turning source
// documents into indexed chunks.
//
// The Pipeline type runs each document through these stages in order:
//   - Extracting raw text from the PDF bytes
//   - Cleaning the text into canonical form
//   - Splitting it into deduplicated chunks
//   - Embedding and storing the chunks in the vector store
//
// The document is added to the catalog only after every batch committed.
package ingestion
