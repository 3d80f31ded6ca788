// Package generation turns retrieved chunks and a question into a streamed
// answer from a language model.
//
// A Generator builds a grounded prompt from the ranked context and forwards
// backend increments to a Stream as they arrive. No retry is attempted: a
// backend failure, panic or timeout ends the stream with a final token
// carrying a failure marker and an error wrapping core.ErrGenerationStream.
package generation
