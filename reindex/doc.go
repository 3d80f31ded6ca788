// Package reindex rebuilds the vectors of a collection with a different
// embedding model.
// Each document's chunks are embedded again in batches, with retry and
// exponential backoff, and only then is the document's old record set deleted
// and replaced. A document whose embedding fails keeps its previous vectors
// and stops the run. When every document succeeds the collection descriptor
// is switched to the new model and dimension.
package reindex
