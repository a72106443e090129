// Package reembed rewrites the vectors of stored chunk rows with the
// currently configured embedding model.
//
// Rows embedded by a different model have a different dimension and are
// skipped by the retriever; running a re-embed over a granularity store makes
// them searchable again. Rows are read in pages, embedded in batches with
// retry and exponential backoff, and written back under the same
// (id, filename) key, so an interrupted run can simply be repeated.
package reembed
