// Package deletion removes a document and everything derived from it.
//
// Delete checks that the caller belongs to the document's group and starts
// the delete-document workflow, which removes in order:
//
//   - the uploaded object under raw_docs/
//   - the intermediate artifacts of the current processing run
//   - every chunk object under rag/<group>/<filename>/
//   - the chunk rows in the small and large stores
//   - the DocumentRecord
//
// Every step tolerates objects and rows that are already gone, so a failed
// execution can be resumed or the whole deletion repeated.
package deletion
