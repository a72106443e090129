// Package ingestion turns uploaded documents into indexed chunk rows.
//
// A document travels through stages chained by the workflow engine. Every
// stage reads its input from the object store and writes its output back,
// so any stage can be replayed from the artifact key in its payload:
//
//	raw_docs/<group>/<filename>
//	  -> raw_json/<group>/<pid>_<filename>_textract.json   (extraction job)
//	  -> pages/<group>/<pid>_<filename>_page_<nnnn>.pdf     (split)
//	  -> pages_processed/<group>/<pid>_<filename>_page_<nnnn>.txt
//	  -> raw_text/<group>/<pid>_<filename>_raw[_llm].txt
//	  -> rag/<group>/<filename>/<source>/chunks<size>/chunk<i>
//	  -> chunk rows in the small and large stores
//
// Intake registers the DocumentRecord and picks the path: plain text goes
// straight to chunking, other documents get an asynchronous extraction job
// and PDFs also take the generative path (split, per-page model extraction,
// consolidation). The extraction job reports back on a completion channel;
// Pipeline.Subscribe feeds those notifications into the
// extraction-completed workflow.
//
// Failures are classified with the core error kinds. Only transient errors
// are retried by the engine; a partial failure of page extraction or
// indexing leaves the finished siblings in place so resuming the execution
// completes the document.
package ingestion
