// Package extraction defines the contract of the asynchronous text-extraction
// service.
//
// A job is started with StartJob, which returns immediately. When the job
// ends the service publishes a notify.JobCompletion on the channel named in
// the request. Results are fetched page by page with GetJobResult; pages must
// be consumed in cursor order because the service does not promise page-number
// order.
//
// The extraction/local package runs jobs in-process for PDFs.
package extraction
