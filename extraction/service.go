package extraction

import (
	"context"
	"strings"
)

// JobStatus is the service-side state of a job.
type JobStatus string

const (
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusSucceeded  JobStatus = "SUCCEEDED"
	StatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the job has ended.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Block types emitted by the service.
const (
	BlockPage = "PAGE"
	BlockLine = "LINE"
)

// Block is one detected element of a document.
type Block struct {
	BlockType string `json:"BlockType"`
	ID        string `json:"Id,omitempty"`
	Page      int    `json:"Page,omitempty"`
	Text      string `json:"Text,omitempty"`
}

// ResultPage is one cursor page of a job's result.
type ResultPage struct {
	JobStatus     JobStatus `json:"JobStatus"`
	StatusMessage string    `json:"StatusMessage,omitempty"`
	Blocks        []Block   `json:"Blocks"`
	NextToken     string    `json:"NextToken,omitempty"`
}

// Result is the consolidated extraction artifact written under raw_json/.
type Result struct {
	JobID  string       `json:"JobId"`
	Status JobStatus    `json:"Status"`
	Pages  []ResultPage `json:"Pages"`
}

// Text joins the LINE blocks of every page in order, one line per block.
func (r *Result) Text() string {
	var b strings.Builder
	for _, page := range r.Pages {
		for _, block := range page.Blocks {
			if block.BlockType == BlockLine {
				b.WriteString(block.Text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// StartRequest starts a job over one stored object.
type StartRequest struct {
	Bucket string
	Key    string
	// ClientRequestToken makes StartJob idempotent: a repeated token returns
	// the job started first.
	ClientRequestToken string
	// NotificationChannel receives the notify.JobCompletion.
	NotificationChannel string
}

// Service is an asynchronous text-extraction service.
type Service interface {
	StartJob(ctx context.Context, req StartRequest) (string, error)

	// GetJobResult returns the result page at cursor; "" is the first page.
	GetJobResult(ctx context.Context, jobID, cursor string) (*ResultPage, error)
}
