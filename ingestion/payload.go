package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
	"github.com/poiesic/ragline/workflow"
)

// Payload field names shared by the ingestion workflows.
const (
	fieldGroup        = "group"
	fieldProcessingID = "processing_id"
	fieldFilename     = "filename"
	fieldSource       = "source"
	fieldCounts       = "counts"
	fieldJobID        = "job_id"
	fieldJobStatus    = "job_status"
	fieldToken        = "token"
	fieldBucket       = "bucket"
	fieldKey          = "key"
	fieldEvent        = "event_id"
	fieldExecution    = "execution"
	fieldDuplicate    = "duplicate"
)

// ExecutionOf returns the id of the execution an intake result started, or
// "" when the document was a duplicate.
func ExecutionOf(r workflow.Result) string { return r.Field(fieldExecution) }

// ProcessingIDOf returns the processing id an intake result assigned.
func ProcessingIDOf(r workflow.Result) string { return r.Field(fieldProcessingID) }

// Starter starts workflow executions. *workflow.Engine implements it.
type Starter interface {
	Start(ctx context.Context, name string, input workflow.Result) (string, error)
}

// withRef attaches an artifact reference to a result.
func withRef(r workflow.Result, ref core.ArtifactRef) workflow.Result {
	return r.With(fieldGroup, ref.Group).
		With(fieldProcessingID, ref.ProcessingID).
		With(fieldFilename, ref.Filename)
}

// refFrom recovers the artifact reference from a payload's fields, falling
// back to parsing its output key.
func refFrom(r workflow.Result) (core.ArtifactRef, error) {
	ref := core.ArtifactRef{
		Group:        r.Field(fieldGroup),
		ProcessingID: r.Field(fieldProcessingID),
		Filename:     r.Field(fieldFilename),
	}
	if ref.Group != "" && ref.ProcessingID != "" && ref.Filename != "" {
		return ref, nil
	}
	ref, err := core.ParseArtifactKey(r.Output)
	if err != nil {
		return core.ArtifactRef{}, core.Validation("ingestion.refFrom", fmt.Errorf("%w: %w", ErrMissingReference, err))
	}
	return ref, nil
}

// terminalIfMissing marks a missing object as a terminal NotFound; other
// store errors stay retriable.
func terminalIfMissing(op, key string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return core.NotFound(op, fmt.Errorf("%s: %w", key, err))
	}
	return err
}

// ChunkCount is the number of chunks produced for one chunk size.
type ChunkCount struct {
	Size        int
	Granularity core.Granularity
	Count       int
}

// formatCounts encodes counts as "size:granularity:count" entries.
func formatCounts(counts []ChunkCount) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%d:%s:%d", c.Size, c.Granularity, c.Count)
	}
	return strings.Join(parts, ",")
}

func parseCounts(s string) ([]ChunkCount, error) {
	if s == "" {
		return nil, nil
	}
	var counts []ChunkCount
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, core.Validation("ingestion.parseCounts", fmt.Errorf("malformed chunk count %q", part))
		}
		size, err1 := strconv.Atoi(fields[0])
		g, err2 := core.ParseGranularity(fields[1])
		n, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, core.Validation("ingestion.parseCounts", fmt.Errorf("malformed chunk count %q", part))
		}
		counts = append(counts, ChunkCount{Size: size, Granularity: g, Count: n})
	}
	return counts, nil
}
