package search

import "github.com/poiesic/ragline/core"

// RetrievalMonitor provides hooks to observe a retrieval.
// Implement this interface to trace intermediate steps, e.g. from the CLI.
type RetrievalMonitor interface {
	Start(q Query)
	AfterEmbedding(dims int)
	PageRead(rows int)
	Rejected(chunk *core.ChunkRecord, score float64)
	Accepted(chunk *core.ChunkRecord, score float64)
	Finish(matches []Match)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Query)                           {}
func (n *noopMonitor) AfterEmbedding(_ int)                    {}
func (n *noopMonitor) PageRead(_ int)                          {}
func (n *noopMonitor) Rejected(_ *core.ChunkRecord, _ float64) {}
func (n *noopMonitor) Accepted(_ *core.ChunkRecord, _ float64) {}
func (n *noopMonitor) Finish(_ []Match)                        {}
