package retrieval

import (
	"github.com/poiesic/furrow/core"
)

// Monitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results.
type Monitor interface {
	Start(query string, k int)
	AfterSearch(matches []*core.SearchResult)
	Truncated(chunkID core.ID, fromRunes, toRunes int)
	Finish(results []core.QueryResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)              {}
func (n *noopMonitor) AfterSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) Truncated(_ core.ID, _, _ int)      {}
func (n *noopMonitor) Finish(_ []core.QueryResult)        {}
