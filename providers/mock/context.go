package mock

import (
	"context"
	"sync"

	"github.com/notekiln/forge/providers"
)

// ContextProvider returns a fixed assembled-context string regardless of
// input notes, recording the last call for test assertions.
type ContextProvider struct {
	mu sync.Mutex

	Assembled string
	Sources   []string
	Err       error

	CallCount int
	LastNotes string
}

// NewContextProvider builds a ContextProvider that always answers with
// assembled.
func NewContextProvider(assembled string, sources ...string) *ContextProvider {
	return &ContextProvider{Assembled: assembled, Sources: sources}
}

// BuildContext returns the configured assembled context.
func (c *ContextProvider) BuildContext(ctx context.Context, notes string, opts providers.ContextOptions) (providers.BuiltContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CallCount++
	c.LastNotes = notes

	if c.Err != nil {
		return providers.BuiltContext{}, c.Err
	}
	return providers.BuiltContext{Assembled: c.Assembled, Sources: c.Sources}, nil
}
