// Package mock is a seedable ModelBackend used by scenario tests to drive
// the retry/fallback ladder deterministically: canned responses, call
// counting, and error injection without a real model endpoint.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/notekiln/forge/providers"
)

// Backend cycles through a configured list of canned responses, one per
// call, optionally failing or honoring cancellation instead.
type Backend struct {
	mu sync.Mutex

	ModelID   string
	Responses []string
	index     int
	Err       error

	CallCount   int
	LastPrompt  string
	LastOptions providers.GenerateOptions
}

// New builds a Backend that answers with responses in order and errors
// once they are exhausted.
func New(modelID string, responses ...string) *Backend {
	return &Backend{ModelID: modelID, Responses: responses}
}

// SetResponses replaces the canned response list and resets the cursor.
func (b *Backend) SetResponses(responses ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Responses = responses
	b.index = 0
}

// SetError makes every subsequent call fail with err until cleared.
func (b *Backend) SetError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Err = err
}

// Reset clears call tracking and rewinds the response cursor.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CallCount = 0
	b.index = 0
	b.LastPrompt = ""
	b.Err = nil
}

func (b *Backend) nextContent() (string, error) {
	if b.Err != nil {
		return "", b.Err
	}
	if len(b.Responses) == 0 {
		return "", fmt.Errorf("mock backend %s: no responses configured", b.ModelID)
	}
	if b.index >= len(b.Responses) {
		return "", fmt.Errorf("mock backend %s: no more mock responses", b.ModelID)
	}
	content := b.Responses[b.index]
	b.index++
	return content, nil
}

// Generate returns the next canned response, estimating token usage as a
// quarter of the response length the way a real tokenizer roughly tracks
// English text.
func (b *Backend) Generate(ctx context.Context, modelID, prompt string, opts providers.GenerateOptions) (providers.GenerateResult, error) {
	select {
	case <-ctx.Done():
		return providers.GenerateResult{}, ctx.Err()
	default:
	}

	b.mu.Lock()
	b.CallCount++
	b.LastPrompt = prompt
	b.LastOptions = opts
	content, err := b.nextContent()
	b.mu.Unlock()

	if err != nil {
		return providers.GenerateResult{}, err
	}
	return providers.GenerateResult{
		Content:   content,
		ModelUsed: b.ModelID,
		Tokens:    len(content) / 4,
	}, nil
}

// GenerateStream emits the canned response as a single final token, which
// is sufficient for callers exercising the streaming contract without a
// token-by-token model to drive it.
func (b *Backend) GenerateStream(ctx context.Context, modelID, prompt string, opts providers.GenerateOptions) (<-chan providers.Token, error) {
	result, err := b.Generate(ctx, modelID, prompt, opts)
	if err != nil {
		return nil, err
	}

	ch := make(chan providers.Token, 1)
	ch <- providers.Token{Text: result.Content, Done: true, Final: &result}
	close(ch)
	return ch, nil
}

// EnsureModelAvailable always succeeds unless an error has been injected.
func (b *Backend) EnsureModelAvailable(ctx context.Context, modelID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Err
}

// ListModels reports the single model id this backend answers for.
func (b *Backend) ListModels(ctx context.Context) ([]string, error) {
	return []string{b.ModelID}, nil
}
