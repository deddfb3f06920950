package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/notekiln/forge/core"
)

// RemoteBackend adapts a langchaingo llms.Model (OpenAI, Anthropic,
// Gemini, or any other langchaingo-supported cloud provider) to
// ModelBackend, serving as the last rung of the retry/fallback ladder
// after local models are exhausted.
type RemoteBackend struct {
	model   llms.Model
	modelID string
	logger  core.Logger
}

// NewRemoteBackend wraps model, reporting itself under modelID for attempt
// records and ladder configuration.
func NewRemoteBackend(model llms.Model, modelID string, logger core.Logger) *RemoteBackend {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("forge/providers")
	}
	return &RemoteBackend{model: model, modelID: modelID, logger: logger}
}

func (r *RemoteBackend) callOptions(opts GenerateOptions) []llms.CallOption {
	var callOpts []llms.CallOption
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(float64(opts.Temperature)))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	return callOpts
}

func (r *RemoteBackend) messages(prompt string, opts GenerateOptions) []llms.MessageContent {
	var messages []llms.MessageContent
	if opts.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, opts.SystemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
	return messages
}

// Generate sends prompt to the wrapped langchaingo model and returns its
// first completion choice.
func (r *RemoteBackend) Generate(ctx context.Context, modelID, prompt string, opts GenerateOptions) (GenerateResult, error) {
	resp, err := r.model.GenerateContent(ctx, r.messages(prompt, opts), r.callOptions(opts)...)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("remote backend %s: %w", r.modelID, err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResult{}, fmt.Errorf("remote backend %s: no completion choices returned", r.modelID)
	}

	choice := resp.Choices[0]
	return GenerateResult{
		Content:   choice.Content,
		ModelUsed: r.modelID,
		Tokens:    totalTokens(choice.GenerationInfo),
	}, nil
}

// totalTokens reads a provider-reported token count out of langchaingo's
// loosely-typed GenerationInfo map, whose key names vary by provider
// (OpenAI uses "TotalTokens", others differ or omit it entirely).
func totalTokens(info map[string]interface{}) int {
	if info == nil {
		return 0
	}
	if v, ok := info["TotalTokens"].(int); ok {
		return v
	}
	return 0
}

// GenerateStream streams tokens via langchaingo's StreamingFunc callback,
// relaying each chunk on the returned channel and closing it once the
// underlying call completes.
func (r *RemoteBackend) GenerateStream(ctx context.Context, modelID, prompt string, opts GenerateOptions) (<-chan Token, error) {
	ch := make(chan Token)

	go func() {
		defer close(ch)

		var built strings.Builder
		streamOpts := append(r.callOptions(opts), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			text := string(chunk)
			built.WriteString(text)
			select {
			case ch <- Token{Text: text}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}))

		resp, err := r.model.GenerateContent(ctx, r.messages(prompt, opts), streamOpts...)
		if err != nil {
			r.logger.Warn("remote backend: streaming call failed", map[string]interface{}{
				"model_id": r.modelID,
				"error":    err.Error(),
			})
			return
		}

		final := GenerateResult{Content: built.String(), ModelUsed: r.modelID}
		if len(resp.Choices) > 0 {
			final.Tokens = totalTokens(resp.Choices[0].GenerationInfo)
		}
		ch <- Token{Done: true, Final: &final}
	}()

	return ch, nil
}

// EnsureModelAvailable always succeeds: a langchaingo cloud model is
// reachable or it errors out of Generate directly, there is no separate
// load step the way a local model has.
func (r *RemoteBackend) EnsureModelAvailable(ctx context.Context, modelID string) error {
	return nil
}

// ListModels reports the single model id this backend was constructed
// for; langchaingo has no uniform cross-provider model-listing call.
func (r *RemoteBackend) ListModels(ctx context.Context) ([]string, error) {
	return []string{r.modelID}, nil
}
