// Package providers defines the collaborator contracts the generation
// orchestrator drives: model backends that turn a prompt into content
// (optionally streamed token by token), context providers that assemble
// retrieval context from meeting notes, and an optional quality judge that
// scores finished content as an advisory second opinion alongside the
// validator.
package providers

import "context"

// GenerateOptions configures a single model backend call.
type GenerateOptions struct {
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// GenerateResult is a model backend's synchronous response.
type GenerateResult struct {
	Content   string
	ModelUsed string
	Tokens    int
	LatencyMS int64
}

// Token is one unit of a streamed generation, carrying enough to let a
// caller both forward the chunk and, on the final token, learn what the
// call would have returned synchronously.
type Token struct {
	Text  string
	Done  bool
	Final *GenerateResult
}

// ModelBackend is the external contract a retry/fallback ladder rung
// calls against. Implementations may be local or remote; tier selection
// and fallback ordering are the ladder's concern, not the backend's.
type ModelBackend interface {
	// Generate runs a single prompt to completion and returns the whole
	// response. Cancelling ctx must stop the underlying call promptly.
	Generate(ctx context.Context, modelID, prompt string, opts GenerateOptions) (GenerateResult, error)

	// GenerateStream runs a prompt and emits tokens on the returned
	// channel as they become available, closing it after the final Token
	// (Done=true, Final populated) or on error. A backend that cannot
	// stream may synthesize a single final token from Generate.
	GenerateStream(ctx context.Context, modelID, prompt string, opts GenerateOptions) (<-chan Token, error)

	// EnsureModelAvailable reports whether modelID can currently serve
	// requests (loaded, reachable), performing any lazy load a local
	// backend needs.
	EnsureModelAvailable(ctx context.Context, modelID string) error

	// ListModels returns the model ids this backend can currently serve.
	ListModels(ctx context.Context) ([]string, error)
}

// ContextOptions narrows what BuildContext assembles.
type ContextOptions struct {
	ContextID  string
	MaxResults int
}

// BuiltContext is assembled retrieval context ready to inject into a
// generation prompt.
type BuiltContext struct {
	Assembled string
	Sources   []string
	FromCache bool
}

// ContextProvider assembles retrieval context from meeting notes. The
// concrete construction (repository scanning, knowledge-graph traversal,
// pattern mining) is out of scope; this is the opaque boundary.
type ContextProvider interface {
	BuildContext(ctx context.Context, notes string, opts ContextOptions) (BuiltContext, error)
}

// QualityJudge is an optional advisory second opinion on finished content,
// independent of the rule-based Validator. A judge failure is logged and
// ignored by callers; it never gates acceptance.
type QualityJudge interface {
	Evaluate(ctx context.Context, artifactType, content, notes string) (score float64, reasoning string, err error)
}
