package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/notekiln/forge/core"
)

// LLMJudge is an optional advisory QualityJudge that delegates the actual
// evaluation call to a ModelBackend, asking it to grade a finished
// artifact against the notes that requested it. A disabled judge, or one
// whose backend call fails, returns a conservative passing score rather
// than an error — evaluation is advisory and must never gate acceptance.
type LLMJudge struct {
	backend ModelBackend
	modelID string
	enabled bool
	logger  core.Logger
}

// NewLLMJudge builds a judge that calls modelID on backend. enabled=false
// makes Evaluate a no-op that always reports a passing score, matching the
// original service's disabled-by-default posture.
func NewLLMJudge(backend ModelBackend, modelID string, enabled bool, logger core.Logger) *LLMJudge {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("forge/providers")
	}
	return &LLMJudge{backend: backend, modelID: modelID, enabled: enabled, logger: logger}
}

type judgeVerdict struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

var scoreFallbackRe = regexp.MustCompile(`(?i)score"?\s*:?\s*(\d+)`)

// Evaluate asks the backend to grade content against artifactType and
// notes, returning a 0-100 score and its stated reasoning. Any failure —
// disabled judge, backend error, unparseable response — degrades to a
// fixed score rather than propagating (an unparseable response first
// yields any score a pattern match finds in the raw text), since a judge opinion is never
// allowed to fail a job that otherwise passed validation.
func (j *LLMJudge) Evaluate(ctx context.Context, artifactType, content, notes string) (float64, string, error) {
	if !j.enabled {
		return 85.0, "LLM judge disabled, assuming passing score.", nil
	}

	result, err := j.backend.Generate(ctx, j.modelID, judgePrompt(artifactType, content, notes), GenerateOptions{
		SystemPrompt: "You are a senior technical reviewer scoring generated artifacts.",
		Temperature:  0.1,
	})
	if err != nil {
		j.logger.Warn("judge: backend call failed", map[string]interface{}{"error": err.Error()})
		return 80.0, fmt.Sprintf("judge error: %v", err), nil
	}

	var verdict judgeVerdict
	if err := json.Unmarshal([]byte(result.Content), &verdict); err == nil {
		return verdict.Score, verdict.Reasoning, nil
	}

	j.logger.Warn("judge: failed to parse evaluation JSON", map[string]interface{}{"raw_prefix": truncate(result.Content, 100)})
	if m := scoreFallbackRe.FindStringSubmatch(result.Content); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil {
			return score, truncate(result.Content, 200), nil
		}
	}
	return 75.0, "failed to parse judge output, defaulting to neutral score.", nil
}

func judgePrompt(artifactType, content, notes string) string {
	return fmt.Sprintf(`Evaluate the quality of the following %s.

USER REQUIREMENTS:
%s

GENERATED ARTIFACT:
%s

Score 0-100 on relevance to the requirements, syntactic correctness, completeness, and adherence to conventions.
Respond with JSON only: {"score": <0-100 integer>, "reasoning": "<concise explanation>"}`,
		artifactType, truncate(notes, 2000), truncate(content, 8000))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
