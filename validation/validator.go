package validation

import (
	"fmt"
	"strings"

	"github.com/notekiln/forge/core"
)

// MaxBatchSize caps a single ValidateBatch call.
const MaxBatchSize = 50

// Validator scores cleaned artifact content using the loaded rule sets.
type Validator struct {
	logger   core.Logger
	ruleSets map[string]*RuleSet
}

// New builds a Validator from the embedded default rule tables. A nil
// logger is replaced with a no-op.
func New(logger core.Logger) (*Validator, error) {
	ruleSets, err := loadDefaultRuleSets()
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}

	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	return &Validator{logger: logger, ruleSets: ruleSets}, nil
}

// WithRuleSet overrides or adds a rule set, returning the same
// Validator for chaining. Intended for tests and operator overrides
// loaded via LoadRuleSetFile.
func (v *Validator) WithRuleSet(rs *RuleSet) *Validator {
	v.ruleSets[rs.Type] = rs
	return v
}

// dialectFor maps a concrete artifact_type (e.g. "mermaid_erd",
// "dev_visual_prototype") onto the rule-set key that governs it.
func dialectFor(artifactType string) string {
	switch {
	case artifactType == "mermaid_erd" || strings.HasSuffix(artifactType, "_erd"):
		return "erd"
	case artifactType == "mermaid_sequence" || strings.Contains(artifactType, "sequence"):
		return "sequence"
	case strings.HasPrefix(artifactType, "mermaid_") || strings.Contains(artifactType, "architecture") || strings.Contains(artifactType, "flowchart"):
		return "architecture"
	case strings.HasPrefix(artifactType, "html_") || artifactType == "dev_visual_prototype" || artifactType == "html_prototype":
		return "html"
	case artifactType == "code_prototype":
		return "code"
	case artifactType == "api_docs":
		return "api_docs"
	case strings.Contains(artifactType, "jira") || strings.Contains(artifactType, "story") || strings.Contains(artifactType, "task"):
		return "jira"
	default:
		return "generic"
	}
}

// Validate scores content for artifactType, applying the passing
// threshold (score >= 60 and no errors). The orchestrator's stricter
// acceptance threshold (80) is applied by the caller, not here — see
// core.OrchestratorAcceptThreshold.
func (v *Validator) Validate(artifactType, content string, ctx Context) Result {
	dialect := dialectFor(artifactType)
	rs, ok := v.ruleSets[dialect]
	if !ok {
		rs = v.ruleSets["generic"]
	}

	result := evaluate(rs, content, ctx)
	result.IsValid = result.IsValid && result.Score >= core.ValidIsValidThreshold

	return result
}

// ValidateBatch validates each item independently, capped at
// MaxBatchSize per call.
type BatchItem struct {
	ArtifactType string
	Content      string
	Context      Context
}

func (v *Validator) ValidateBatch(items []BatchItem) ([]Result, error) {
	if len(items) > MaxBatchSize {
		return nil, fmt.Errorf("validation: batch of %d exceeds max %d", len(items), MaxBatchSize)
	}

	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = v.Validate(item.ArtifactType, item.Content, item.Context)
	}
	return results, nil
}

// MermaidReport is ValidateMermaid's detailed wrapper around Result,
// surfacing the dialect keyword that was detected so callers can
// distinguish "wrong dialect" from "right dialect, low quality".
type MermaidReport struct {
	Result
	DetectedDialect string
}

var mermaidDialectKeywords = []string{
	"erDiagram", "flowchart", "graph ", "sequenceDiagram",
	"classDiagram", "stateDiagram", "gantt", "pie", "journey",
	"gitgraph", "mindmap", "timeline", "C4Context", "C4Container",
	"C4Component", "C4Deployment",
}

// ValidateMermaid is a convenience wrapper for the three Mermaid
// dialects (erd/architecture/sequence), additionally reporting which
// dialect keyword was detected in content.
func (v *Validator) ValidateMermaid(artifactType, content string, ctx Context) MermaidReport {
	detected := ""
	for _, kw := range mermaidDialectKeywords {
		if strings.Contains(content, kw) {
			detected = strings.TrimSpace(kw)
			break
		}
	}

	return MermaidReport{
		Result:          v.Validate(artifactType, content, ctx),
		DetectedDialect: detected,
	}
}
