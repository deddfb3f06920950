package validation

import (
	"embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed rules/*.yaml
var embeddedRules embed.FS

// RuleSet is the data-driven description of how one artifact dialect is
// scored. Every field is loaded from YAML so rule adjustments never
// require a code change, per the heuristic-externalization design note.
type RuleSet struct {
	Type string `yaml:"type"`

	MinLength       int     `yaml:"min_length"`
	TooShortMessage string  `yaml:"too_short_message"`
	TooShortPenalty float64 `yaml:"too_short_penalty"`
	TooShortIsFatal bool    `yaml:"too_short_is_fatal"`

	WarnLength  int     `yaml:"warn_length"`
	WarnMessage string  `yaml:"warn_message"`
	WarnPenalty float64 `yaml:"warn_penalty"`

	RequireAnyKeywords     []string `yaml:"require_any_keywords"`
	MissingKeywordsMessage string   `yaml:"missing_keywords_message"`
	MissingKeywordsPenalty float64  `yaml:"missing_keywords_penalty"`
	MissingKeywordsIsError bool     `yaml:"missing_keywords_is_error"`

	Patterns      []PatternRule      `yaml:"patterns"`
	KeywordGroups []KeywordGroupRule `yaml:"keyword_groups"`
	Suggestions   []SuggestionRule   `yaml:"suggestions"`
	TagBalance    *TagBalanceRule    `yaml:"tag_balance"`

	ContextAware          bool    `yaml:"context_aware"`
	ContextPenaltyPerMiss float64 `yaml:"context_penalty_per_miss"`
	ContextMaxPenalty     float64 `yaml:"context_max_penalty"`
}

// PatternRule counts regex matches in the content. In the default mode
// it penalizes a count below MinCount (e.g. "too few entities"). When
// FlagIfPresent is set it instead penalizes any match at all (e.g.
// "class-diagram syntax found inside an ERD").
type PatternRule struct {
	Name            string  `yaml:"name"`
	Regex           string  `yaml:"regex"`
	MinCount        int     `yaml:"min_count"`
	BelowMinIsError bool    `yaml:"below_min_is_error"`
	BelowMinMessage string  `yaml:"below_min_message"`
	BelowMinPenalty float64 `yaml:"below_min_penalty"`

	FlagIfPresent  bool    `yaml:"flag_if_present"`
	PresentMessage string  `yaml:"present_message"`
	PresentPenalty float64 `yaml:"present_penalty"`
	PresentIsError bool    `yaml:"present_is_error"`

	compiled *regexp.Regexp
}

// KeywordGroupRule checks whether any of Keywords appears (case
// insensitive) in the content.
type KeywordGroupRule struct {
	Name           string   `yaml:"name"`
	Keywords       []string `yaml:"keywords"`
	MissingMessage string   `yaml:"missing_message"`
	MissingPenalty float64  `yaml:"missing_penalty"`
	MissingIsError bool     `yaml:"missing_is_error"`
	AsSuggestion   bool     `yaml:"as_suggestion"`
}

// SuggestionRule appends a suggestion, never a penalty, when a single
// keyword is absent from the content.
type SuggestionRule struct {
	IfMissingKeyword string `yaml:"if_missing_keyword"`
	Message          string `yaml:"message"`
}

// TagBalanceRule tolerates a small open/close tag mismatch, for HTML
// fragments that legitimately contain self-closing tags.
type TagBalanceRule struct {
	OpenRegex  string  `yaml:"open_regex"`
	CloseRegex string  `yaml:"close_regex"`
	Tolerance  int     `yaml:"tolerance"`
	Message    string  `yaml:"message"`
	Penalty    float64 `yaml:"penalty"`

	openCompiled  *regexp.Regexp
	closeCompiled *regexp.Regexp
}

// compile pre-builds every regexp in the rule set so Evaluate never
// compiles on the hot path.
func (rs *RuleSet) compile() error {
	for i := range rs.Patterns {
		p := &rs.Patterns[i]
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return fmt.Errorf("rule set %q pattern %q: %w", rs.Type, p.Name, err)
		}
		p.compiled = re
	}

	if rs.TagBalance != nil {
		openRe, err := regexp.Compile(rs.TagBalance.OpenRegex)
		if err != nil {
			return fmt.Errorf("rule set %q tag_balance open_regex: %w", rs.Type, err)
		}
		closeRe, err := regexp.Compile(rs.TagBalance.CloseRegex)
		if err != nil {
			return fmt.Errorf("rule set %q tag_balance close_regex: %w", rs.Type, err)
		}
		rs.TagBalance.openCompiled = openRe
		rs.TagBalance.closeCompiled = closeRe
	}

	return nil
}

// loadDefaultRuleSets loads the rule tables embedded at build time under
// rules/*.yaml, one artifact dialect per file (named by its Type field).
func loadDefaultRuleSets() (map[string]*RuleSet, error) {
	entries, err := embeddedRules.ReadDir("rules")
	if err != nil {
		return nil, fmt.Errorf("reading embedded rules: %w", err)
	}

	out := make(map[string]*RuleSet, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		raw, err := embeddedRules.ReadFile("rules/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		var rs RuleSet
		if err := yaml.Unmarshal(raw, &rs); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}
		if rs.Type == "" {
			return nil, fmt.Errorf("%s: missing required 'type' field", entry.Name())
		}
		if err := rs.compile(); err != nil {
			return nil, err
		}

		out[rs.Type] = &rs
	}

	return out, nil
}

// LoadRuleSetFile loads and compiles a single rule set from a YAML file
// on disk, for operators overriding or adding a dialect without a
// rebuild.
func LoadRuleSetFile(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}

	return &rs, nil
}
