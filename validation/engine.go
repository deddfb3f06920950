package validation

import (
	"strings"
)

// evaluate runs rs against content and ctx, returning the accumulated
// score and issue lists. It does not apply the is_valid threshold —
// that is the Validator's job, since the passing threshold and the
// orchestrator's acceptance threshold are deliberately different
// constants.
func evaluate(rs *RuleSet, content string, ctx Context) Result {
	var errs, warnings, suggestions []string
	score := 100.0

	trimmed := strings.TrimSpace(content)

	if rs.MinLength > 0 && len(trimmed) < rs.MinLength {
		errs = append(errs, rs.TooShortMessage)
		score -= rs.TooShortPenalty
		if rs.TooShortIsFatal {
			return Result{
				IsValid:     false,
				Score:       clampScore(score),
				Errors:      errs,
				Warnings:    warnings,
				Suggestions: suggestions,
			}
		}
	} else if rs.WarnLength > 0 && len(trimmed) < rs.WarnLength {
		warnings = append(warnings, rs.WarnMessage)
		score -= rs.WarnPenalty
	}

	if len(rs.RequireAnyKeywords) > 0 && !containsAnyFold(content, rs.RequireAnyKeywords) {
		if rs.MissingKeywordsIsError {
			errs = append(errs, rs.MissingKeywordsMessage)
		} else {
			warnings = append(warnings, rs.MissingKeywordsMessage)
		}
		score -= rs.MissingKeywordsPenalty
	}

	for _, p := range rs.Patterns {
		count := 0
		if p.compiled != nil {
			count = len(p.compiled.FindAllStringIndex(content, -1))
		}

		if p.FlagIfPresent {
			if count > 0 {
				if p.PresentIsError {
					errs = append(errs, p.PresentMessage)
				} else {
					warnings = append(warnings, p.PresentMessage)
				}
				score -= p.PresentPenalty
			}
			continue
		}

		if count < p.MinCount {
			msg := p.BelowMinMessage
			if msg == "" {
				msg = p.Name + " below expected count"
			}
			if p.BelowMinIsError {
				errs = append(errs, msg)
			} else {
				warnings = append(warnings, msg)
			}
			score -= p.BelowMinPenalty
		}
	}

	for _, kg := range rs.KeywordGroups {
		if containsAnyFold(content, kg.Keywords) {
			continue
		}
		if kg.AsSuggestion {
			suggestions = append(suggestions, kg.MissingMessage)
			continue
		}
		if kg.MissingIsError {
			errs = append(errs, kg.MissingMessage)
		} else {
			warnings = append(warnings, kg.MissingMessage)
		}
		score -= kg.MissingPenalty
	}

	for _, s := range rs.Suggestions {
		if !containsFold(content, s.IfMissingKeyword) {
			suggestions = append(suggestions, s.Message)
		}
	}

	if tb := rs.TagBalance; tb != nil && tb.openCompiled != nil {
		open := len(tb.openCompiled.FindAllStringIndex(content, -1))
		closeCount := len(tb.closeCompiled.FindAllStringIndex(content, -1))
		diff := open - closeCount
		if diff < 0 {
			diff = -diff
		}
		if diff > tb.Tolerance {
			warnings = append(warnings, tb.Message)
			score -= tb.Penalty
		}
	}

	if rs.ContextAware {
		score -= contextPenalty(content, ctx, rs.ContextPenaltyPerMiss, rs.ContextMaxPenalty, &warnings)
	}

	return Result{
		IsValid:     len(errs) == 0,
		Score:       clampScore(score),
		Errors:      errs,
		Warnings:    warnings,
		Suggestions: suggestions,
	}
}

// contextPenalty downgrades the score when meeting-notes context names
// entities/technologies that never show up in the generated content,
// per spec's context-aware adjustment. Each miss is reported once as a
// warning and the total penalty is capped.
func contextPenalty(content string, ctx Context, perMiss, maxPenalty float64, warnings *[]string) float64 {
	keywords := ctx.allKeywords()
	if len(keywords) == 0 || perMiss <= 0 {
		return 0
	}

	lowerContent := strings.ToLower(content)
	seen := make(map[string]bool, len(keywords))
	var missed int

	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[strings.ToLower(kw)] {
			continue
		}
		seen[strings.ToLower(kw)] = true

		if !strings.Contains(lowerContent, strings.ToLower(kw)) {
			missed++
		}
	}

	if missed == 0 {
		return 0
	}

	penalty := float64(missed) * perMiss
	if penalty > maxPenalty {
		penalty = maxPenalty
	}

	*warnings = append(*warnings, "content does not mention one or more entities/technologies named in the context notes")
	return penalty
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func containsFold(content, substr string) bool {
	return strings.Contains(strings.ToLower(content), strings.ToLower(substr))
}

func containsAnyFold(content string, candidates []string) bool {
	for _, c := range candidates {
		if containsFold(content, c) {
			return true
		}
	}
	return false
}

// extractCapitalizedWords pulls proper-noun-looking tokens out of free
// text notes, used as a fallback keyword source when the caller hasn't
// pre-extracted entity names into Context.Keywords.
func extractCapitalizedWords(notes string) []string {
	if notes == "" {
		return nil
	}

	var words []string
	for _, field := range strings.Fields(notes) {
		trimmed := strings.Trim(field, ".,;:!?()[]{}\"'")
		if len(trimmed) < 3 {
			continue
		}
		if trimmed[0] >= 'A' && trimmed[0] <= 'Z' && strings.ToUpper(trimmed) != trimmed {
			words = append(words, trimmed)
		}
	}
	return words
}
