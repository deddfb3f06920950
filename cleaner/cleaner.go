// Package cleaner strips markdown wrappers and AI explanatory text from
// raw model output, leaving the artifact body the dialect expects.
package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/notekiln/forge/core"
)

// aggressivenessLogThreshold is the character count above which a single
// trailing-prose trim is logged at Info, per the cleaner-aggressiveness
// open question: small whitespace trims are noise, a trim of more than 10
// chars is worth knowing about.
const aggressivenessLogThreshold = 10

// Cleaner cleans raw artifact content according to its dialect. It is
// stateless aside from the logger used to report aggressive trims.
type Cleaner struct {
	logger core.Logger
}

// New returns a Cleaner that reports trims through logger. A nil logger
// is replaced with a no-op.
func New(logger core.Logger) *Cleaner {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Cleaner{logger: logger}
}

var defaultCleaner = New(nil)

// Clean is the package-level convenience entry point, backed by a
// Cleaner that logs nowhere. Use New when trim logging matters.
func Clean(raw, artifactType string) string {
	return defaultCleaner.Clean(raw, artifactType)
}

// Clean extracts and trims raw according to artifactType's dialect. It
// is idempotent: Clean(Clean(x,t),t) == Clean(x,t).
func (c *Cleaner) Clean(raw, artifactType string) string {
	if raw == "" {
		return raw
	}

	originalLen := len(raw)
	var result string

	switch classify(artifactType) {
	case dialectMermaid:
		result = c.cleanMermaid(raw)
	case dialectHTML:
		result = cleanHTML(raw)
	case dialectCode:
		result = cleanCode(raw)
	default:
		result = strings.TrimSpace(raw)
	}

	if removed := originalLen - len(result); removed > aggressivenessLogThreshold {
		c.logger.Info("cleaner trimmed artifact content", map[string]interface{}{
			"artifact_type": artifactType,
			"chars_removed": removed,
		})
	}

	return result
}

func (c *Cleaner) cleanMermaid(content string) string {
	content = extractFencedDiagram(content)
	content = extractDialectBody(content)

	if strings.Contains(content, "erDiagram") {
		content = fixERDSyntax(content)
	}

	content = boldHeadingRe.ReplaceAllString(content, "")
	content = markdownHeaderRe.ReplaceAllString(content, "")

	content = stripTrailingConversational(content)

	return strings.TrimSpace(content)
}

// extractFencedDiagram pulls the first fenced code block whose body
// contains a known dialect keyword. If no fenced block qualifies, the
// content is returned unchanged so the caller can fall back to
// keyword-scanning the raw text.
func extractFencedDiagram(content string) string {
	matches := fencedMermaidRe.FindAllStringSubmatch(content, -1)
	for _, m := range matches {
		body := strings.TrimSpace(m[1])
		if containsAny(body, mermaidKeywords) {
			return body
		}
	}
	return content
}

// extractDialectBody locates the earliest dialect keyword in content and
// truncates everything from there to the first explanatory-prose
// marker, trailing markdown heading, or numbered-sentence explanation.
func extractDialectBody(content string) string {
	idx := -1
	for _, kw := range mermaidKeywords {
		if i := strings.Index(content, kw); i >= 0 && (idx == -1 || i < idx) {
			idx = i
		}
	}
	if idx == -1 {
		return content
	}

	diagram := strings.TrimSpace(content[idx:])
	lines := strings.Split(diagram, "\n")

	var kept []string
	for _, line := range lines {
		stripped := strings.ToLower(strings.TrimSpace(line))

		if containsAny(stripped, proseMarkers) {
			break
		}

		trimmed := strings.TrimSpace(line)
		if len(kept) > 3 {
			if strings.HasPrefix(trimmed, "##") {
				break
			}
			if strings.HasPrefix(trimmed, "**") && strings.Contains(trimmed, ":") {
				break
			}
			if numberedSentenceRe.MatchString(trimmed) {
				break
			}
		}

		kept = append(kept, line)
	}

	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}

	if len(kept) == 0 {
		return diagram
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// stripTrailingConversational drops trailing lines that read as AI
// sign-off rather than diagram body: empty lines, lines starting with a
// conversational prefix, and exclamation/question lines that carry no
// diagram syntax.
func stripTrailingConversational(content string) string {
	lines := strings.Split(content, "\n")

	for len(lines) > 0 {
		last := strings.ToLower(strings.TrimSpace(lines[len(lines)-1]))

		remove := false
		if last == "" {
			remove = true
		} else if hasAnyPrefix(last, trailingConversationalPrefixes) {
			remove = true
		} else if (strings.HasSuffix(last, "!") || strings.HasSuffix(last, "?")) &&
			!containsAny(last, []string{"-->", "---", "|||", "{", "}"}) {
			remove = true
		}

		if !remove {
			break
		}
		lines = lines[:len(lines)-1]
	}

	return strings.Join(lines, "\n")
}

// fixERDSyntax rewrites `class Entity { - field ... }` class-diagram
// syntax into ERD entity blocks, a mistake local models repeatedly make
// when asked for an erDiagram.
func fixERDSyntax(content string) string {
	convert := func(m []string) string {
		entity := m[1]
		fieldsText := m[2]

		var fields []string
		for _, line := range strings.Split(fieldsText, "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "-") {
				continue
			}

			fieldText := strings.TrimSpace(line[1:])
			fm := erdFieldRe.FindStringSubmatch(fieldText)
			if fm == nil {
				continue
			}

			name := fm[1]
			description := strings.ToLower(fm[2])

			fieldType := "string"
			lowerName := strings.ToLower(name)
			if name == "id" || strings.HasSuffix(lowerName, "_id") {
				fieldType = "int"
			} else if strings.Contains(lowerName, "date") || strings.Contains(lowerName, "time") {
				fieldType = "datetime"
			}

			keySuffix := ""
			if strings.Contains(description, "primary") || name == "id" {
				keySuffix = " PK"
			} else if strings.Contains(description, "foreign") || (strings.HasSuffix(lowerName, "_id") && name != "id") {
				keySuffix = " FK"
			}

			fields = append(fields, fmt.Sprintf("        %s %s%s", fieldType, name, keySuffix))
		}

		if len(fields) == 0 {
			return entity + " {\n        int id PK\n    }"
		}
		return entity + " {\n" + strings.Join(fields, "\n") + "\n    }"
	}

	rewrite := func(s string) string {
		return replaceAllSubmatch(classBlockRe, s, convert)
	}

	fixed := rewrite(content)
	fixed = classKeywordRe.ReplaceAllString(fixed, "class ")
	fixed = rewrite(fixed)
	return fixed
}

// replaceAllSubmatch is regexp.ReplaceAllStringFunc but with access to
// capture groups, which the stdlib doesn't expose directly.
func replaceAllSubmatch(re *regexp.Regexp, s string, fn func([]string) string) string {
	indices := re.FindAllStringSubmatchIndex(s, -1)
	if indices == nil {
		return s
	}

	var b strings.Builder
	last := 0
	for _, idx := range indices {
		b.WriteString(s[last:idx[0]])

		groups := make([]string, len(idx)/2)
		for i := range groups {
			start, end := idx[2*i], idx[2*i+1]
			if start < 0 || end < 0 {
				continue
			}
			groups[i] = s[start:end]
		}

		b.WriteString(fn(groups))
		last = idx[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func cleanHTML(content string) string {
	content = extractFencedHTML(content)

	lowerContent := strings.ToLower(content)
	switch {
	case strings.Contains(content, "<!DOCTYPE") || strings.Contains(lowerContent, "<html"):
		content = extractDoctypeBody(content)
	case strings.Contains(lowerContent, "<div") || strings.Contains(lowerContent, "<body"):
		content = trimFragmentBoundaries(content)
	}

	return content
}

func extractFencedHTML(content string) string {
	matches := fencedHTMLRe.FindAllStringSubmatch(content, -1)
	for _, m := range matches {
		body := strings.TrimSpace(m[1])
		if strings.Contains(body, "<") && strings.Contains(body, ">") {
			return body
		}
	}
	return content
}

func extractDoctypeBody(content string) string {
	lower := strings.ToLower(content)

	doctypeIdx := strings.Index(content, "<!DOCTYPE")
	htmlIdx := strings.Index(lower, "<html")

	start := len(content)
	if doctypeIdx >= 0 && doctypeIdx < start {
		start = doctypeIdx
	}
	if htmlIdx >= 0 && htmlIdx < start {
		start = htmlIdx
	}
	if start >= len(content) {
		return content
	}

	closeIdx := strings.LastIndex(lower, "</html>")
	if closeIdx > start {
		return strings.TrimSpace(content[start : closeIdx+len("</html>")])
	}
	return strings.TrimSpace(content[start:])
}

func trimFragmentBoundaries(content string) string {
	firstTag := strings.Index(content, "<")
	if firstTag > 0 {
		before := strings.TrimSpace(content[:firstTag])
		if before != "" && !strings.HasPrefix(before, "<!") {
			content = strings.TrimSpace(content[firstTag:])
		}
	}

	lastTag := strings.LastIndex(content, ">")
	if lastTag > 0 && lastTag < len(content)-1 {
		after := strings.TrimSpace(content[lastTag+1:])
		if after != "" && !strings.HasPrefix(after, "<") {
			content = strings.TrimSpace(content[:lastTag+1])
		}
	}

	return content
}

func cleanCode(content string) string {
	matches := fencedAnyRe.FindAllStringSubmatch(content, -1)
	if len(matches) > 0 {
		blocks := make([]string, len(matches))
		for i, m := range matches {
			blocks[i] = strings.TrimSpace(m[1])
		}
		return strings.TrimSpace(strings.Join(blocks, "\n\n"))
	}

	content = strings.TrimPrefix(strings.TrimSpace(content), "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func containsAny(s string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
