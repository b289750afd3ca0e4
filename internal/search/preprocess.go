package search

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	mdEmphasisRE = regexp.MustCompile(`(\*\*|__|~~|` + "`" + `)`)
	mdHeadingRE  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	mdBulletRE   = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s+`)
	mdLinkRE     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	spaceRE      = regexp.MustCompile(`\s+`)
)

// CleanSummary turns a lightweight-Markdown summary into plain prose:
// table rows are flattened into facts, links keep their text, emphasis and
// heading markers are dropped and whitespace is collapsed.
func CleanSummary(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	facts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			if row := flattenTableRow(line); row != "" {
				facts = append(facts, terminate(row))
			}
			continue
		}
		line = mdHeadingRE.ReplaceAllString(line, "")
		line = mdBulletRE.ReplaceAllString(line, "")
		if line != "" {
			facts = append(facts, line)
		}
	}
	out := strings.Join(facts, " ")
	out = mdLinkRE.ReplaceAllString(out, "$1")
	out = mdEmphasisRE.ReplaceAllString(out, "")
	out = spaceRE.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// flattenTableRow joins the non-empty cells of "| a | b |"; separator rows
// ("|---|:-:|") yield "".
func flattenTableRow(line string) string {
	cols := strings.Split(strings.Trim(line, "|"), "|")
	cleaned := make([]string, 0, len(cols))
	allSep := true
	for _, c := range cols {
		cell := strings.TrimSpace(c)
		if strings.Trim(cell, ":- ") != "" {
			allSep = false
		}
		if cell != "" {
			cleaned = append(cleaned, cell)
		}
	}
	if allSep {
		return ""
	}
	return strings.Join(cleaned, " ")
}

func terminate(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}

// SplitSentences splits prose on ., ! or ? followed by whitespace and an
// upper-case letter, digit or opening quote. Decimal points and most
// abbreviations followed by lower-case words stay inside the sentence.
func SplitSentences(text string) []string {
	rs := []rune(strings.TrimSpace(text))
	var out []string
	start := 0
	for i := 0; i < len(rs); i++ {
		if rs[i] != '.' && rs[i] != '!' && rs[i] != '?' {
			continue
		}
		end := i + 1
		// include closing quotes right after the terminator
		for end < len(rs) && (rs[end] == '"' || rs[end] == '”' || rs[end] == '\'') {
			end++
		}
		if end >= len(rs) {
			break
		}
		if !unicode.IsSpace(rs[end]) {
			continue
		}
		j := end
		for j < len(rs) && unicode.IsSpace(rs[j]) {
			j++
		}
		if j < len(rs) && (unicode.IsUpper(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '"' || rs[j] == '“') {
			if s := strings.TrimSpace(string(rs[start:end])); s != "" {
				out = append(out, s)
			}
			start = j
			i = j - 1
		}
	}
	if s := strings.TrimSpace(string(rs[start:])); s != "" {
		out = append(out, s)
	}
	return out
}
