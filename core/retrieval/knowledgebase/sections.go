package knowledgebase

import (
	"fmt"
	"regexp"
	"strings"
)

// Section is one `### ` block of a markdown document.
type Section struct {
	Label   string
	Content string
}

const (
	minSectionLength   = 50
	summaryEntryLength = 60
	fallbackLabel      = "Reference"
	fallbackSummary    = "Reference entry"
)

var (
	sectionHeading = regexp.MustCompile(`^###\s+(?:\d+(?:\.\d+)*\.?\s+)?(.+)$`)
	keyFeature     = regexp.MustCompile(`\*\*Key Features:\*\*\s*\n-\s*([^\n]+)`)
)

// SplitSections splits markdown at every line that starts with `### `.
// Sections shorter than 50 characters are dropped. The label is the heading
// text without leading section numbering.
func SplitSections(markdown string) []Section {
	var (
		sections []Section
		current  []string
	)

	flush := func() {
		content := strings.TrimSpace(strings.Join(current, "\n"))
		current = current[:0]
		if len(content) < minSectionLength {
			return
		}
		sections = append(sections, Section{Label: sectionLabel(content), Content: content})
	}

	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "### ") && len(current) > 0 {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return sections
}

func sectionLabel(content string) string {
	firstLine, _, _ := strings.Cut(content, "\n")
	if match := sectionHeading.FindStringSubmatch(firstLine); match != nil {
		return strings.TrimSpace(match[1])
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line != "" {
			return truncate(line, summaryEntryLength)
		}
	}
	return fallbackLabel
}

// Summary renders one `- label: description` line per section. The
// description is the first "Key Features" bullet, else the first line that is
// not a heading, cut to 60 characters.
func Summary(sections []Section) string {
	lines := make([]string, 0, len(sections))
	for _, section := range sections {
		lines = append(lines, fmt.Sprintf("- %s: %s", section.Label, sectionDescription(section.Content)))
	}
	return strings.Join(lines, "\n")
}

func sectionDescription(content string) string {
	if match := keyFeature.FindStringSubmatch(content); match != nil {
		return truncate(strings.TrimSpace(match[1]), summaryEntryLength)
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return truncate(line, summaryEntryLength)
		}
	}
	return fallbackSummary
}

func truncate(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:maxRunes]))
}
