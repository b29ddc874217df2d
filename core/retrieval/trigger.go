package retrieval

import (
	_ "embed"
	"strings"
)

// ClassificationInstructions are the instructions sent with the user's
// utterance to the classifier. The classifier answers with either
// `SEARCH: <query>` or `NONE`.
//
//go:embed routerInstr.tmpl
var ClassificationInstructions string

const searchDirective = "SEARCH:"

// Trigger decides whether an utterance is worth a classifier call. It is a
// cheap keyword filter in front of the classifier so that most turns skip the
// extra round trip.
type Trigger struct {
	keywords []string
}

// NewTrigger creates a trigger for the given keywords. Keywords are matched
// case-insensitively; blank keywords are ignored.
func NewTrigger(keywords []string) *Trigger {
	normalized := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			normalized = append(normalized, keyword)
		}
	}
	return &Trigger{keywords: normalized}
}

// ParseKeywords splits a comma separated keyword list.
func ParseKeywords(csv string) []string {
	var keywords []string
	for _, keyword := range strings.Split(csv, ",") {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			keywords = append(keywords, keyword)
		}
	}
	return keywords
}

// ShouldPreCheck reports whether text passes the keyword filter. A trigger
// without keywords passes everything.
func (t *Trigger) ShouldPreCheck(text string) bool {
	if t == nil || len(t.keywords) == 0 {
		return true
	}

	text = strings.ToLower(text)
	for _, keyword := range t.keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// ParseClassifierOutput interprets the classifier's answer. Only a literal
// `SEARCH:` prefix asks for a search, with the rest of the answer as the
// query. Anything else, including `NONE` and an empty answer, means no search.
func ParseClassifierOutput(output string) (shouldSearch bool, query string) {
	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, searchDirective) {
		return false, ""
	}
	return true, strings.TrimSpace(strings.TrimPrefix(output, searchDirective))
}
