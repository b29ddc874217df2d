package retrieval

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Reference is a single ranked result returned by a retriever. References
// only live for the turn that asked for them.
type Reference struct {
	Label   string  `json:"label"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

const (
	contextHeader     = "[System context - relevant reference information:]"
	snippetMaxLength  = 400
	snippetEllipsis   = "..."
	scoreRoundingBase = 1000
)

// Context renders refs as `### label` blocks separated by blank lines.
func Context(refs []Reference) string {
	blocks := make([]string, 0, len(refs))
	for _, ref := range refs {
		blocks = append(blocks, "### "+ref.Label+"\n"+ref.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// FoldContext appends the rendered references to the user's utterance. The
// result is what gets stored as the user message. Without references the
// text is returned unchanged.
func FoldContext(text string, refs []Reference) string {
	if len(refs) == 0 {
		return text
	}
	return text + "\n\n" + contextHeader + "\n" + Context(refs)
}

// Snippet is the display form of a reference.
type Snippet struct {
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// Snippets converts refs into their display form: scores rounded to three
// decimals and content cut to 400 characters.
func Snippets(refs []Reference) []Snippet {
	snippets := make([]Snippet, 0, len(refs))
	for _, ref := range refs {
		snippets = append(snippets, Snippet{
			Label:   ref.Label,
			Score:   math.Round(ref.Score*scoreRoundingBase) / scoreRoundingBase,
			Snippet: truncate(ref.Content, snippetMaxLength),
		})
	}
	return snippets
}

func truncate(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + snippetEllipsis
}
