// Package prompts renders the instructions sent with every generation
// request.
package prompts

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/koscakluka/ema-dialogue/core/conversations"
	"github.com/koscakluka/ema-dialogue/core/responses"
)

// DefaultBase is used when no base instructions are configured.
const DefaultBase = "You are a helpful assistant."

//go:embed instructions.tmpl
var instructionsTemplate string

var instructions = template.Must(template.New("instructions").
	Funcs(template.FuncMap{
		"marker": responses.CompletionMarker,
	}).
	Parse(instructionsTemplate))

// Builder combines the base instructions with the knowledge summary and the
// current task list.
type Builder struct {
	Base             string
	KnowledgeSummary string
	Tasks            []conversations.Task
}

func (b Builder) Build() (string, error) {
	data := b
	if strings.TrimSpace(data.Base) == "" {
		data.Base = DefaultBase
	}

	var sb strings.Builder
	if err := instructions.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render instructions: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
