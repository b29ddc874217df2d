package prompts

import (
	"strings"
	"testing"

	"github.com/koscakluka/ema-dialogue/core/conversations"
)

func TestBuildWithoutExtrasIsBase(t *testing.T) {
	got, err := Builder{Base: "Be brief."}.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Be brief." {
		t.Fatalf("expected base instructions only, got %q", got)
	}
}

func TestBuildDefaultsBase(t *testing.T) {
	got, err := Builder{}.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DefaultBase {
		t.Fatalf("expected default base, got %q", got)
	}
}

func TestBuildIncludesKnowledgeSummary(t *testing.T) {
	got, err := Builder{Base: "Base.", KnowledgeSummary: "- Basic Plan: monthly"}.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "Base.\n\n## Reference Knowledge\n") {
		t.Fatalf("expected knowledge section after base, got %q", got)
	}
	if !strings.Contains(got, "\n- Basic Plan: monthly\n") {
		t.Fatalf("expected summary in instructions, got %q", got)
	}
	if strings.Contains(got, "## Your Tasks") {
		t.Fatalf("expected no task section without tasks")
	}
}

func TestBuildListsTasksAndMarkerProtocol(t *testing.T) {
	got, err := Builder{
		Base: "Base.",
		Tasks: []conversations.Task{
			{ID: 1, Description: "Greet the caller", Completed: true},
			{ID: 2, Description: "Ask for their name"},
		},
	}.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, expected := range []string{
		"\n  1. [DONE] Greet the caller\n",
		"\n  2. [TODO] Ask for their name\n",
		"include exactly this marker in your response: [TASK_DONE:X] where X is the task number",
	} {
		if !strings.Contains(got, expected) {
			t.Fatalf("expected instructions to contain %q, got:\n%s", expected, got)
		}
	}
	if strings.Contains(got, "## Reference Knowledge") {
		t.Fatalf("expected no knowledge section without a summary")
	}
}
