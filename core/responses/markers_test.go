package responses

import (
	"slices"
	"strings"
	"testing"
)

func TestTaskMarkersInSentence(t *testing.T) {
	text := "Let's talk about [TASK_DONE:2] savings."

	if got := ExtractTaskCompletions(text); !slices.Equal(got, []int{2}) {
		t.Fatalf("expected completions [2], got %v", got)
	}
	if got := StripTaskMarkers(text); got != "Let's talk about savings." {
		t.Fatalf("expected stripped text %q, got %q", "Let's talk about savings.", got)
	}
}

func TestExtractTaskCompletions(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected []int
	}{
		{name: "none", text: "Nothing to see here.", expected: nil},
		{name: "in order", text: "[TASK_DONE:3] then [TASK_DONE:1]", expected: []int{3, 1}},
		{name: "duplicates kept", text: "[TASK_DONE:1] and again [TASK_DONE:1]", expected: []int{1, 1}},
		{name: "partial ignored", text: "almost [TASK_DONE:4", expected: nil},
		{name: "non numeric ignored", text: "[TASK_DONE:x]", expected: nil},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := ExtractTaskCompletions(testCase.text); !slices.Equal(got, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, got)
			}
		})
	}
}

func TestStripTaskMarkers(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "no markers", text: "  Plain text.  ", expected: "Plain text."},
		{name: "marker at end", text: "Great, done. [TASK_DONE:1]", expected: "Great, done."},
		{name: "marker at start", text: "[TASK_DONE:1] Next question.", expected: "Next question."},
		{name: "dangling prefix", text: "Sounds good [TASK_DONE:3", expected: "Sounds good"},
		{name: "dangling prefix without digits", text: "Sounds good [TASK_DONE:", expected: "Sounds good"},
		{name: "dangling suffix", text: "3] and so on", expected: "and so on"},
		{name: "marker mid sentence", text: "We can [TASK_DONE:4] move on.", expected: "We can move on."},
		{name: "only a marker", text: "[TASK_DONE:7]", expected: ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := StripTaskMarkers(testCase.text); got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestStripTaskMarkersIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"]]",
		"1]2] text",
		"text [TASK_DONE:1] [TASK_DONE:",
		"[TASK_DONE:[TASK_DONE:1]",
		"[TASK_DONE:1]3] tail",
		"  spaced [TASK_DONE:12]  out  ",
		"9] [TASK_DONE:2] [TASK_DONE:3",
		"Let's talk about [TASK_DONE:2] savings.",
	}

	for _, input := range inputs {
		once := StripTaskMarkers(input)
		if twice := StripTaskMarkers(once); twice != once {
			t.Fatalf("input %q: strip once %q, strip twice %q", input, once, twice)
		}
	}
}

func TestStreamingStripNeverShowsMarkerFragments(t *testing.T) {
	tokens := []string{"Perfect", ", noted", ". [TASK_DONE:", "2", "] What", " else?"}

	var response string
	for _, token := range tokens {
		response += token
		view := StripTaskMarkers(response)
		if strings.Contains(view, "TASK_DONE") || strings.Contains(view, "]") {
			t.Fatalf("partial view %q shows a marker fragment", view)
		}
	}

	if got := StripTaskMarkers(response); got != "Perfect, noted. What else?" {
		t.Fatalf("unexpected final view %q", got)
	}
}

func TestCompletionMarker(t *testing.T) {
	marker := CompletionMarker("5")
	if got := ExtractTaskCompletions("ok " + marker); !slices.Equal(got, []int{5}) {
		t.Fatalf("expected rendered marker to be extracted, got %v", got)
	}
	if got := StripTaskMarkers("Done " + marker + " next."); got != "Done next." {
		t.Fatalf("expected rendered marker to be stripped, got %q", got)
	}
}
