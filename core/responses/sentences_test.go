package responses

import (
	"strings"
	"testing"
)

func TestExtractCompleteSentences(t *testing.T) {
	testCases := []struct {
		name              string
		buffer            string
		expectedComplete  string
		expectedRemainder string
	}{
		{name: "no terminator", buffer: "Hello there", expectedComplete: "", expectedRemainder: "Hello there"},
		{name: "terminator at end", buffer: "Hello there!", expectedComplete: "Hello there!", expectedRemainder: ""},
		{name: "terminator followed by space", buffer: "Hello there! How", expectedComplete: "Hello there!", expectedRemainder: "How"},
		{name: "right-most terminator wins", buffer: "One. Two? Three", expectedComplete: "One. Two?", expectedRemainder: "Three"},
		{name: "decimal point is not a boundary", buffer: "It costs 3.50 a month", expectedComplete: "", expectedRemainder: "It costs 3.50 a month"},
		{name: "colon and semicolon", buffer: "Options: one; two", expectedComplete: "Options: one;", expectedRemainder: "two"},
		{name: "leading whitespace trimmed from complete", buffer: "  Sure. ", expectedComplete: "Sure.", expectedRemainder: ""},
		{name: "empty", buffer: "", expectedComplete: "", expectedRemainder: ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			complete, remainder := ExtractCompleteSentences(testCase.buffer)
			if complete != testCase.expectedComplete {
				t.Fatalf("expected complete %q, got %q", testCase.expectedComplete, complete)
			}
			if remainder != testCase.expectedRemainder {
				t.Fatalf("expected remainder %q, got %q", testCase.expectedRemainder, remainder)
			}
		})
	}
}

func TestExtractCompleteSentencesLosesOnlyWhitespace(t *testing.T) {
	buffers := []string{
		"Hello there! How are you? I am",
		"a.b. c",
		"Wait; what: ok",
		"   leading. trailing   ",
		"no terminators here at all",
		"...",
		"!!! ??? ;;;",
	}

	for _, buffer := range buffers {
		complete, remainder := ExtractCompleteSentences(buffer)
		if got, expected := squash(complete+remainder), squash(buffer); got != expected {
			t.Fatalf("buffer %q: expected %q after rejoining, got %q", buffer, expected, got)
		}
	}
}

func TestTokenStreamYieldsEverySentenceOnce(t *testing.T) {
	tokens := []string{"Hello", " there", "! How", " are you?"}

	type extraction struct{ complete, remainder string }
	expected := []extraction{
		{complete: "", remainder: "Hello"},
		{complete: "", remainder: "Hello there"},
		{complete: "Hello there!", remainder: "How"},
		{complete: "How are you?", remainder: ""},
	}

	var (
		buffer    string
		sentences []string
	)
	for i, token := range tokens {
		buffer += token
		complete, remainder := ExtractCompleteSentences(buffer)
		if complete != expected[i].complete || remainder != expected[i].remainder {
			t.Fatalf("token %d (%q): expected (%q, %q), got (%q, %q)",
				i, token, expected[i].complete, expected[i].remainder, complete, remainder)
		}
		if complete != "" {
			sentences = append(sentences, complete)
		}
		buffer = remainder
	}

	if got := strings.Join(sentences, "|"); got != "Hello there!|How are you?" {
		t.Fatalf("unexpected sentences %q", got)
	}
}

func TestIsSpeakable(t *testing.T) {
	if IsSpeakable("Ok.") {
		t.Fatalf("expected three character sentence to be too short")
	}
	if !IsSpeakable("Sure.") {
		t.Fatalf("expected five character sentence to be speakable")
	}
}

func squash(text string) string {
	return strings.Join(strings.Fields(text), "")
}
