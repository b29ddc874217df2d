package conversations

import "testing"

func TestEchoGuardMatchesRecordedSpeech(t *testing.T) {
	guard := NewEchoGuard(DefaultEchoWindow)
	guard.Record("Thank you for calling.")

	if !guard.IsEcho("thank you for") {
		t.Fatalf("expected substring of recorded sentence to be an echo")
	}
	if guard.IsEcho("completely unrelated") {
		t.Fatalf("expected unrelated text not to be an echo")
	}
}

func TestEchoGuardIsCaseInsensitive(t *testing.T) {
	guard := NewEchoGuard(DefaultEchoWindow)
	guard.Record("We Offer Three Plans.")

	testCases := []struct {
		name     string
		text     string
		expected bool
	}{
		{name: "lower case prefix", text: "we offer", expected: true},
		{name: "upper case middle", text: "THREE PLANS", expected: true},
		{name: "surrounding whitespace", text: "  offer three  ", expected: true},
		{name: "longer than sentence", text: "we offer three plans and more", expected: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := guard.IsEcho(testCase.text); got != testCase.expected {
				t.Fatalf("IsEcho(%q) = %t, expected %t", testCase.text, got, testCase.expected)
			}
		})
	}
}

func TestEchoGuardEvictsOldestBeyondCapacity(t *testing.T) {
	guard := NewEchoGuard(3)
	guard.Record("first sentence")
	guard.Record("second sentence")
	guard.Record("third sentence")
	guard.Record("fourth sentence")

	if guard.IsEcho("first") {
		t.Fatalf("expected oldest sentence to be evicted")
	}
	if !guard.IsEcho("fourth") {
		t.Fatalf("expected newest sentence to be kept")
	}
	if got := len(guard.Sentences()); got != 3 {
		t.Fatalf("expected window of 3, got %d", got)
	}
}

func TestEchoGuardClear(t *testing.T) {
	guard := NewEchoGuard(DefaultEchoWindow)
	guard.Record("Hello there.")
	guard.Clear()

	if guard.IsEcho("hello") {
		t.Fatalf("expected cleared guard not to match")
	}
}

func TestEchoGuardShortFragmentsFalsePositive(t *testing.T) {
	guard := NewEchoGuard(DefaultEchoWindow)
	guard.Record("I can help you with that.")

	// A single common word matches even when the user really said it.
	if !guard.IsEcho("you") {
		t.Fatalf("expected short fragment to match a longer recorded sentence")
	}
}
