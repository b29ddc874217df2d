package responses

import "strings"

const sentenceTerminators = ".!?:;"

// ExtractCompleteSentences splits buffer after the right-most sentence
// terminator that is followed by a space or ends the buffer.
//
// complete holds everything up to and including the terminator, trimmed.
// remainder holds the rest with leading whitespace removed. When buffer has no
// such terminator it is returned unchanged as the remainder.
func ExtractCompleteSentences(buffer string) (complete string, remainder string) {
	end := -1
	for i := len(buffer) - 1; i >= 0; i-- {
		if !strings.ContainsRune(sentenceTerminators, rune(buffer[i])) {
			continue
		}
		if i == len(buffer)-1 || buffer[i+1] == ' ' {
			end = i
			break
		}
	}

	if end < 0 {
		return "", buffer
	}

	return strings.TrimSpace(buffer[:end+1]), strings.TrimLeft(buffer[end+1:], " \t\r\n")
}

// MinSpeakableLength is the length a sentence has to exceed before it is
// sent to synthesis on its own. Shorter fragments stay in the buffer.
const MinSpeakableLength = 3

// IsSpeakable reports whether sentence is long enough to be spoken alone.
func IsSpeakable(sentence string) bool {
	return len(sentence) > MinSpeakableLength
}
