package responses

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	completionMarker      = regexp.MustCompile(`\[TASK_DONE:(\d+)\]`)
	completeMarkerCleanup = regexp.MustCompile(`\s*\[TASK_DONE:\d+\]\s*`)
	danglingMarkerPrefix  = regexp.MustCompile(`\s*\[TASK_DONE:\d*$`)
	danglingMarkerSuffix  = regexp.MustCompile(`^\d*\]\s*`)
)

// CompletionMarker renders the marker the model is asked to emit when the
// task with the given id is done. The id is taken as text so prompts can
// show a placeholder.
func CompletionMarker(taskID string) string {
	return "[TASK_DONE:" + taskID + "]"
}

// ExtractTaskCompletions returns the task ids of every complete completion
// marker in text, in order of appearance. Duplicates are kept.
func ExtractTaskCompletions(text string) []int {
	matches := completionMarker.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	ids := make([]int, 0, len(matches))
	for _, match := range matches {
		id, err := strconv.Atoi(match[1])
		if err != nil {
			// Digits that overflow int cannot name a configured task
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// StripTaskMarkers removes completion markers from text so it can be shown
// or spoken.
//
// Complete markers are replaced by a single space. A marker cut off at the end
// of the text (`... [TASK_DONE:3`) and the leftover tail of a marker at the
// start (`3] ...`) are removed, so text that is stripped while it is still
// streaming never shows marker fragments. The result is trimmed.
//
// Stripping is repeated until the text stops changing, which makes the
// function idempotent.
func StripTaskMarkers(text string) string {
	for {
		stripped := stripTaskMarkersOnce(text)
		if stripped == text {
			return stripped
		}
		text = stripped
	}
}

func stripTaskMarkersOnce(text string) string {
	text = completeMarkerCleanup.ReplaceAllString(text, " ")
	text = danglingMarkerPrefix.ReplaceAllString(text, "")
	text = danglingMarkerSuffix.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
