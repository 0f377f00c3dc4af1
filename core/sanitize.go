package orchestration

import (
	"regexp"
	"strings"
)

const thinkCloseTag = "</think>"

var emojiPattern = regexp.MustCompile(`[` +
	`\x{01F600}-\x{01F64F}` + // emoticons
	`\x{01F300}-\x{01F5FF}` + // symbols & pictographs
	`\x{01F680}-\x{01F6FF}` + // transport & map symbols
	`\x{01F1E0}-\x{01F1FF}` + // flags
	`\x{002702}-\x{0027B0}` +
	`\x{0024C2}-\x{01F251}` +
	`]+`)

// sanitizeSpokenText cleans model output before it is handed to the speech
// synthesizer: reasoning models prefix their answer with a <think> block, and
// emoji make synthesizers read out code points.
func sanitizeSpokenText(text string) string {
	if i := strings.Index(text, thinkCloseTag); i != -1 {
		text = text[i+len(thinkCloseTag):]
	}

	return strings.TrimSpace(emojiPattern.ReplaceAllString(text, ""))
}
