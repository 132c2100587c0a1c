package intent

import (
	"strings"
	"unicode"
)

// Wake phrase variants, including the misrecognitions the transcription
// service tends to produce for "cosmo".
var wakeVariants = []string{"cosmo", "cosimo", "cosmos"}

var leadingFillers = []string{"can you", "could you", "please"}

// normalize lowercases text and collapses punctuation to spaces so the
// matchers below can work on whole words.
func normalize(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// HasWakeWord reports whether the transcript contains a wake phrase variant
// as a whole word.
func HasWakeWord(text string) bool {
	_, _, ok := findWakeWord(normalize(text))
	return ok
}

func findWakeWord(normalized string) (start, end int, ok bool) {
	words := strings.Fields(normalized)
	pos := 0
	for _, w := range words {
		for _, v := range wakeVariants {
			if w == v {
				return pos, pos + len(w), true
			}
		}
		pos += len(w) + 1
	}
	return 0, 0, false
}

// CommandAfterWake strips everything up to and including the wake phrase,
// then drops leading filler words. Returns "" when the transcript holds no
// wake phrase or nothing follows it.
func CommandAfterWake(text string) string {
	normalized := normalize(text)
	_, end, ok := findWakeWord(normalized)
	if !ok {
		return ""
	}
	rest := strings.TrimSpace(normalized[min(end, len(normalized)):])
	for changed := true; changed; {
		changed = false
		for _, filler := range leadingFillers {
			if rest == filler {
				rest = ""
				changed = true
				continue
			}
			if strings.HasPrefix(rest, filler+" ") {
				rest = strings.TrimSpace(rest[len(filler):])
				changed = true
			}
		}
	}
	return rest
}

func containsWord(text, word string) bool {
	for _, w := range strings.Fields(normalize(text)) {
		if w == word {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	normalized := normalize(text)
	for _, p := range phrases {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}
