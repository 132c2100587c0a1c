package intent

import (
	"strconv"
	"strings"
)

// numberWords maps spoken ordinals and cardinals to 0-based indices.
// Order matters: it mirrors announcement order, so "one" wins over "first"
// only by position, never by ambiguity.
var numberWords = []struct {
	word  string
	index int
}{
	{"one", 0}, {"first", 0}, {"1st", 0},
	{"two", 1}, {"second", 1}, {"2nd", 1},
	{"three", 2}, {"third", 2}, {"3rd", 2},
	{"four", 3}, {"fourth", 3}, {"4th", 3},
	{"five", 4}, {"fifth", 4}, {"5th", 4},
	{"six", 5}, {"sixth", 5}, {"6th", 5},
	{"seven", 6}, {"seventh", 6}, {"7th", 6},
	{"eight", 7}, {"eighth", 7}, {"8th", 7},
	{"nine", 8}, {"ninth", 8}, {"9th", 8},
	{"ten", 9}, {"tenth", 9}, {"10th", 9},
}

// OptionIndex extracts a 0-based option index from an utterance. A literal
// one- or two-digit token takes precedence over number words. Returns -1
// when no index is present.
func OptionIndex(text string) int {
	if text == "" {
		return -1
	}
	words := strings.Fields(strings.ToLower(text))

	for _, w := range words {
		trimmed := strings.Trim(w, ".,!?")
		if len(trimmed) == 0 || len(trimmed) > 2 {
			continue
		}
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n - 1
		}
	}

	for _, entry := range numberWords {
		for _, w := range words {
			if strings.Trim(w, ".,!?") == entry.word {
				return entry.index
			}
		}
	}
	return -1
}
