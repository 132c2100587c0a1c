package intent

import "strings"

// Kind identifies what a transcript resolved to.
type Kind int

const (
	// None means the transcript is discarded (no wake word in passive
	// mode, or nothing usable in it).
	None Kind = iota
	// Prompt means the wake phrase arrived bare: acknowledge and enter
	// active listening for the follow-up command.
	Prompt
	StopNavigation
	Repeat
	StartNavigation
	Select
	TravelMode
	Help
	RepeatOptions
	// Freeform goes to the AI-then-keyword fallback chain.
	Freeform
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Prompt:
		return "prompt"
	case StopNavigation:
		return "stop-navigation"
	case Repeat:
		return "repeat"
	case StartNavigation:
		return "start-navigation"
	case Select:
		return "select"
	case TravelMode:
		return "travel-mode"
	case Help:
		return "help"
	case RepeatOptions:
		return "repeat-options"
	case Freeform:
		return "freeform"
	}
	return "unknown"
}

// Intent is a resolved transcript.
type Intent struct {
	Kind  Kind
	Index int    // 0-based candidate index for Select
	Mode  string // "walking" or "transit" for TravelMode
	Query string // remainder text for Freeform
}

// Snapshot is the slice of session state the router needs. The caller takes
// it on the session loop so the router itself stays pure.
type Snapshot struct {
	Navigating bool
	HasRoute   bool
	Candidates int
	Active     bool // active listening mode, no wake word required
}

var startPhrases = []string{
	"start navigation",
	"begin navigation",
	"start navigating",
	"begin navigating",
	"navigate",
	"let s navigate",
	"let s go",
	"start the navigation",
	"begin the navigation",
	"start",
	"begin",
	"go",
}

var walkingPhrases = []string{
	"walking mode", "walk mode", "use walking", "switch to walking",
	"change to walking", "enable walking", "activate walking",
	"pedestrian mode", "on foot", "by foot",
}

var transitPhrases = []string{
	"transit mode", "use transit", "switch to transit", "change to transit",
	"enable transit", "activate transit", "public transit",
	"use bus", "use train", "use subway", "use metro",
	"take the bus", "take the train", "take the subway", "take transit",
	"bus mode", "train mode", "subway mode",
}

var repeatWords = []string{"repeat", "again", "what"}

// rule is one row of the precedence table. Rules run in order against the
// extracted command; the first match wins.
type rule struct {
	name    string
	resolve func(cmd string, snap Snapshot) (Intent, bool)
}

var rules = []rule{
	{"repeat", func(cmd string, snap Snapshot) (Intent, bool) {
		if !snap.Navigating {
			return Intent{}, false
		}
		for _, w := range repeatWords {
			if containsWord(cmd, w) {
				return Intent{Kind: Repeat}, true
			}
		}
		return Intent{}, false
	}},
	{"start-navigation", func(cmd string, snap Snapshot) (Intent, bool) {
		if !snap.HasRoute || snap.Navigating {
			return Intent{}, false
		}
		if containsAny(cmd, startPhrases) {
			return Intent{Kind: StartNavigation}, true
		}
		return Intent{}, false
	}},
	{"select", func(cmd string, snap Snapshot) (Intent, bool) {
		if snap.Candidates == 0 {
			return Intent{}, false
		}
		if idx := OptionIndex(cmd); idx >= 0 {
			return Intent{Kind: Select, Index: idx}, true
		}
		return Intent{}, false
	}},
	{"travel-mode", func(cmd string, _ Snapshot) (Intent, bool) {
		walking := containsAny(cmd, walkingPhrases)
		transit := containsAny(cmd, transitPhrases)
		switch {
		case walking && !transit:
			return Intent{Kind: TravelMode, Mode: "walking"}, true
		case transit && !walking:
			return Intent{Kind: TravelMode, Mode: "transit"}, true
		}
		return Intent{}, false
	}},
	{"repeat-options", func(cmd string, _ Snapshot) (Intent, bool) {
		if !containsAny(cmd, []string{"repeat", "list", "what are"}) {
			return Intent{}, false
		}
		if containsAny(cmd, []string{"option", "result", "choice"}) {
			return Intent{Kind: RepeatOptions}, true
		}
		return Intent{}, false
	}},
	{"help", func(cmd string, _ Snapshot) (Intent, bool) {
		if containsWord(cmd, "help") || containsWord(cmd, "commands") ||
			normalize(cmd) == "what can you do" {
			return Intent{Kind: Help}, true
		}
		return Intent{}, false
	}},
}

// Resolve routes a raw transcript against the current session snapshot.
//
// Precedence: the stop override runs first and ignores wake-word and mode
// entirely. Active mode treats the whole transcript as a command; passive
// mode requires a wake phrase and strips it. The remaining rules run in
// table order, and anything left over becomes Freeform (or Prompt when the
// wake phrase arrived with nothing after it).
func Resolve(transcript string, snap Snapshot) Intent {
	if strings.TrimSpace(transcript) == "" {
		return Intent{Kind: None}
	}

	if snap.Navigating && containsWord(transcript, "stop") {
		return Intent{Kind: StopNavigation}
	}

	var cmd string
	switch {
	case snap.Active:
		cmd = normalize(transcript)
	case HasWakeWord(transcript):
		cmd = CommandAfterWake(transcript)
	default:
		return Intent{Kind: None}
	}

	if cmd == "" {
		if snap.Active {
			return Intent{Kind: None}
		}
		return Intent{Kind: Prompt}
	}

	for _, r := range rules {
		if in, ok := r.resolve(cmd, snap); ok {
			return in
		}
	}
	return Intent{Kind: Freeform, Query: cmd}
}
