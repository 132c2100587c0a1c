package intent

import "testing"

func TestStopOverrideBypassesWakeWord(t *testing.T) {
	// Navigating with no wake word and passive mode: "stop" must still win.
	in := Resolve("please stop", Snapshot{Navigating: true})
	if in.Kind != StopNavigation {
		t.Fatalf("expected stop-navigation, got %s", in.Kind)
	}
}

func TestStopIgnoredWhenNotNavigating(t *testing.T) {
	in := Resolve("please stop", Snapshot{})
	if in.Kind != None {
		t.Fatalf("expected none, got %s", in.Kind)
	}
}

func TestPassiveRequiresWakeWord(t *testing.T) {
	in := Resolve("find a coffee shop", Snapshot{})
	if in.Kind != None {
		t.Fatalf("expected discard without wake word, got %s", in.Kind)
	}
}

func TestFreeformAfterWakeWord(t *testing.T) {
	in := Resolve("hey cosmo coffee shop", Snapshot{})
	if in.Kind != Freeform {
		t.Fatalf("expected freeform, got %s", in.Kind)
	}
	if in.Query != "coffee shop" {
		t.Fatalf("expected query %q, got %q", "coffee shop", in.Query)
	}
}

func TestBareWakeWordPrompts(t *testing.T) {
	in := Resolve("cosmo", Snapshot{})
	if in.Kind != Prompt {
		t.Fatalf("expected prompt, got %s", in.Kind)
	}
	in = Resolve("hey cosmo please", Snapshot{})
	if in.Kind != Prompt {
		t.Fatalf("expected prompt after fillers, got %s", in.Kind)
	}
}

func TestActiveModeSkipsWakeWord(t *testing.T) {
	in := Resolve("three", Snapshot{Active: true, Candidates: 5})
	if in.Kind != Select {
		t.Fatalf("expected select, got %s", in.Kind)
	}
	if in.Index != 2 {
		t.Fatalf("expected index 2, got %d", in.Index)
	}
}

func TestSelectionNeedsCandidates(t *testing.T) {
	in := Resolve("three", Snapshot{Active: true})
	if in.Kind == Select {
		t.Fatalf("selection without candidates should not resolve")
	}
}

func TestRepeatOnlyWhileNavigating(t *testing.T) {
	in := Resolve("cosmo repeat that", Snapshot{Navigating: false})
	if in.Kind == Repeat {
		t.Fatalf("repeat should require navigation")
	}
	in = Resolve("cosimo again", Snapshot{Navigating: true, HasRoute: true})
	if in.Kind != Repeat {
		t.Fatalf("expected repeat, got %s", in.Kind)
	}
}

func TestStartNavigationNeedsRoute(t *testing.T) {
	in := Resolve("cosmo start navigation", Snapshot{})
	if in.Kind == StartNavigation {
		t.Fatalf("start should require a route")
	}
	in = Resolve("cosmo start navigation", Snapshot{HasRoute: true})
	if in.Kind != StartNavigation {
		t.Fatalf("expected start-navigation, got %s", in.Kind)
	}
	in = Resolve("cosmo start navigation", Snapshot{HasRoute: true, Navigating: true})
	if in.Kind == StartNavigation {
		t.Fatalf("start while navigating should not resolve")
	}
}

func TestStartPrecedesSelection(t *testing.T) {
	// "start" should not be misheard as an option number even with
	// candidates on screen.
	in := Resolve("start", Snapshot{Active: true, HasRoute: true, Candidates: 3})
	if in.Kind != StartNavigation {
		t.Fatalf("expected start-navigation, got %s", in.Kind)
	}
}

func TestTravelModeSwitch(t *testing.T) {
	in := Resolve("cosmo switch to walking", Snapshot{})
	if in.Kind != TravelMode || in.Mode != "walking" {
		t.Fatalf("expected walking travel-mode, got %s/%s", in.Kind, in.Mode)
	}
	in = Resolve("take the bus", Snapshot{Active: true})
	if in.Kind != TravelMode || in.Mode != "transit" {
		t.Fatalf("expected transit travel-mode, got %s/%s", in.Kind, in.Mode)
	}
}

func TestRepeatOptions(t *testing.T) {
	in := Resolve("cosmo repeat the options", Snapshot{Candidates: 3})
	if in.Kind != RepeatOptions {
		t.Fatalf("expected repeat-options, got %s", in.Kind)
	}
}

func TestHelp(t *testing.T) {
	in := Resolve("cosmo help", Snapshot{})
	if in.Kind != Help {
		t.Fatalf("expected help, got %s", in.Kind)
	}
}

func TestEmptyTranscript(t *testing.T) {
	if in := Resolve("   ", Snapshot{Active: true}); in.Kind != None {
		t.Fatalf("expected none, got %s", in.Kind)
	}
}
