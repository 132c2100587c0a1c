package nlu

import (
	"errors"
	"testing"
)

func TestParseDecisionNavigate(t *testing.T) {
	d, err := ParseDecision(`{"action": "navigate", "location": "coffee shop"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Action != "navigate" || d.Location != "coffee shop" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionAnswer(t *testing.T) {
	d, err := ParseDecision(`{"action": "answer", "response": "It is sunny."}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Action != "answer" || d.Response != "It is sunny." {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionEmbeddedJSON(t *testing.T) {
	// Models wrap the object in prose and code fences; the object still
	// has to come out.
	content := "Sure! Here you go:\n```json\n{\"action\": \"navigate\", \"location\": \"station\"}\n```"
	d, err := ParseDecision(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Location != "station" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionMalformed(t *testing.T) {
	cases := []string{
		"",
		"no json here",
		`{"action": "dance"}`,
		`{"action": "navigate"}`, // navigate without location
		`{broken`,
	}
	for _, content := range cases {
		if _, err := ParseDecision(content); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseDecision(%q): expected ErrMalformed, got %v", content, err)
		}
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(ErrRateLimited) {
		t.Fatalf("sentinel not detected")
	}
	if !IsRateLimited(errors.New("server returned 429 Too Many Requests")) {
		t.Fatalf("429 string not detected")
	}
	if !IsRateLimited(errors.New("RESOURCE_EXHAUSTED: quota")) {
		t.Fatalf("RESOURCE_EXHAUSTED not detected")
	}
	if IsRateLimited(errors.New("connection refused")) {
		t.Fatalf("false positive")
	}
	if IsRateLimited(nil) {
		t.Fatalf("nil should not be rate limited")
	}
}
