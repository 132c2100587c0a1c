package nlu

import (
	"context"
	"strings"
	"time"

	log "log/slog"
)

const maxAttempts = 3

// Keyword tables for the local fallback classifier.
var navigationKeywords = []string{
	"navigate", "go", "take me", "drive", "directions", "find",
	"locate", "show", "search", "where is", "nearest",
}

var questionKeywords = []string{
	"what", "how", "why", "when", "who", "weather", "temperature",
	"tell me", "explain",
}

const fallbackAnswer = "I'm having trouble answering questions right now. Please try again in a moment."

// Chain is the AI-then-keyword fallback chain: rate-limited model calls
// with bounded exponential backoff, degrading to a local keyword
// classifier when the model stays unavailable or returns garbage.
type Chain struct {
	decider Decider
	limiter *Limiter
	sleep   func(time.Duration)
}

func NewChain(decider Decider, limiter *Limiter) *Chain {
	if limiter == nil {
		limiter = NewLimiter(MinCallInterval)
	}
	return &Chain{decider: decider, limiter: limiter, sleep: time.Sleep}
}

// Resolve always produces a Decision; the user interaction never fails
// outright because the model did.
func (c *Chain) Resolve(ctx context.Context, text string) Decision {
	c.limiter.Wait()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		d, err := c.decider.Decide(ctx, text)
		if err == nil {
			return d
		}
		lastErr = err
		if !IsRateLimited(err) || attempt == maxAttempts-1 {
			break
		}
		backoff := time.Duration(1<<(attempt+1)) * time.Second // 2s, 4s
		log.Debug("ai rate limited, backing off", "attempt", attempt+1, "backoff", backoff)
		c.sleep(backoff)
	}

	log.Warn("ai unavailable, using keyword fallback", "err", lastErr)
	return Fallback(text)
}

// Fallback buckets an utterance into navigate or question using keyword
// heuristics: travel verbs (or a short non-interrogative phrase) mean
// navigate, interrogatives mean question.
func Fallback(text string) Decision {
	lowered := strings.ToLower(text)

	hasNav := false
	for _, kw := range navigationKeywords {
		if strings.Contains(lowered, kw) {
			hasNav = true
			break
		}
	}
	hasQuestion := false
	for _, kw := range questionKeywords {
		if strings.Contains(lowered, kw) {
			hasQuestion = true
			break
		}
	}

	if hasNav || (!hasQuestion && len(strings.Fields(text)) <= 3) {
		return Decision{Action: "navigate", Location: text}
	}
	return Decision{Action: "answer", Response: fallbackAnswer}
}
