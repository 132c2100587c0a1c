package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

// Decision is the structured outcome of free-form intent resolution.
type Decision struct {
	Action   string `json:"action"` // "navigate" or "answer"
	Location string `json:"location,omitempty"`
	Response string `json:"response,omitempty"`
}

var (
	// ErrRateLimited marks a rate-limit-class failure from the model API.
	ErrRateLimited = errors.New("ai rate limited")
	// ErrMalformed marks a reply that did not contain a usable decision.
	ErrMalformed = errors.New("malformed ai response")
)

const systemPrompt = `You are Cosmo, a helpful AI navigation assistant. Analyze the user's request and respond with a JSON object.

If the user wants to navigate somewhere or find a location, respond with:
{"action": "navigate", "location": "extracted location name"}

If the user is asking a general question (about weather, facts, how-to, etc.), respond with:
{"action": "answer", "response": "your helpful answer here"}

Examples:
- "Take me to Starbucks" -> {"action": "navigate", "location": "Starbucks"}
- "Find the nearest gas station" -> {"action": "navigate", "location": "gas station"}
- "What's the weather like?" -> {"action": "answer", "response": "Let me check the weather for you..."}

Respond ONLY with the JSON object, no other text.`

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// Decider turns free-form text into a Decision.
type Decider interface {
	Decide(ctx context.Context, text string) (Decision, error)
}

// OpenAI is the model-backed decider.
type OpenAI struct {
	client openai.Client
}

func NewOpenAI(client openai.Client) *OpenAI {
	return &OpenAI{client: client}
}

func (o *OpenAI) Decide(ctx context.Context, text string) (Decision, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		Model: openai.ChatModelGPT5Nano,
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) && apierr.StatusCode == 429 {
			return Decision{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return Decision{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Decision{}, fmt.Errorf("%w: no choices", ErrMalformed)
	}

	return ParseDecision(resp.Choices[0].Message.Content)
}

// ParseDecision extracts the JSON object from a model reply and decodes it.
// Malformed output is an error, never a panic.
func ParseDecision(content string) (Decision, error) {
	raw := jsonObjectRe.FindString(content)
	if raw == "" {
		return Decision{}, fmt.Errorf("%w: no JSON object in %q", ErrMalformed, content)
	}

	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch d.Action {
	case "navigate":
		if strings.TrimSpace(d.Location) == "" {
			return Decision{}, fmt.Errorf("%w: navigate without location", ErrMalformed)
		}
	case "answer":
	default:
		return Decision{}, fmt.Errorf("%w: unknown action %q", ErrMalformed, d.Action)
	}
	return d, nil
}

// IsRateLimited classifies rate-limit errors, including the string forms
// some backends bury in generic errors.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) && apierr.StatusCode == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
