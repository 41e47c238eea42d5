// Package ai provides a provider-agnostic AI gateway with intent-tagged requests.
package ai

import "context"

// Intent is the purpose of a request to the model.
type Intent int

const (
	IntentStructure Intent = iota
	IntentLesson
	IntentGraph
	IntentExam
	IntentSpeech
	IntentChat
)

// Intents lists every intent in declaration order.
var Intents = []Intent{IntentStructure, IntentLesson, IntentGraph, IntentExam, IntentSpeech, IntentChat}

func (i Intent) String() string {
	switch i {
	case IntentStructure:
		return "structure-extraction"
	case IntentLesson:
		return "lesson-generation"
	case IntentGraph:
		return "graph-generation"
	case IntentExam:
		return "exam-generation"
	case IntentSpeech:
		return "speech-synthesis"
	case IntentChat:
		return "conversational-turn"
	default:
		return "unknown"
	}
}

// ParseIntent is the inverse of Intent.String.
func ParseIntent(s string) (Intent, bool) {
	for _, i := range Intents {
		if i.String() == s {
			return i, true
		}
	}
	return 0, false
}

// Attachment is inline binary data sent alongside a message (documents, images).
type Attachment struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Message represents a chat message.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SpeechConfig requests audio output instead of text.
type SpeechConfig struct {
	Voice string `json:"voice"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Intent      Intent    `json:"intent"`
	// ResponseSchema, when set, asks for JSON output of the given JSON-schema shape.
	ResponseSchema map[string]any `json:"response_schema,omitempty"`
	Speech         *SpeechConfig  `json:"speech,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string      `json:"content"`
	Audio        *Attachment `json:"audio,omitempty"`
	Model        string      `json:"model"`
	InputTokens  int         `json:"input_tokens"`
	OutputTokens int         `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}
