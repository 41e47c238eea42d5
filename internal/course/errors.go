package course

import (
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-course/internal/ai"
	"github.com/p-n-ai/pai-course/internal/normalize"
)

var (
	// ErrFatalIngest means no course structure could be read from the document.
	ErrFatalIngest = errors.New("course structure could not be extracted")
	// ErrServiceUnavailable means the AI call itself failed or was not attempted.
	ErrServiceUnavailable = errors.New("AI service unavailable")
	// ErrPlayback means synthesized audio could not be decoded or played.
	ErrPlayback = errors.New("audio playback failed")
)

// IntentError reports which intent failed and how. It unwraps to both the
// kind (ErrServiceUnavailable, normalize.ErrMalformedResponse, ErrPlayback)
// and the underlying cause.
type IntentError struct {
	Intent ai.Intent
	Kind   error
	Err    error
}

func (e *IntentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Intent, e.Err)
}

func (e *IntentError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindName returns a short label for the failure class of err.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrPlayback):
		return "playback"
	case errors.Is(err, normalize.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrServiceUnavailable):
		return "service"
	default:
		return "internal"
	}
}

// UserMessage turns an orchestrator error into text safe to show a learner.
// Raw service output never leaks through.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFatalIngest):
		return "We couldn't read a course outline from that document. Please try uploading it again."
	case errors.Is(err, ai.ErrBudgetExhausted):
		return "This session has used up its AI allowance. Upload the document again to start a new session."
	case errors.Is(err, ErrPlayback):
		return "Audio is unavailable right now."
	case errors.Is(err, normalize.ErrMalformedResponse):
		return "The tutor returned something we couldn't understand. Please try again."
	default:
		return "The tutor is unavailable right now. Please try again in a moment."
	}
}
