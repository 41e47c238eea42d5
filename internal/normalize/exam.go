package normalize

import (
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-course/internal/ai"
	"github.com/p-n-ai/pai-course/internal/curriculum"
)

const minOptions = 2

// Exam decodes an exam-generation response. The payload may be a bare array
// or an object with a "questions" array. Questions that cannot be scored
// (no text, fewer than two options, correct index out of range) are dropped.
func (n *Normalizer) Exam(raw string) ([]curriculum.ExamQuestion, error) {
	v, err := n.decode(ai.IntentExam, raw)
	if err != nil {
		return []curriculum.ExamQuestion{}, err
	}
	return examFrom(v), nil
}

func examFrom(v any) []curriculum.ExamQuestion {
	items := list(v)
	if items == nil {
		items = list(object(v)["questions"])
	}

	out := make([]curriculum.ExamQuestion, 0, len(items))
	seen := make(map[string]bool)
	dropped := 0
	for i, raw := range items {
		qm, ok := raw.(map[string]any)
		if !ok {
			dropped++
			continue
		}

		question := str(first(qm, "question", "prompt", "text"), "")
		options, okOpts := positional(qm["options"])
		correct, okIdx := integer(first(qm, "correctAnswerIndex", "correctIndex", "answerIndex"))
		if question == "" || !okOpts || len(options) < minOptions || !okIdx || correct < 0 || correct >= len(options) {
			dropped++
			continue
		}

		base := id(qm["id"])
		if base == "" {
			base = fmt.Sprintf("q%d", i+1)
		}
		out = append(out, curriculum.ExamQuestion{
			ID:                 uniqueID(base, seen),
			Question:           question,
			Options:            options,
			CorrectAnswerIndex: correct,
			Explanation:        str(qm["explanation"], ""),
		})
	}

	if dropped > 0 {
		slog.Warn("dropped unscorable exam questions", "dropped", dropped, "kept", len(out))
	}
	return out
}
