// Package exam holds the state of a practice exam attempt: answer selection,
// submission and scoring.
package exam

import (
	"errors"
	"fmt"
	"maps"

	"github.com/p-n-ai/pai-course/internal/curriculum"
)

var (
	ErrSubmitted       = errors.New("exam already submitted")
	ErrNotSubmitted    = errors.New("exam not submitted")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrInvalidOption   = errors.New("option out of range")
	ErrIncomplete      = errors.New("every question needs an answer before submitting")
	ErrNoQuestions     = errors.New("exam has no questions")
)

// Status is the lifecycle phase of an attempt.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusSubmitted  Status = "submitted"
)

// Exam is an attempt at a set of questions. It is a value: every transition
// returns a new Exam and leaves the receiver untouched.
type Exam struct {
	questions []curriculum.ExamQuestion
	answers   map[string]int
	status    Status
}

// New starts an attempt.
func New(questions []curriculum.ExamQuestion) Exam {
	return Exam{
		questions: append([]curriculum.ExamQuestion(nil), questions...),
		answers:   map[string]int{},
		status:    StatusInProgress,
	}
}

func (e Exam) Questions() []curriculum.ExamQuestion {
	return append([]curriculum.ExamQuestion(nil), e.questions...)
}

func (e Exam) Status() Status {
	if e.status == "" {
		return StatusInProgress
	}
	return e.status
}

func (e Exam) Submitted() bool { return e.status == StatusSubmitted }

// Answer returns the selected option for a question.
func (e Exam) Answer(questionID string) (int, bool) {
	v, ok := e.answers[questionID]
	return v, ok
}

// Answers returns a copy of the selections keyed by question id.
func (e Exam) Answers() map[string]int {
	return maps.Clone(e.answers)
}

// Answered returns how many questions have a selection.
func (e Exam) Answered() int { return len(e.answers) }

func (e Exam) question(id string) (curriculum.ExamQuestion, bool) {
	for _, q := range e.questions {
		if q.ID == id {
			return q, true
		}
	}
	return curriculum.ExamQuestion{}, false
}

// Select records an answer, replacing any earlier one for the question.
func (e Exam) Select(questionID string, option int) (Exam, error) {
	if e.Submitted() {
		return e, ErrSubmitted
	}
	q, ok := e.question(questionID)
	if !ok {
		return e, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if option < 0 || option >= len(q.Options) {
		return e, fmt.Errorf("%w: %d of %d", ErrInvalidOption, option, len(q.Options))
	}

	next := e
	next.answers = maps.Clone(e.answers)
	if next.answers == nil {
		next.answers = map[string]int{}
	}
	next.answers[questionID] = option
	return next, nil
}

// CanSubmit reports whether every question has an answer.
func (e Exam) CanSubmit() bool {
	return e.check() == nil
}

func (e Exam) check() error {
	switch {
	case e.Submitted():
		return ErrSubmitted
	case len(e.questions) == 0:
		return ErrNoQuestions
	}
	for _, q := range e.questions {
		if _, ok := e.answers[q.ID]; !ok {
			return ErrIncomplete
		}
	}
	return nil
}

// Submit freezes the answers.
func (e Exam) Submit() (Exam, error) {
	if err := e.check(); err != nil {
		return e, err
	}
	next := e
	next.answers = maps.Clone(e.answers)
	next.status = StatusSubmitted
	return next, nil
}

// Mark annotates one option of a submitted question.
type Mark string

const (
	MarkCorrect    Mark = "correct"
	MarkIncorrect  Mark = "incorrect"
	MarkUnselected Mark = "unselected"
)

// QuestionResult is the outcome of one question.
type QuestionResult struct {
	Question curriculum.ExamQuestion `json:"question"`
	Selected int                     `json:"selected"`
	Correct  bool                    `json:"correct"`
	Marks    []Mark                  `json:"marks"`
}

// Result is the scored attempt.
type Result struct {
	Score     int              `json:"score"`
	Total     int              `json:"total"`
	Questions []QuestionResult `json:"questions"`
}

// Percent returns the score as a percentage of the total.
func (r Result) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Score) * 100 / float64(r.Total)
}

// Result scores a submitted attempt.
func (e Exam) Result() (Result, error) {
	if !e.Submitted() {
		return Result{}, ErrNotSubmitted
	}

	r := Result{Total: len(e.questions), Questions: make([]QuestionResult, len(e.questions))}
	for i, q := range e.questions {
		sel := e.answers[q.ID]
		qr := QuestionResult{
			Question: q,
			Selected: sel,
			Correct:  sel == q.CorrectAnswerIndex,
			Marks:    make([]Mark, len(q.Options)),
		}
		for j := range q.Options {
			switch {
			case j == q.CorrectAnswerIndex:
				qr.Marks[j] = MarkCorrect
			case j == sel:
				qr.Marks[j] = MarkIncorrect
			default:
				qr.Marks[j] = MarkUnselected
			}
		}
		if qr.Correct {
			r.Score++
		}
		r.Questions[i] = qr
	}
	return r, nil
}
