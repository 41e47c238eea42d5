package exam

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-course/internal/curriculum"
)

func fiveQuestions() []curriculum.ExamQuestion {
	qs := make([]curriculum.ExamQuestion, 5)
	for i := range qs {
		qs[i] = curriculum.ExamQuestion{
			ID:                 fmt.Sprintf("q%d", i+1),
			Question:           fmt.Sprintf("Question %d?", i+1),
			Options:            []string{"A", "B", "C", "D"},
			CorrectAnswerIndex: i % 4,
			Explanation:        "Because.",
		}
	}
	return qs
}

func TestExam_ScoreThreeOfFive(t *testing.T) {
	e := New(fiveQuestions())

	picks := map[string]int{
		"q1": 0, // correct
		"q2": 1, // correct
		"q3": 2, // correct
		"q4": 0, // wrong, correct is 3
		"q5": 3, // wrong, correct is 0
	}
	var err error
	for id, opt := range picks {
		if e, err = e.Select(id, opt); err != nil {
			t.Fatalf("Select(%s, %d) error = %v", id, opt, err)
		}
	}

	e, err = e.Submit()
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	r, err := e.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}

	if r.Score != 3 || r.Total != 5 {
		t.Errorf("score = %d/%d, want 3/5", r.Score, r.Total)
	}
	if r.Percent() != 60 {
		t.Errorf("Percent() = %v, want 60", r.Percent())
	}

	q4 := r.Questions[3]
	want := []Mark{MarkIncorrect, MarkUnselected, MarkUnselected, MarkCorrect}
	for i, m := range want {
		if q4.Marks[i] != m {
			t.Errorf("q4 option %d mark = %q, want %q", i, q4.Marks[i], m)
		}
	}
	if r.Questions[0].Marks[0] != MarkCorrect || !r.Questions[0].Correct {
		t.Errorf("q1 = %+v, want correct", r.Questions[0])
	}
}

func TestExam_SubmitBlockedUntilComplete(t *testing.T) {
	e := New(fiveQuestions())

	for i := 1; i <= 4; i++ {
		var err error
		e, err = e.Select(fmt.Sprintf("q%d", i), 0)
		if err != nil {
			t.Fatal(err)
		}
		if e.CanSubmit() {
			t.Fatalf("CanSubmit() = true with %d of 5 answered", i)
		}
	}

	if _, err := e.Submit(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Submit() error = %v, want ErrIncomplete", err)
	}
	if e.Submitted() {
		t.Error("failed submit should not change the status")
	}

	e, _ = e.Select("q5", 1)
	if !e.CanSubmit() {
		t.Error("CanSubmit() = false with every question answered")
	}
}

func TestExam_NoQuestions(t *testing.T) {
	e := New(nil)

	if e.CanSubmit() {
		t.Error("an empty exam should not be submittable")
	}
	if _, err := e.Submit(); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("Submit() error = %v, want ErrNoQuestions", err)
	}
	if _, err := e.Result(); !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("Result() error = %v, want ErrNotSubmitted", err)
	}
}

func TestExam_SelectRules(t *testing.T) {
	e := New(fiveQuestions())

	tests := []struct {
		name    string
		id      string
		option  int
		wantErr error
	}{
		{"valid", "q1", 2, nil},
		{"unknown question", "q9", 0, ErrUnknownQuestion},
		{"negative option", "q1", -1, ErrInvalidOption},
		{"option past end", "q1", 4, ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Select(tt.id, tt.option)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Select() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExam_ReselectOverwritesAndIsValueTyped(t *testing.T) {
	original := New(fiveQuestions())

	first, _ := original.Select("q1", 1)
	second, _ := first.Select("q1", 3)

	if got, _ := second.Answer("q1"); got != 3 {
		t.Errorf("answer = %d, want 3", got)
	}
	if got, _ := first.Answer("q1"); got != 1 {
		t.Errorf("earlier value changed to %d", got)
	}
	if original.Answered() != 0 {
		t.Errorf("original exam has %d answers, want 0", original.Answered())
	}
	if second.Answered() != 1 {
		t.Errorf("Answered() = %d, want 1", second.Answered())
	}
}

func TestExam_FrozenAfterSubmit(t *testing.T) {
	e := New(fiveQuestions()[:1])
	e, _ = e.Select("q1", 0)
	e, err := e.Submit()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Select("q1", 1); !errors.Is(err, ErrSubmitted) {
		t.Errorf("Select() after submit error = %v, want ErrSubmitted", err)
	}
	if _, err := e.Submit(); !errors.Is(err, ErrSubmitted) {
		t.Errorf("second Submit() error = %v, want ErrSubmitted", err)
	}
	if e.Status() != StatusSubmitted {
		t.Errorf("Status() = %q, want submitted", e.Status())
	}
}

func TestResult_WriteXLSX(t *testing.T) {
	e := New(fiveQuestions()[:2])
	e, _ = e.Select("q1", 0)
	e, _ = e.Select("q2", 3)
	e, _ = e.Submit()
	r, _ := e.Result()

	var buf bytes.Buffer
	if err := r.WriteXLSX(&buf, "Algebra"); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) < 5 {
		t.Fatalf("got %d rows, want header + 2 questions + blank + summary", len(rows))
	}
	if rows[0][1] != "Question" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][4] != "correct" || rows[2][4] != "incorrect" {
		t.Errorf("results = %q, %q", rows[1][4], rows[2][4])
	}
	if rows[2][2] != "D" || rows[2][3] != "B" {
		t.Errorf("q2 answers = %q / %q, want D / B", rows[2][2], rows[2][3])
	}
	last := rows[len(rows)-1]
	if last[0] != "Score" || last[2] != "1/2" {
		t.Errorf("summary row = %v", last)
	}
}
