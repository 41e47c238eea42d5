package web

import (
	"time"

	"github.com/p-n-ai/pai-course/internal/curriculum"
	"github.com/p-n-ai/pai-course/internal/exam"
	"github.com/p-n-ai/pai-course/internal/session"
)

// view is the JSON rendering of a session snapshot.
type view struct {
	Phase    session.Phase               `json:"phase"`
	Failure  string                      `json:"failure,omitempty"`
	Document *documentView               `json:"document,omitempty"`
	Course   *curriculum.CourseStructure `json:"course,omitempty"`
	ModuleID string                      `json:"module_id,omitempty"`
	Depth    curriculum.Depth            `json:"depth"`
	Lesson   *curriculum.LessonContent   `json:"lesson,omitempty"`
	Graph    curriculum.KnowledgeGraph   `json:"graph"`
	Exam     *examView                   `json:"exam,omitempty"`
	Chat     []curriculum.ChatMessage    `json:"chat"`
	Loading  map[string]bool             `json:"loading"`
	Errors   map[string]string           `json:"errors,omitempty"`
	Audio    *audioView                  `json:"audio,omitempty"`
}

type documentView struct {
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	Size        int    `json:"size"`
	Fingerprint string `json:"fingerprint"`
}

// questionView hides the answer key until the exam is submitted.
type questionView struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type examView struct {
	ModuleID  string         `json:"module_id"`
	Status    exam.Status    `json:"status"`
	Questions []questionView `json:"questions"`
	Answers   map[string]int `json:"answers"`
	CanSubmit bool           `json:"can_submit"`
	Result    *exam.Result   `json:"result,omitempty"`
}

type audioView struct {
	ID         string    `json:"id"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
	EndsAt     time.Time `json:"ends_at"`
}

func newView(snap session.Snapshot) view {
	st := snap.State
	v := view{
		Phase:   st.Phase,
		Failure: st.Failure,
		Depth:   st.Depth,
		Graph:   st.Graph,
		Chat:    st.Chat,
		Loading: make(map[string]bool),
		Errors:  make(map[string]string),
	}
	if v.Graph.Nodes == nil {
		v.Graph.Nodes = []curriculum.Node{}
	}
	if v.Graph.Edges == nil {
		v.Graph.Edges = []curriculum.Edge{}
	}
	if v.Chat == nil {
		v.Chat = []curriculum.ChatMessage{}
	}
	for _, slot := range session.Slots() {
		v.Loading[slot.String()] = st.Loading(slot)
		if msg := st.Error(slot); msg != "" {
			v.Errors[slot.String()] = msg
		}
	}

	if !st.Document.Empty() {
		v.Document = &documentView{
			Name:        st.Document.Name,
			MimeType:    st.Document.MimeType,
			Size:        len(st.Document.Data),
			Fingerprint: st.Document.Fingerprint(),
		}
	}
	if st.Phase == session.PhaseReady {
		c := st.Course
		v.Course = &c
		v.ModuleID = st.ModuleID
	}
	if st.HasLesson() {
		l := st.Lesson
		v.Lesson = &l
	}
	if st.ExamModule != "" {
		v.Exam = newExamView(st.Exam, st.ExamModule)
	}
	if snap.Playing {
		v.Audio = &audioView{
			ID:         snap.Clip.ID,
			DurationMS: snap.Clip.Buffer.Duration().Milliseconds(),
			StartedAt:  snap.Clip.StartedAt,
			EndsAt:     snap.Clip.EndsAt(),
		}
	}
	return v
}

func newExamView(e exam.Exam, moduleID string) *examView {
	qs := e.Questions()
	ev := &examView{
		ModuleID:  moduleID,
		Status:    e.Status(),
		Questions: make([]questionView, len(qs)),
		Answers:   e.Answers(),
		CanSubmit: e.CanSubmit(),
	}
	for i, q := range qs {
		ev.Questions[i] = questionView{ID: q.ID, Question: q.Question, Options: q.Options}
	}
	if r, err := e.Result(); err == nil {
		ev.Result = &r
	}
	return ev
}
