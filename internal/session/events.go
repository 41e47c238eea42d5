package session

import (
	"time"

	"github.com/p-n-ai/pai-course/internal/audio"
	"github.com/p-n-ai/pai-course/internal/curriculum"
)

// Token identifies one request issued for a slot.
type Token uint64

// Event is an input to Reduce: a user action or the result of an effect.
type Event interface{ isEvent() }

// DocumentUploaded starts a new session for the document.
type DocumentUploaded struct{ Document curriculum.Document }

// StructureLoaded carries the result of structure extraction.
type StructureLoaded struct {
	Token  Token
	Course curriculum.CourseStructure
	Err    error
}

// ModuleSelected picks the module whose lesson is shown.
type ModuleSelected struct{ ModuleID string }

// DepthChanged changes lesson verbosity.
type DepthChanged struct{ Depth curriculum.Depth }

// LessonLoaded carries a generated lesson.
type LessonLoaded struct {
	Token  Token
	Lesson curriculum.LessonContent
	Err    error
}

// GraphLoaded carries the knowledge graph.
type GraphLoaded struct {
	Token Token
	Graph curriculum.KnowledgeGraph
	Err   error
}

// ExamRequested asks for a practice exam on the selected module.
type ExamRequested struct{}

// ExamLoaded carries generated exam questions.
type ExamLoaded struct {
	Token     Token
	ModuleID  string
	Questions []curriculum.ExamQuestion
	Err       error
}

// AnswerSelected picks an option for a question.
type AnswerSelected struct {
	QuestionID string
	Option     int
}

// ExamSubmitted freezes the exam and scores it.
type ExamSubmitted struct{}

// ChatSent is a learner message, optionally with an image.
type ChatSent struct {
	Text  string
	Image *curriculum.Attachment
	At    time.Time
}

// ReplyReceived carries the tutor's reply.
type ReplyReceived struct {
	Token Token
	Text  string
	Err   error
	At    time.Time
}

// SpeechRequested asks for the current lesson to be narrated.
type SpeechRequested struct{}

// SpeechReady carries synthesized audio.
type SpeechReady struct {
	Token  Token
	Buffer audio.Buffer
	Err    error
}

// PlaybackStopped stops narration and abandons any pending synthesis.
type PlaybackStopped struct{}

func (DocumentUploaded) isEvent() {}
func (StructureLoaded) isEvent()  {}
func (ModuleSelected) isEvent()   {}
func (DepthChanged) isEvent()     {}
func (LessonLoaded) isEvent()     {}
func (GraphLoaded) isEvent()      {}
func (ExamRequested) isEvent()    {}
func (ExamLoaded) isEvent()       {}
func (AnswerSelected) isEvent()   {}
func (ExamSubmitted) isEvent()    {}
func (ChatSent) isEvent()         {}
func (ReplyReceived) isEvent()    {}
func (SpeechRequested) isEvent()  {}
func (SpeechReady) isEvent()      {}
func (PlaybackStopped) isEvent()  {}

// Effect is work requested by Reduce and carried out by the session loop.
type Effect interface{ isEffect() }

// ResetSession releases per-session resources such as audio and token budget.
type ResetSession struct{}

type ExtractStructure struct {
	Token    Token
	Document curriculum.Document
}

type FetchGraph struct {
	Token    Token
	Document curriculum.Document
}

type FetchLesson struct {
	Token    Token
	Document curriculum.Document
	Module   curriculum.Module
	Depth    curriculum.Depth
}

type FetchExam struct {
	Token    Token
	Document curriculum.Document
	Module   curriculum.Module
}

type SendChat struct {
	Token   Token
	History []curriculum.ChatMessage
	Message string
	Context string
	Image   *curriculum.Attachment
}

type Synthesize struct {
	Token Token
	Text  string
}

type PlayAudio struct{ Buffer audio.Buffer }

type StopAudio struct{}

func (ResetSession) isEffect()     {}
func (ExtractStructure) isEffect() {}
func (FetchGraph) isEffect()       {}
func (FetchLesson) isEffect()      {}
func (FetchExam) isEffect()        {}
func (SendChat) isEffect()         {}
func (Synthesize) isEffect()       {}
func (PlayAudio) isEffect()        {}
func (StopAudio) isEffect()        {}
