// Package session holds the state of one learner session and the loop that
// owns it. State changes only through Reduce; asynchronous work is described
// as effects and its results come back as events.
package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/p-n-ai/pai-course/internal/course"
	"github.com/p-n-ai/pai-course/internal/curriculum"
	"github.com/p-n-ai/pai-course/internal/exam"
)

var (
	ErrStale          = errors.New("result superseded by a newer request")
	ErrNoDocument     = errors.New("no course loaded")
	ErrEmptyDocument  = errors.New("document is empty")
	ErrUnknownModule  = errors.New("unknown module")
	ErrNoModule       = errors.New("no module selected")
	ErrNoLesson       = errors.New("no lesson to narrate")
	ErrChatBusy       = errors.New("waiting for the previous reply")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrUnhandledEvent = errors.New("unhandled event")
)

// chatFailureReply is appended to the transcript when a reply cannot be produced.
const chatFailureReply = "Sorry, I couldn't answer that just now. Please try again."

// Phase is the lifecycle stage of a session.
type Phase string

const (
	PhaseEmpty     Phase = "empty"
	PhaseIngesting Phase = "ingesting"
	PhaseReady     Phase = "ready"
	PhaseFailed    Phase = "failed"
)

// Slot is one asynchronous request lane. Only the latest request of a slot
// may update state.
type Slot int

const (
	SlotStructure Slot = iota
	SlotLesson
	SlotGraph
	SlotExam
	SlotSpeech
	SlotChat
	slotCount
)

var slotNames = [slotCount]string{"structure", "lesson", "graph", "exam", "speech", "chat"}

func (s Slot) String() string {
	if s < 0 || s >= slotCount {
		return fmt.Sprintf("slot(%d)", int(s))
	}
	return slotNames[s]
}

// Slots lists every slot.
func Slots() []Slot {
	out := make([]Slot, slotCount)
	for i := range out {
		out[i] = Slot(i)
	}
	return out
}

// State is a snapshot of the session. It is a value; Reduce never modifies
// the state it is given.
type State struct {
	Phase    Phase
	Document curriculum.Document
	Course   curriculum.CourseStructure
	// Failure is the learner-facing reason structure extraction failed.
	Failure string

	ModuleID string
	Depth    curriculum.Depth
	Lesson   curriculum.LessonContent

	Graph        curriculum.KnowledgeGraph
	// graphVersion changes whenever Graph is replaced.
	graphVersion Token

	Exam       exam.Exam
	ExamModule string

	Chat []curriculum.ChatMessage

	pending [slotCount]Token
	failed  [slotCount]string
	seq     Token
}

// Initial returns the state before any document is uploaded.
func Initial() State {
	return State{Phase: PhaseEmpty, Depth: curriculum.DepthStandard}
}

// Loading reports whether a request for the slot is in flight.
func (s State) Loading(slot Slot) bool { return s.pending[slot] != 0 }

// Pending returns the token of the in-flight request for the slot, or zero.
func (s State) Pending(slot Slot) Token { return s.pending[slot] }

// Error returns the learner-facing error of the slot's last request.
func (s State) Error(slot Slot) string { return s.failed[slot] }

// GraphVersion identifies the current Graph. It differs between any two
// graphs the session has held, and between a graph and the empty graph
// that follows a new upload.
func (s State) GraphVersion() Token { return s.graphVersion }

// HasLesson reports whether a lesson is current.
func (s State) HasLesson() bool { return s.Lesson.Text != "" }

func (s *State) issue(slot Slot) Token {
	s.seq++
	s.pending[slot] = s.seq
	s.failed[slot] = ""
	return s.seq
}

// settle accepts a result for slot if tok is the latest request.
func (s *State) settle(slot Slot, tok Token, err error) error {
	if tok == 0 || s.pending[slot] != tok {
		return fmt.Errorf("%s result %d: %w", slot, tok, ErrStale)
	}
	s.pending[slot] = 0
	s.failed[slot] = course.UserMessage(err)
	return nil
}

// Reduce applies ev to s and returns the next state with the effects to run.
// When ev is rejected the returned state equals s and err says why.
func Reduce(s State, ev Event) (State, []Effect, error) {
	next := s
	var effects []Effect
	var err error

	switch ev := ev.(type) {
	case DocumentUploaded:
		effects, err = next.upload(ev)
	case StructureLoaded:
		effects, err = next.structureLoaded(ev)
	case ModuleSelected:
		effects, err = next.selectModule(ev.ModuleID)
	case DepthChanged:
		effects, err = next.changeDepth(ev.Depth)
	case LessonLoaded:
		if err = next.settle(SlotLesson, ev.Token, ev.Err); err == nil {
			next.Lesson = ev.Lesson
			if ev.Err != nil {
				next.Lesson = curriculum.LessonContent{}
			}
		}
	case GraphLoaded:
		if err = next.settle(SlotGraph, ev.Token, ev.Err); err == nil {
			next.Graph = ev.Graph
			next.graphVersion = ev.Token
		}
	case ExamRequested:
		effects, err = next.requestExam()
	case ExamLoaded:
		if err = next.settle(SlotExam, ev.Token, ev.Err); err == nil {
			next.Exam = exam.New(ev.Questions)
			next.ExamModule = ev.ModuleID
		}
	case AnswerSelected:
		next.Exam, err = next.Exam.Select(ev.QuestionID, ev.Option)
	case ExamSubmitted:
		next.Exam, err = next.Exam.Submit()
	case ChatSent:
		effects, err = next.sendChat(ev)
	case ReplyReceived:
		err = next.receiveReply(ev)
	case SpeechRequested:
		if !next.HasLesson() {
			err = ErrNoLesson
			break
		}
		tok := next.issue(SlotSpeech)
		effects = []Effect{Synthesize{Token: tok, Text: next.Lesson.Text}}
	case SpeechReady:
		if err = next.settle(SlotSpeech, ev.Token, ev.Err); err == nil && ev.Err == nil {
			effects = []Effect{PlayAudio{Buffer: ev.Buffer}}
		}
	case PlaybackStopped:
		next.pending[SlotSpeech] = 0
		effects = []Effect{StopAudio{}}
	default:
		err = fmt.Errorf("%w: %T", ErrUnhandledEvent, ev)
	}

	if err != nil {
		return s, nil, err
	}
	return next, effects, nil
}

func (s *State) upload(ev DocumentUploaded) ([]Effect, error) {
	if ev.Document.Empty() {
		return nil, ErrEmptyDocument
	}

	doc := ev.Document.Fingerprinted()
	*s = State{
		Phase:    PhaseIngesting,
		Document: doc,
		Depth:    curriculum.DepthStandard,
		seq:      s.seq,
	}
	structure := s.issue(SlotStructure)
	graph := s.issue(SlotGraph)
	return []Effect{
		ResetSession{},
		ExtractStructure{Token: structure, Document: doc},
		FetchGraph{Token: graph, Document: doc},
	}, nil
}

func (s *State) structureLoaded(ev StructureLoaded) ([]Effect, error) {
	if err := s.settle(SlotStructure, ev.Token, ev.Err); err != nil {
		return nil, err
	}
	if ev.Err != nil {
		s.Phase = PhaseFailed
		s.Failure = course.UserMessage(ev.Err)
		return nil, nil
	}

	s.Phase = PhaseReady
	s.Course = ev.Course
	if len(s.Course.Modules) == 0 {
		return nil, nil
	}
	return s.selectModule(s.Course.Modules[0].ID)
}

func (s *State) selectModule(id string) ([]Effect, error) {
	if s.Phase != PhaseReady {
		return nil, ErrNoDocument
	}
	module, ok := s.Course.Module(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}
	s.ModuleID = id
	return s.fetchLesson(module), nil
}

func (s *State) changeDepth(depth curriculum.Depth) ([]Effect, error) {
	d, err := curriculum.ParseDepth(string(depth))
	if err != nil {
		return nil, err
	}
	s.Depth = d
	if s.Phase != PhaseReady || s.ModuleID == "" {
		return nil, nil
	}
	module, _ := s.Course.Module(s.ModuleID)
	return s.fetchLesson(module), nil
}

// fetchLesson replaces the current lesson with a request for a new one.
func (s *State) fetchLesson(module curriculum.Module) []Effect {
	s.Lesson = curriculum.LessonContent{}
	tok := s.issue(SlotLesson)
	return []Effect{FetchLesson{Token: tok, Document: s.Document, Module: module, Depth: s.Depth}}
}

func (s *State) requestExam() ([]Effect, error) {
	if s.Phase != PhaseReady {
		return nil, ErrNoDocument
	}
	module, ok := s.Course.Module(s.ModuleID)
	if !ok {
		return nil, ErrNoModule
	}
	s.Exam = exam.New(nil)
	s.ExamModule = module.ID
	tok := s.issue(SlotExam)
	return []Effect{FetchExam{Token: tok, Document: s.Document, Module: module}}, nil
}

func (s *State) sendChat(ev ChatSent) ([]Effect, error) {
	if s.Phase != PhaseReady {
		return nil, ErrNoDocument
	}
	if s.Loading(SlotChat) {
		return nil, ErrChatBusy
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" && ev.Image == nil {
		return nil, ErrEmptyMessage
	}

	history := s.Chat
	s.Chat = append(slices.Clip(s.Chat), curriculum.NewChatMessage(curriculum.RoleUser, text, ev.At))
	tok := s.issue(SlotChat)
	return []Effect{SendChat{
		Token:   tok,
		History: history,
		Message: text,
		Context: s.Lesson.Text,
		Image:   ev.Image,
	}}, nil
}

func (s *State) receiveReply(ev ReplyReceived) error {
	if err := s.settle(SlotChat, ev.Token, ev.Err); err != nil {
		return err
	}
	text := ev.Text
	if ev.Err != nil {
		text = chatFailureReply
	}
	s.Chat = append(slices.Clip(s.Chat), curriculum.NewChatMessage(curriculum.RoleAssistant, text, ev.At))
	return nil
}
