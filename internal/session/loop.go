package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-course/internal/audio"
	"github.com/p-n-ai/pai-course/internal/curriculum"
)

// ErrClosed is returned once the session loop has stopped.
var ErrClosed = errors.New("session closed")

// Orchestrator performs the AI requests behind effects.
type Orchestrator interface {
	ExtractStructure(ctx context.Context, doc curriculum.Document) (curriculum.CourseStructure, error)
	GenerateLesson(ctx context.Context, doc curriculum.Document, module curriculum.Module, depth curriculum.Depth) (curriculum.LessonContent, error)
	GenerateGraph(ctx context.Context, doc curriculum.Document) (curriculum.KnowledgeGraph, error)
	GenerateExam(ctx context.Context, doc curriculum.Document, module curriculum.Module) ([]curriculum.ExamQuestion, error)
	SynthesizeSpeech(ctx context.Context, text string) (audio.Buffer, error)
	Converse(ctx context.Context, history []curriculum.ChatMessage, message, lessonContext string, image *curriculum.Attachment) (string, error)
}

// Snapshot is a read-only view of the session at one moment.
type Snapshot struct {
	State State
	// Clip is the audio currently playing, if Playing.
	Clip    audio.Clip
	Playing bool
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source for message timestamps and playback.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithResetHook runs fn whenever a new document starts a new session.
func WithResetHook(fn func()) Option {
	return func(s *Session) { s.onReset = fn }
}

// WithTrace calls fn with every event the loop reduces and its outcome.
func WithTrace(fn func(Event, error)) Option {
	return func(s *Session) { s.trace = fn }
}

type command struct {
	event Event
	reply chan error
}

// Session owns one State. Run is the only goroutine that touches it; other
// goroutines talk to it through Dispatch and Snapshot.
type Session struct {
	orch    Orchestrator
	now     func() time.Time
	onReset func()
	trace   func(Event, error)
	player  *audio.Player

	commands chan command
	queries  chan chan Snapshot
	results  chan Event
	done     chan struct{}
	effects  sync.WaitGroup
}

// New creates a session. Call Run to start it.
func New(orch Orchestrator, opts ...Option) *Session {
	s := &Session{
		orch:     orch,
		now:      time.Now,
		commands: make(chan command),
		queries:  make(chan chan Snapshot),
		results:  make(chan Event, 16),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.player = audio.NewPlayer(s.now)
	return s
}

// Run processes events until ctx is cancelled. In-flight effects are
// cancelled and audio is released before Run returns.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	effCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.effects.Wait()
		s.player.Stop()
	}()

	state := Initial()
	slog.Info("session loop started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("session loop stopped")
			return nil
		case cmd := <-s.commands:
			var err error
			state, err = s.step(effCtx, state, cmd.event)
			cmd.reply <- err
		case ev := <-s.results:
			state, _ = s.step(effCtx, state, ev)
		case reply := <-s.queries:
			clip, playing := s.player.Current()
			reply <- Snapshot{State: state, Clip: clip, Playing: playing}
		}
	}
}

func (s *Session) step(ctx context.Context, state State, ev Event) (State, error) {
	next, effects, err := Reduce(state, ev)
	if s.trace != nil {
		s.trace(ev, err)
	}
	switch {
	case errors.Is(err, ErrStale):
		slog.Debug("discarded superseded result", "event", fmt.Sprintf("%T", ev), "error", err)
		return state, err
	case err != nil:
		slog.Debug("event rejected", "event", fmt.Sprintf("%T", ev), "error", err)
		return state, err
	}

	for _, eff := range effects {
		s.execute(ctx, eff)
	}
	return next, nil
}

// Dispatch submits a learner event and waits until it has been reduced.
func (s *Session) Dispatch(ctx context.Context, ev Event) error {
	if sent, ok := ev.(ChatSent); ok && sent.At.IsZero() {
		sent.At = s.now()
		ev = sent
	}

	cmd := command{event: ev, reply: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case s.queries <- reply:
	case <-s.done:
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// execute runs local effects in the loop and AI effects in their own goroutine.
func (s *Session) execute(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case ResetSession:
		s.player.Stop()
		if s.onReset != nil {
			s.onReset()
		}
	case PlayAudio:
		clip, err := s.player.Play(e.Buffer)
		if err != nil {
			slog.Warn("playback failed", "error", err)
			return
		}
		slog.Info("playback started", "clip", clip.ID, "duration", e.Buffer.Duration())
	case StopAudio:
		s.player.Stop()
	default:
		s.effects.Add(1)
		go func() {
			defer s.effects.Done()
			ev := s.perform(ctx, eff)
			select {
			case s.results <- ev:
			case <-ctx.Done():
			}
		}()
	}
}

func (s *Session) perform(ctx context.Context, eff Effect) Event {
	switch e := eff.(type) {
	case ExtractStructure:
		c, err := s.orch.ExtractStructure(ctx, e.Document)
		return StructureLoaded{Token: e.Token, Course: c, Err: err}
	case FetchGraph:
		g, err := s.orch.GenerateGraph(ctx, e.Document)
		return GraphLoaded{Token: e.Token, Graph: g, Err: err}
	case FetchLesson:
		l, err := s.orch.GenerateLesson(ctx, e.Document, e.Module, e.Depth)
		return LessonLoaded{Token: e.Token, Lesson: l, Err: err}
	case FetchExam:
		qs, err := s.orch.GenerateExam(ctx, e.Document, e.Module)
		return ExamLoaded{Token: e.Token, ModuleID: e.Module.ID, Questions: qs, Err: err}
	case SendChat:
		reply, err := s.orch.Converse(ctx, e.History, e.Message, e.Context, e.Image)
		return ReplyReceived{Token: e.Token, Text: reply, Err: err, At: s.now()}
	case Synthesize:
		buf, err := s.orch.SynthesizeSpeech(ctx, e.Text)
		return SpeechReady{Token: e.Token, Buffer: buf, Err: err}
	default:
		panic(fmt.Sprintf("session: unknown effect %T", eff))
	}
}
