// Package course sequences the AI requests behind a course companion session:
// structure extraction, lessons, the knowledge graph, exams, speech and chat.
// Every response is shaped by the normalizer before it reaches session state.
package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/p-n-ai/pai-course/internal/ai"
	"github.com/p-n-ai/pai-course/internal/audio"
	"github.com/p-n-ai/pai-course/internal/curriculum"
	"github.com/p-n-ai/pai-course/internal/diagnostics"
	"github.com/p-n-ai/pai-course/internal/intent"
	"github.com/p-n-ai/pai-course/internal/normalize"
)

const (
	defaultSpeechMaxChars   = 500
	defaultChatContextChars = 5000
	defaultChatHistoryLimit = 40
	defaultExamQuestions    = 5
	snippetLength           = 200
)

// Completer is the part of the AI gateway the orchestrator needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// Config holds dependencies for the orchestrator.
type Config struct {
	AI         Completer
	Catalog    *intent.Catalog
	Normalizer *normalize.Normalizer
	Budget     *ai.SessionBudget         // nil means unlimited
	Lessons    LessonCache               // nil disables lesson caching
	Failures   diagnostics.FailureLogger // nil discards failure records

	SpeechMaxChars   int // characters of lesson text sent for narration (default 500)
	ChatContextChars int // characters of lesson context sent with a chat turn (default 5000)
	ChatHistoryLimit int // prior messages sent with a chat turn (default 40)
	ExamQuestions    int // questions requested per exam (default 5)
}

// Orchestrator issues one request per operation and maps the result into
// curriculum types. It is safe for concurrent use.
type Orchestrator struct {
	ai         Completer
	catalog    *intent.Catalog
	normalizer *normalize.Normalizer
	budget     *ai.SessionBudget
	lessons    LessonCache
	failures   diagnostics.FailureLogger
	inflight   singleflight.Group

	speechMaxChars   int
	chatContextChars int
	chatHistoryLimit int
	examQuestions    int
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.AI == nil {
		return nil, errors.New("course: AI completer is required")
	}
	catalog := cfg.Catalog
	if catalog == nil {
		var err error
		if catalog, err = intent.Default(); err != nil {
			return nil, fmt.Errorf("course: loading intent catalog: %w", err)
		}
	}
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = normalize.New(catalog, normalize.DefaultPolicy())
	}
	failures := cfg.Failures
	if failures == nil {
		failures = diagnostics.NopLogger{}
	}

	return &Orchestrator{
		ai:               cfg.AI,
		catalog:          catalog,
		normalizer:       normalizer,
		budget:           cfg.Budget,
		lessons:          cfg.Lessons,
		failures:         failures,
		speechMaxChars:   orDefault(cfg.SpeechMaxChars, defaultSpeechMaxChars),
		chatContextChars: orDefault(cfg.ChatContextChars, defaultChatContextChars),
		chatHistoryLimit: orDefault(cfg.ChatHistoryLimit, defaultChatHistoryLimit),
		examQuestions:    orDefault(cfg.ExamQuestions, defaultExamQuestions),
	}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ExtractStructure reads the course outline from the document. Any failure is
// fatal to the session and wraps ErrFatalIngest.
func (o *Orchestrator) ExtractStructure(ctx context.Context, doc curriculum.Document) (curriculum.CourseStructure, error) {
	if doc.Empty() {
		return curriculum.CourseStructure{}, fmt.Errorf("%w: document is empty", ErrFatalIngest)
	}

	resp, err := o.documentRequest(ctx, ai.IntentStructure, doc, nil)
	if err != nil {
		return curriculum.CourseStructure{}, fmt.Errorf("%w: %w", ErrFatalIngest, err)
	}

	structure, err := o.normalizer.Course(resp.Content)
	if err != nil {
		err = o.fail(ctx, ai.IntentStructure, doc, normalize.ErrMalformedResponse, err, resp.Content)
		return curriculum.CourseStructure{}, fmt.Errorf("%w: %w", ErrFatalIngest, err)
	}

	slog.Info("course structure extracted",
		"title", structure.Title,
		"modules", len(structure.Modules),
	)
	return structure, nil
}

type lessonData struct {
	Module curriculum.Module
	Depth  string
}

// GenerateLesson writes the lesson for a module at a depth. Results are cached
// per document, module and depth, and concurrent identical requests share one call.
func (o *Orchestrator) GenerateLesson(ctx context.Context, doc curriculum.Document, module curriculum.Module, depth curriculum.Depth) (curriculum.LessonContent, error) {
	key := LessonKey(doc.Fingerprint(), module.ID, depth)
	lesson := curriculum.LessonContent{ModuleID: module.ID, Depth: depth}

	if text, ok := o.cachedLesson(ctx, key); ok {
		lesson.Text = text
		return lesson, nil
	}

	v, err, shared := o.inflight.Do(key, func() (any, error) {
		resp, err := o.documentRequest(ctx, ai.IntentLesson, doc, lessonData{Module: module, Depth: depth.Label()})
		if err != nil {
			return "", err
		}
		text, err := o.normalizer.Text(resp.Content)
		if err != nil {
			return "", o.fail(ctx, ai.IntentLesson, doc, normalize.ErrMalformedResponse, err, resp.Content)
		}
		o.storeLesson(ctx, key, text)
		return text, nil
	})
	if err != nil {
		return curriculum.LessonContent{}, err
	}

	slog.Debug("lesson generated", "module", module.ID, "depth", depth, "shared", shared)
	lesson.Text = v.(string)
	return lesson, nil
}

func (o *Orchestrator) cachedLesson(ctx context.Context, key string) (string, bool) {
	if o.lessons == nil {
		return "", false
	}
	text, ok, err := o.lessons.Get(ctx, key)
	if err != nil {
		slog.Warn("lesson cache read failed", "error", err)
		return "", false
	}
	return text, ok
}

func (o *Orchestrator) storeLesson(ctx context.Context, key, text string) {
	if o.lessons == nil {
		return
	}
	if err := o.lessons.Set(ctx, key, text); err != nil {
		slog.Warn("lesson cache write failed", "error", err)
	}
}

// GenerateGraph maps the concepts of the course. The returned graph is always
// usable; on failure it is empty and err says why.
func (o *Orchestrator) GenerateGraph(ctx context.Context, doc curriculum.Document) (curriculum.KnowledgeGraph, error) {
	empty := curriculum.KnowledgeGraph{Nodes: []curriculum.Node{}, Edges: []curriculum.Edge{}}

	resp, err := o.documentRequest(ctx, ai.IntentGraph, doc, nil)
	if err != nil {
		return empty, err
	}
	graph, err := o.normalizer.Graph(resp.Content)
	if err != nil {
		return empty, o.fail(ctx, ai.IntentGraph, doc, normalize.ErrMalformedResponse, err, resp.Content)
	}

	slog.Info("knowledge graph generated", "nodes", len(graph.Nodes), "edges", len(graph.Edges))
	return graph, nil
}

type examData struct {
	Module curriculum.Module
	Count  int
}

// GenerateExam writes practice questions for a module. The returned slice is
// never nil; on failure it is empty and err says why.
func (o *Orchestrator) GenerateExam(ctx context.Context, doc curriculum.Document, module curriculum.Module) ([]curriculum.ExamQuestion, error) {
	empty := []curriculum.ExamQuestion{}

	resp, err := o.documentRequest(ctx, ai.IntentExam, doc, examData{Module: module, Count: o.examQuestions})
	if err != nil {
		return empty, err
	}
	questions, err := o.normalizer.Exam(resp.Content)
	if err != nil {
		return empty, o.fail(ctx, ai.IntentExam, doc, normalize.ErrMalformedResponse, err, resp.Content)
	}

	slog.Info("exam generated", "module", module.ID, "questions", len(questions))
	return questions, nil
}

// SynthesizeSpeech narrates the start of text. Only the first SpeechMaxChars
// characters are sent.
func (o *Orchestrator) SynthesizeSpeech(ctx context.Context, text string) (audio.Buffer, error) {
	text = truncate(text, o.speechMaxChars)
	if text == "" {
		return audio.Buffer{}, &IntentError{Intent: ai.IntentSpeech, Kind: ErrPlayback, Err: errors.New("nothing to narrate")}
	}

	spec := o.catalog.Get(ai.IntentSpeech)
	prompt, err := spec.RenderPrompt(struct{ Text string }{text})
	if err != nil {
		return audio.Buffer{}, &IntentError{Intent: ai.IntentSpeech, Kind: ErrServiceUnavailable, Err: err}
	}

	resp, err := o.complete(ctx, spec, curriculum.Document{}, []ai.Message{{Role: "user", Content: prompt}}, "")
	if err != nil {
		return audio.Buffer{}, err
	}
	if resp.Audio == nil || len(resp.Audio.Data) == 0 {
		return audio.Buffer{}, o.fail(ctx, ai.IntentSpeech, curriculum.Document{}, normalize.ErrMalformedResponse,
			errors.New("response carried no audio"), resp.Content)
	}

	buf, err := audio.DecodePCM16Bytes(resp.Audio.Data, audio.SampleRateFromMime(resp.Audio.MimeType))
	if err != nil {
		return audio.Buffer{}, o.fail(ctx, ai.IntentSpeech, curriculum.Document{}, ErrPlayback, err, resp.Audio.MimeType)
	}

	slog.Info("speech synthesized", "samples", len(buf.Samples), "duration", buf.Duration())
	return buf, nil
}

// Converse sends one chat turn. The model sees the most recent ChatHistoryLimit
// messages of history, the new message with an optional image, and the first
// ChatContextChars characters of the current lesson.
func (o *Orchestrator) Converse(ctx context.Context, history []curriculum.ChatMessage, message, lessonContext string, image *curriculum.Attachment) (string, error) {
	spec := o.catalog.Get(ai.IntentChat)
	system, err := spec.RenderSystem(struct{ Context string }{truncate(lessonContext, o.chatContextChars)})
	if err != nil {
		return "", &IntentError{Intent: ai.IntentChat, Kind: ErrServiceUnavailable, Err: err}
	}

	if len(history) > o.chatHistoryLimit {
		history = history[len(history)-o.chatHistoryLimit:]
	}
	messages := make([]ai.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	turn := ai.Message{Role: string(curriculum.RoleUser), Content: message}
	if image != nil && len(image.Data) > 0 {
		turn.Attachments = []ai.Attachment{{MimeType: image.MimeType, Data: image.Data}}
	}
	messages = append(messages, turn)

	resp, err := o.complete(ctx, spec, curriculum.Document{}, messages, system)
	if err != nil {
		return "", err
	}
	reply, err := o.normalizer.Text(resp.Content)
	if err != nil {
		return "", o.fail(ctx, ai.IntentChat, curriculum.Document{}, normalize.ErrMalformedResponse, err, resp.Content)
	}
	return reply, nil
}

// documentRequest renders the intent's templates with data and sends them with
// the document attached.
func (o *Orchestrator) documentRequest(ctx context.Context, i ai.Intent, doc curriculum.Document, data any) (ai.CompletionResponse, error) {
	spec := o.catalog.Get(i)
	system, err := spec.RenderSystem(data)
	if err != nil {
		return ai.CompletionResponse{}, &IntentError{Intent: i, Kind: ErrServiceUnavailable, Err: err}
	}
	prompt, err := spec.RenderPrompt(data)
	if err != nil {
		return ai.CompletionResponse{}, &IntentError{Intent: i, Kind: ErrServiceUnavailable, Err: err}
	}

	msg := ai.Message{
		Role:        "user",
		Content:     prompt,
		Attachments: []ai.Attachment{{MimeType: doc.MimeType, Data: doc.Data}},
	}
	return o.complete(ctx, spec, doc, []ai.Message{msg}, system)
}

// complete checks the budget, sends the request and records token usage.
// doc is only used to label failure records.
func (o *Orchestrator) complete(ctx context.Context, spec intent.Spec, doc curriculum.Document, messages []ai.Message, system string) (ai.CompletionResponse, error) {
	i := spec.Intent()
	if o.budget != nil {
		if err := o.budget.Check(); err != nil {
			return ai.CompletionResponse{}, o.fail(ctx, i, doc, ErrServiceUnavailable, err, "")
		}
	}

	req := ai.CompletionRequest{
		System:         system,
		Messages:       messages,
		Model:          spec.Model,
		MaxTokens:      spec.MaxTokens,
		Temperature:    spec.Temperature,
		Intent:         i,
		ResponseSchema: spec.Schema,
	}
	if spec.Voice != "" {
		req.Speech = &ai.SpeechConfig{Voice: spec.Voice}
	}

	resp, err := o.ai.Complete(ctx, req)
	if err != nil {
		return ai.CompletionResponse{}, o.fail(ctx, i, doc, ErrServiceUnavailable, err, "")
	}

	if o.budget != nil {
		if err := o.budget.Record(i, resp.TotalTokens()); err != nil {
			slog.Warn("recording token usage failed", "intent", i.String(), "error", err)
		}
	}
	return resp, nil
}

// fail wraps err as an IntentError of the given kind, logs it and records it.
func (o *Orchestrator) fail(ctx context.Context, i ai.Intent, doc curriculum.Document, kind, err error, raw string) error {
	ie := &IntentError{Intent: i, Kind: kind, Err: err}
	o.record(ctx, ie, doc, raw)
	return ie
}

func (o *Orchestrator) record(ctx context.Context, ie *IntentError, doc curriculum.Document, raw string) {
	snippet := normalize.Snippet(raw, snippetLength)
	slog.Warn("intent failed",
		"intent", ie.Intent.String(),
		"kind", KindName(ie),
		"error", diagnostics.Redact(ie.Err),
		"raw", snippet,
	)

	var fingerprint string
	if !doc.Empty() {
		fingerprint = doc.Fingerprint()
	}
	err := o.failures.LogFailure(ctx, diagnostics.Failure{
		Intent:   ie.Intent.String(),
		Kind:     KindName(ie),
		Message:  diagnostics.Redact(ie.Err),
		Snippet:  snippet,
		Document: fingerprint,
	})
	if err != nil {
		slog.Warn("failed to record intent failure", "error", err)
	}
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
