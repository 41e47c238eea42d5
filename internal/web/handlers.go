package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/p-n-ai/pai-course/internal/curriculum"
	"github.com/p-n-ai/pai-course/internal/diagnostics"
	"github.com/p-n-ai/pai-course/internal/session"
)

const pdfMimeType = "application/pdf"

var errUnsupportedMedia = errors.New("only PDF documents are supported")

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	doc, err := readDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, r, session.DocumentUploaded{Document: doc}, http.StatusAccepted)
}

// readDocument accepts a multipart form with a "file" field or a raw PDF body.
func readDocument(r *http.Request) (curriculum.Document, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	name := r.URL.Query().Get("name")
	var data []byte
	var err error
	if mediaType == "multipart/form-data" {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			return curriculum.Document{}, fmt.Errorf("%w: reading form file: %w", errBadRequest, ferr)
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		if name == "" {
			name = header.Filename
		}
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return curriculum.Document{}, fmt.Errorf("reading document: %w", err)
	}

	if len(data) == 0 {
		return curriculum.Document{}, session.ErrEmptyDocument
	}
	if http.DetectContentType(data) != pdfMimeType {
		return curriculum.Document{}, errUnsupportedMedia
	}
	if name == "" {
		name = "document.pdf"
	}
	return curriculum.NewDocument(name, pdfMimeType, data), nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newView(snap))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}

type moduleRequest struct {
	ModuleID string `json:"module_id"`
}

func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, r, session.ModuleSelected{ModuleID: req.ModuleID}, http.StatusAccepted)
}

type depthRequest struct {
	Depth string `json:"depth"`
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	var req depthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	depth, err := curriculum.ParseDepth(req.Depth)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	s.dispatch(w, r, session.DepthChanged{Depth: depth}, http.StatusAccepted)
}

func (s *Server) handleExamRequest(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, session.ExamRequested{}, http.StatusAccepted)
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Option     int    `json:"option"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, r, session.AnswerSelected{QuestionID: req.QuestionID, Option: req.Option}, http.StatusOK)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, session.ExamSubmitted{}, http.StatusOK)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := snap.State.Exam.Result()
	if err != nil {
		writeError(w, err)
		return
	}

	title := snap.State.Course.Title
	if m, ok := snap.State.Course.Module(snap.State.ExamModule); ok {
		title = strings.TrimSpace(title + " - " + m.Title)
	}

	var buf bytes.Buffer
	if err := result.WriteXLSX(&buf, title); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="exam-results.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

type imageRequest struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type chatRequest struct {
	Message string        `json:"message"`
	Image   *imageRequest `json:"image,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ev := session.ChatSent{Text: req.Message}
	if req.Image != nil {
		if !strings.HasPrefix(req.Image.MimeType, "image/") || len(req.Image.Data) == 0 {
			writeError(w, fmt.Errorf("%w: image needs an image/* mime type and data", errBadRequest))
			return
		}
		ev.Image = &curriculum.Attachment{MimeType: req.Image.MimeType, Data: req.Image.Data}
	}
	s.dispatch(w, r, ev, http.StatusAccepted)
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, session.SpeechRequested{}, http.StatusAccepted)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !snap.Playing {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "nothing is playing"})
		return
	}

	data, err := snap.Clip.Buffer.WAV()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Clip-Id", snap.Clip.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleStopAudio(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Dispatch(r.Context(), session.PlaybackStopped{}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const (
	defaultFailureLimit = 20
	maxFailureLimit     = diagnostics.MaxRecent
)

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	limit := defaultFailureLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		limit = min(n, maxFailureLimit)
	}

	failures, err := s.failures.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": failures})
}
