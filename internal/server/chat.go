package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/tareqmamari/loglens/internal/errors"
	"github.com/tareqmamari/loglens/internal/tracing"
)

// maxChatBody caps the size of a chat request body.
const maxChatBody = 1 << 20

// chatWriteSlack is added to the turn timeout to give the terminal event
// time to reach the client.
const chatWriteSlack = 30 * time.Second

type chatRequest struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleChat submits the message as one turn and streams its events as
// newline-delimited JSON, flushing after every frame. Request errors are
// answered with 400 before any streaming starts.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Chat responses stream for up to a whole turn.
	deadline := time.Now().Add(s.config.TurnTimeout + chatWriteSlack)
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("Failed to set chat write deadline", zap.Error(err))
	}

	ctx, span := tracing.HTTPSpan(r.Context(), r.Method, r.URL.Path)
	defer span.End()

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		s.logger.Debug("Rejected chat request with invalid body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid request body: expected {\"message\": \"...\"}")
		return
	}

	stream, err := s.orchestrator.Submit(ctx, req.Message)
	if err != nil {
		tracing.RecordError(span, err)
		msg := err.Error()
		var se *apperrors.StructuredError
		if errors.As(err, &se) {
			msg = se.Message
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	frames := 0
	writing := true
	// The stream is drained to the end even after a write error; the turn
	// stops on its own once the request context is cancelled.
	for ev := range stream.Events() {
		if !writing {
			continue
		}
		if _, err := w.Write(append(ev.Frame(), '\n')); err != nil {
			s.logger.Debug("Client went away while streaming", zap.Error(err))
			writing = false
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
		frames++
	}
	tracing.SetResultCount(span, frames)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
