package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/Abraxas-365/ollamarelay/llm"
	"github.com/Abraxas-365/ollamarelay/sse"
	"github.com/Abraxas-365/ollamarelay/stream"
)

type askRequest struct {
	Prompt  string
	Model   string
	Options map[string]any
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

type validationResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	OK             bool     `json:"ok"`
	Ollama         string   `json:"ollama,omitempty"`
	Model          string   `json:"model,omitempty"`
	ModelInstalled bool     `json:"modelInstalled"`
	Models         []string `json:"models"`
}

type statusErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type rootResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAsk(w, r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	completion, err := s.llm.Complete(r.Context(), req.Prompt, s.callOptions(req)...)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("completion failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: sse.CodeUpstream, Details: details(err)})
		return
	}
	if completion.Model == "" {
		completion.Model = s.modelFor(req)
	}
	writeJSON(w, http.StatusOK, completion)
}

// handleAskStream validates before the stream headers are written, so a
// bad request is always a plain JSON 400. Once the feed has started every
// failure is delivered as a single terminal error event.
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	req, err := decodeAsk(w, r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	enc, err := sse.NewEncoder(w, s.modelFor(req), sse.WithErrorMapper(streamErrorPayload))
	if err != nil {
		logger.Error().Err(err).Msg("cannot stream on this connection")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: sse.CodeStream, Details: err.Error()})
		return
	}

	start := time.Now()
	dec, err := s.llm.CompleteStream(r.Context(), req.Prompt, s.callOptions(req)...)
	if err != nil {
		logger.Error().Err(err).Msg("stream failed before any bytes")
		code, detail := streamErrorPayload(err)
		if werr := enc.Error(code, detail); werr != nil {
			logger.Debug().Err(werr).Msg("write error event")
		}
		return
	}
	defer dec.Close()

	if err := enc.Relay(dec.Events()); err != nil {
		// Usually the client went away; closing dec aborts the backend request.
		logger.Info().Err(err).Msg("stream relay stopped")
	}
	logger.Info().
		Int("chars", dec.TotalChars()).
		Int("malformed", dec.Malformed()).
		Dur("elapsed", time.Since(start)).
		Msg("stream finished")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.models == nil {
		writeJSON(w, http.StatusServiceUnavailable, statusErrorResponse{Error: "model listing not supported by backend"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.statusTimeout)
	defer cancel()

	models, err := s.models.ListModels(ctx)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("backend unreachable")
		writeJSON(w, http.StatusServiceUnavailable, statusErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		OK:             true,
		Ollama:         "up",
		Model:          s.model,
		ModelInstalled: ModelInstalled(s.model, models),
		Models:         models,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{OK: true, Service: ServiceName, Version: s.version})
}

func (s *Server) modelFor(req *askRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return s.model
}

func (s *Server) callOptions(req *askRequest) []llm.Option {
	opts := []llm.Option{llm.WithModel(s.modelFor(req))}
	if len(s.defaultOptions) > 0 {
		opts = append(opts, llm.WithOptions(s.defaultOptions))
	}
	if len(req.Options) > 0 {
		opts = append(opts, llm.WithOptions(req.Options))
	}
	return opts
}

// decodeAsk reads {prompt, model?, options?}. Fields are checked one by one
// so a wrongly typed prompt is reported as such rather than as bad JSON.
func decodeAsk(w http.ResponseWriter, r *http.Request) (*askRequest, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&raw); err != nil {
		return nil, &ValidationError{Field: "prompt", Message: msgPromptRequired}
	}

	req := &askRequest{}
	if err := decodeField(raw["prompt"], &req.Prompt); err != nil || req.Prompt == "" {
		return nil, &ValidationError{Field: "prompt", Message: msgPromptRequired}
	}
	if err := decodeField(raw["model"], &req.Model); err != nil {
		return nil, &ValidationError{Field: "model", Message: "model must be a string"}
	}
	if err := decodeField(raw["options"], &req.Options); err != nil {
		return nil, &ValidationError{Field: "options", Message: "options must be an object"}
	}
	return req, nil
}

func decodeField(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// ModelInstalled matches the configured model against installed names.
// An untagged name also matches its ":latest" tag.
func ModelInstalled(model string, installed []string) bool {
	for _, name := range installed {
		if name == model {
			return true
		}
		if !strings.Contains(model, ":") && name == model+":latest" {
			return true
		}
	}
	return false
}

func streamErrorPayload(err error) (string, string) {
	var upstream *llm.UpstreamError
	var backend *stream.BackendError
	switch {
	case errors.As(err, &upstream):
		return sse.CodeUpstream, upstream.Details()
	case errors.As(err, &backend):
		return sse.CodeUpstream, backend.Message
	}
	return sse.CodeStream, err.Error()
}

func details(err error) string {
	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Details()
	}
	return err.Error()
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: verr.Message})
		return
	}
	writeJSON(w, http.StatusBadRequest, validationResponse{Error: msgPromptRequired})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
