package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmorganca/ollama/api"
	"github.com/rs/zerolog"

	"github.com/Abraxas-365/ollamarelay/llm"
	"github.com/Abraxas-365/ollamarelay/stream"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "mistral"

	maxErrorBody = 64 << 10
)

type OllamaLLM struct {
	baseURL           string
	model             string
	client            *http.Client
	logger            zerolog.Logger
	requestTimeout    time.Duration
	streamIdleTimeout time.Duration
	onMalformed       stream.MalformedHook
}

// Option configures an OllamaLLM.
type Option func(*OllamaLLM)

// WithHTTPClient replaces the HTTP client. Its Timeout should be zero, or
// long streams will be cut off; use the timeouts below instead.
func WithHTTPClient(client *http.Client) Option {
	return func(o *OllamaLLM) {
		o.client = client
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *OllamaLLM) {
		o.logger = logger
	}
}

// WithRequestTimeout bounds each buffered call end to end.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *OllamaLLM) {
		o.requestTimeout = d
	}
}

// WithStreamIdleTimeout aborts a stream when no bytes arrive for d.
func WithStreamIdleTimeout(d time.Duration) Option {
	return func(o *OllamaLLM) {
		o.streamIdleTimeout = d
	}
}

// WithMalformedHook observes malformed records in streamed responses.
func WithMalformedHook(hook stream.MalformedHook) Option {
	return func(o *OllamaLLM) {
		o.onMalformed = hook
	}
}

func NewOllamaLLM(baseURL string, model string, opts ...Option) *OllamaLLM {
	if model == "" {
		model = DefaultModel
	}
	o := &OllamaLLM{
		baseURL: NormalizeBaseURL(baseURL),
		model:   model,
		client:  &http.Client{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NormalizeBaseURL accepts either a bare server URL or a full endpoint URL
// such as http://localhost:11434/api/chat and returns the server URL.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return DefaultBaseURL
	}
	for _, suffix := range []string{"/api/chat", "/api/generate", "/api/tags", "/api"} {
		if trimmed, ok := strings.CutSuffix(u, suffix); ok {
			return trimmed
		}
	}
	return u
}

// Model is the default model used when a call does not override it.
func (o *OllamaLLM) Model() string {
	return o.model
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func (o *OllamaLLM) Complete(ctx context.Context, prompt string, opts ...llm.Option) (*llm.Completion, error) {
	options := llm.NewChatOptions(opts...)
	req := o.generateRequest(prompt, options, false)

	var resp generateResponse
	if err := o.doJSON(ctx, "Complete", "/api/generate", req, &resp); err != nil {
		return nil, err
	}
	return &llm.Completion{Model: o.modelOr(resp.Model, req.Model), Text: resp.Response, Done: resp.Done}, nil
}

func (o *OllamaLLM) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*llm.Completion, error) {
	options := llm.NewChatOptions(opts...)
	req := o.chatRequest(messages, options, false)

	var resp chatResponse
	if err := o.doJSON(ctx, "Chat", "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &llm.Completion{Model: o.modelOr(resp.Model, req.Model), Text: resp.Message.Content, Done: resp.Done}, nil
}

func (o *OllamaLLM) CompleteStream(ctx context.Context, prompt string, opts ...llm.Option) (*stream.Decoder, error) {
	options := llm.NewChatOptions(opts...)
	return o.openStream(ctx, "CompleteStream", "/api/generate", o.generateRequest(prompt, options, true))
}

func (o *OllamaLLM) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*stream.Decoder, error) {
	options := llm.NewChatOptions(opts...)
	return o.openStream(ctx, "ChatStream", "/api/chat", o.chatRequest(messages, options, true))
}

// ListModels returns the names of the models installed on the backend.
func (o *OllamaLLM) ListModels(ctx context.Context) ([]string, error) {
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &llm.LLMError{Op: "ListModels", Message: "failed to build request", Err: err}
	}
	resp, err := o.send(httpReq, "ListModels")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list api.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, &llm.LLMError{Op: "ListModels", Message: "failed to decode response", Err: err}
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (o *OllamaLLM) generateRequest(prompt string, options *llm.ChatOptions, streaming bool) *api.GenerateRequest {
	return &api.GenerateRequest{
		Model:   o.modelOr(options.Model, o.model),
		Prompt:  prompt,
		Stream:  &streaming,
		Options: options.BackendOptions(),
	}
}

func (o *OllamaLLM) chatRequest(messages []llm.Message, options *llm.ChatOptions, streaming bool) *api.ChatRequest {
	ollamaMessages := make([]api.Message, len(messages))
	for i, msg := range messages {
		ollamaMessages[i] = api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return &api.ChatRequest{
		Model:    o.modelOr(options.Model, o.model),
		Messages: ollamaMessages,
		Stream:   &streaming,
		Options:  options.BackendOptions(),
	}
}

func (o *OllamaLLM) modelOr(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

func (o *OllamaLLM) newRequest(ctx context.Context, op, path string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &llm.LLMError{Op: op, Message: "failed to encode request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &llm.LLMError{Op: op, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// send performs the request and turns transport failures and non-2xx
// answers into UpstreamErrors. On success the caller owns resp.Body.
func (o *OllamaLLM) send(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Warn().Err(err).Str("op", op).Str("url", req.URL.String()).Msg("backend request failed")
		return nil, &llm.UpstreamError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body := readErrorBody(resp.Body)
		o.logger.Warn().Str("op", op).Int("status", resp.StatusCode).Str("body", body).Msg("backend returned error status")
		return nil, &llm.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: body}
	}
	o.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("latency", time.Since(start)).Msg("backend responded")
	return resp, nil
}

func (o *OllamaLLM) doJSON(ctx context.Context, op, path string, body, out any) error {
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	req, err := o.newRequest(ctx, op, path, body)
	if err != nil {
		return err
	}
	resp, err := o.send(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &llm.UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (o *OllamaLLM) openStream(ctx context.Context, op, path string, body any) (*stream.Decoder, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := o.newRequest(ctx, op, path, body)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := o.send(req, op)
	if err != nil {
		cancel()
		return nil, err
	}

	framerOpts := []stream.FramerOption{stream.WithLogger(o.logger)}
	if o.onMalformed != nil {
		framerOpts = append(framerOpts, stream.WithMalformedHook(o.onMalformed))
	}
	return stream.NewDecoder(
		newIdleBody(resp.Body, cancel, o.streamIdleTimeout),
		stream.WithFramer(stream.NewFramer(framerOpts...)),
	), nil
}

// readErrorBody extracts a readable message from an error response. Ollama
// answers errors as {"error": "..."}; anything else is returned as text.
func readErrorBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}

var (
	_ llm.LLM         = (*OllamaLLM)(nil)
	_ llm.ModelLister = (*OllamaLLM)(nil)
)
