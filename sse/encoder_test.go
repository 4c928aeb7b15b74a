package sse

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/ollamarelay/stream"
)

type noFlush struct {
	http.ResponseWriter
}

func TestNewEncoderRequiresFlusher(t *testing.T) {
	_, err := NewEncoder(noFlush{httptest.NewRecorder()}, "m")
	assert.ErrorIs(t, err, ErrFlushUnsupported)
}

func TestEncoderWireFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewEncoder(rec, "mistral")
	require.NoError(t, err)

	require.NoError(t, enc.Text("He"))
	require.NoError(t, enc.Text("llo"))
	require.NoError(t, enc.Done(5))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t,
		"data: {\"text\":\"He\"}\n\n"+
			"data: {\"text\":\"llo\"}\n\n"+
			"event: done\ndata: {\"model\":\"mistral\",\"totalChars\":5}\n\n",
		rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestEncoderHeadersFlushedBeforeFirstEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewEncoder(rec, "m")
	require.NoError(t, err)

	require.NoError(t, enc.Start())

	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestEncoderClosedAfterTerminal(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewEncoder(rec, "m")
	require.NoError(t, err)

	require.NoError(t, enc.Error(CodeUpstream, "connection refused"))
	assert.True(t, enc.Closed())

	assert.ErrorIs(t, enc.Text("late"), ErrClosed)
	assert.ErrorIs(t, enc.Done(1), ErrClosed)
	assert.ErrorIs(t, enc.Error(CodeStream, "again"), ErrClosed)
	assert.ErrorIs(t, enc.Start(), ErrClosed)
	assert.Equal(t, "event: error\ndata: {\"error\":\"ollama_error\",\"details\":\"connection refused\"}\n\n", rec.Body.String())
}

func TestRelayStopsAtTerminal(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewEncoder(rec, "m")
	require.NoError(t, err)

	events := []stream.Event{stream.Text("a"), stream.Error(errors.New("boom")), stream.Text("never")}
	require.NoError(t, enc.Relay(slices.Values(events)))

	assert.Equal(t,
		"data: {\"text\":\"a\"}\n\n"+
			"event: error\ndata: {\"error\":\"stream_error\",\"details\":\"boom\"}\n\n",
		rec.Body.String())
}

func TestRelayWithoutTerminalEmitsError(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewEncoder(rec, "m")
	require.NoError(t, err)

	require.NoError(t, enc.Relay(slices.Values([]stream.Event{stream.Text("a")})))

	assert.True(t, enc.Closed())
	assert.Contains(t, rec.Body.String(), "event: error\n")
}

func TestErrorMapper(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewEncoder(rec, "m", WithErrorMapper(func(err error) (string, string) {
		return "custom", "mapped: " + err.Error()
	}))
	require.NoError(t, err)

	require.NoError(t, enc.Encode(stream.Error(errors.New("x"))))

	assert.Contains(t, rec.Body.String(), `{"error":"custom","details":"mapped: x"}`)
}

func TestErrorKeepsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewEncoder(rec, "m")
	require.NoError(t, err)

	require.NoError(t, enc.Error(CodeStream, ""))

	assert.Equal(t, "event: error\ndata: {\"error\":\"stream_error\",\"details\":\"\"}\n\n", rec.Body.String())
}
