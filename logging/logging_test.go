package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "json", &buf)

	logger.Debug().Str("component", "test").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "test", line["component"])
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New("chatty", "json", &buf)

	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	logger.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "", &buf)
	logger.Info().Msg("readable")

	assert.Contains(t, buf.String(), "readable")
	assert.NotContains(t, buf.String(), `"message"`)
}
