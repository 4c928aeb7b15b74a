package chathistory

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/ollamarelay/llm"
)

func TestTranscriptRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	conversations := [][]llm.Message{
		{llm.NewUserMessage("hi"), llm.NewAssistantMessage("hello")},
		{
			llm.NewSystemMessage("be brief"),
			llm.NewUserMessage("list two things"),
			llm.NewAssistantMessage("1. one\n2. two\n\ndone"),
			llm.NewUserMessage(""),
			llm.NewAssistantMessage("[brackets] are fine"),
		},
	}

	var buf bytes.Buffer
	for _, msgs := range conversations {
		buf.Write(FormatBlock(at, msgs))
	}

	blocks, err := ParseTranscript(&buf)
	require.NoError(t, err)
	require.Len(t, blocks, len(conversations))
	for i, msgs := range conversations {
		assert.Equal(t, msgs, blocks[i].Messages)
		assert.True(t, at.Equal(blocks[i].At))
	}
}

func TestTranscriptRoundTripAmbiguousContent(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	msgs := []llm.Message{
		llm.NewUserMessage("windows\r\nline\r"),
		llm.NewAssistantMessage("log:\n===== END LOG =====\nmore"),
		llm.NewUserMessage("a\n[User] b\n[assistant]"),
		llm.NewAssistantMessage("x\n===== CHAT LOG @ 2024-03-01T12:00:00 =====\ny"),
		llm.NewUserMessage("path\n\\server\\share\n\\[USER] z"),
		llm.NewAssistantMessage("tail\n===== END LOG =====\r"),
	}

	var buf bytes.Buffer
	buf.Write(FormatBlock(at, msgs))
	buf.Write(FormatBlock(at, []llm.Message{llm.NewUserMessage("second")}))

	blocks, err := ParseTranscript(&buf)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, msgs, blocks[0].Messages)
	assert.Equal(t, []llm.Message{llm.NewUserMessage("second")}, blocks[1].Messages)
}

func TestFormatBlockEscapesMarkerLines(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	block := string(FormatBlock(at, []llm.Message{
		llm.NewAssistantMessage("log:\n===== END LOG =====\n[USER] hi"),
	}))

	assert.Contains(t, block, "[ASSISTANT] log:\n\\===== END LOG =====\n\\[USER] hi\n===== END LOG =====\n")
}

func TestParseTranscriptAcceptsCRLFMarkers(t *testing.T) {
	input := "\r\n===== CHAT LOG @ 2024-03-01T12:00:00 =====\r\n[USER] hi\r\n===== END LOG =====\r\n"

	blocks, err := ParseTranscript(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []llm.Message{llm.NewUserMessage("hi\r")}, blocks[0].Messages)
}

func TestFormatBlockUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2024, 3, 1, 14, 0, 0, 0, loc)

	block := string(FormatBlock(at, []llm.Message{llm.NewUserMessage("x")}))

	assert.Contains(t, block, "===== CHAT LOG @ 2024-03-01T12:00:00 =====")
}

func TestParseTranscriptErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated", "===== CHAT LOG @ 2024-03-01T12:00:00 =====\n[USER] hi\n"},
		{"bad timestamp", "===== CHAT LOG @ yesterday =====\n===== END LOG =====\n"},
		{"orphan content", "===== CHAT LOG @ 2024-03-01T12:00:00 =====\nhello\n===== END LOG =====\n"},
		{"nested start", "===== CHAT LOG @ 2024-03-01T12:00:00 =====\n===== CHAT LOG @ 2024-03-01T12:00:00 =====\n"},
		{"text after block", "===== CHAT LOG @ 2024-03-01T12:00:00 =====\n[USER] hi\n===== END LOG =====\nmore\n"},
		{"text before block", "stray\n===== CHAT LOG @ 2024-03-01T12:00:00 =====\n===== END LOG =====\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTranscript(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}
