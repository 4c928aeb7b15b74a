package chathistory

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Abraxas-365/ollamarelay/llm"
)

const (
	blockStartPrefix = "===== CHAT LOG @ "
	blockStartSuffix = " ====="
	blockEnd         = "===== END LOG ====="

	// TimestampLayout is ISO-8601 to the second, always in UTC.
	TimestampLayout = "2006-01-02T15:04:05"
)

// escapePrefix marks a content line that would otherwise read as a marker
// or a role tag. Lines already starting with it are escaped too.
const escapePrefix = `\`

// FormatBlock renders one transcript block:
//
//	(blank line)
//	===== CHAT LOG @ 2024-03-01T12:30:00 =====
//	[USER] hi
//	[ASSISTANT] hello
//	===== END LOG =====
//
// Continuation lines of multi-line content that look like a block marker
// or a "[ROLE] " tag are written with a leading backslash, so the block
// parses back to the same turns.
func FormatBlock(at time.Time, messages []llm.Message) []byte {
	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(blockStartPrefix)
	sb.WriteString(at.UTC().Format(TimestampLayout))
	sb.WriteString(blockStartSuffix)
	sb.WriteString("\n")
	for i, msg := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("[")
		sb.WriteString(msg.Role.Label())
		sb.WriteString("] ")
		first, rest, more := strings.Cut(msg.Content, "\n")
		sb.WriteString(first)
		for more {
			var line string
			line, rest, more = strings.Cut(rest, "\n")
			sb.WriteString("\n")
			if needsEscape(line) {
				sb.WriteString(escapePrefix)
			}
			sb.WriteString(line)
		}
	}
	sb.WriteString("\n")
	sb.WriteString(blockEnd)
	sb.WriteString("\n")
	return []byte(sb.String())
}

func needsEscape(line string) bool {
	if strings.HasPrefix(line, escapePrefix) || isMarker(line) {
		return true
	}
	_, isTurn := parseTurn(line)
	return isTurn
}

func isMarker(line string) bool {
	line = strings.TrimSuffix(line, "\r")
	if line == blockEnd {
		return true
	}
	_, ok := parseStart(line)
	return ok
}

// Block is one parsed transcript block.
type Block struct {
	At       time.Time
	Messages []llm.Message
}

// ParseTranscript reads every block from a transcript. A line that does not
// start with a "[ROLE] " tag continues the previous turn's content, with
// one leading backslash removed. Only blank lines may appear between
// blocks. Carriage returns inside content are preserved.
func ParseTranscript(r io.Reader) ([]Block, error) {
	var (
		blocks  []Block
		current *Block
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	scanner.Split(scanRawLines)

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		marker := strings.TrimSuffix(line, "\r")

		if ts, ok := parseStart(marker); ok {
			if current != nil {
				return nil, fmt.Errorf("chathistory: line %d: block started before previous block ended", lineNo)
			}
			at, err := time.Parse(TimestampLayout, ts)
			if err != nil {
				return nil, fmt.Errorf("chathistory: line %d: bad timestamp: %w", lineNo, err)
			}
			current = &Block{At: at}
			continue
		}
		if current == nil {
			if strings.TrimSpace(line) != "" {
				return nil, fmt.Errorf("chathistory: line %d: text outside of a block", lineNo)
			}
			continue
		}
		if marker == blockEnd {
			blocks = append(blocks, *current)
			current = nil
			continue
		}

		if msg, ok := parseTurn(line); ok {
			current.Messages = append(current.Messages, msg)
			continue
		}
		if n := len(current.Messages); n > 0 {
			current.Messages[n-1].Content += "\n" + strings.TrimPrefix(line, escapePrefix)
			continue
		}
		return nil, fmt.Errorf("chathistory: line %d: content outside of a turn", lineNo)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("chathistory: read transcript: %w", err)
	}
	if current != nil {
		return nil, fmt.Errorf("chathistory: unterminated block")
	}
	return blocks, nil
}

// scanRawLines splits on '\n' like bufio.ScanLines but keeps a trailing
// '\r', which belongs to the content.
func scanRawLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func parseStart(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, blockStartPrefix)
	if !ok {
		return "", false
	}
	return strings.CutSuffix(rest, blockStartSuffix)
}

func parseTurn(line string) (llm.Message, bool) {
	if !strings.HasPrefix(line, "[") {
		return llm.Message{}, false
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		if strings.HasSuffix(line, "]") {
			end = len(line) - 1
		} else {
			return llm.Message{}, false
		}
	}
	role := llm.Role(strings.ToLower(line[1:end]))
	if !role.Valid() {
		return llm.Message{}, false
	}
	content := ""
	if end+2 <= len(line) {
		content = line[end+2:]
	}
	return llm.Message{Role: role, Content: content}, true
}
