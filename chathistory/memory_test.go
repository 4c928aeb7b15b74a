package chathistory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Abraxas-365/ollamarelay/adapters/inmemory"
	"github.com/Abraxas-365/ollamarelay/llm"
	"github.com/Abraxas-365/ollamarelay/storage"
)

type MemoryTestSuite struct {
	suite.Suite
	mem   *Memory
	store *inmemory.TranscriptStore
	now   time.Time
}

func TestMemorySuite(t *testing.T) {
	suite.Run(t, new(MemoryTestSuite))
}

func (s *MemoryTestSuite) SetupTest() {
	s.now = time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	s.mem = New(
		WithGenerateID(func() string { return "conv-1" }),
		WithClock(func() time.Time { return s.now }),
	)
	s.store = inmemory.NewTranscriptStore()
}

func (s *MemoryTestSuite) exchange(user, assistant string) {
	s.mem.Append(llm.NewUserMessage(user))
	s.mem.Append(llm.NewAssistantMessage(assistant))
}

func (s *MemoryTestSuite) TestAppendKeepsOrder() {
	s.exchange("hi", "hello")
	s.mem.Append(llm.NewUserMessage("again"))

	s.Equal([]llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "again"},
	}, s.mem.Messages())
	s.Equal(3, s.mem.Len())
	s.Equal("conv-1", s.mem.ID())
}

func (s *MemoryTestSuite) TestMessagesReturnsCopy() {
	s.exchange("hi", "hello")

	msgs := s.mem.Messages()
	msgs[0].Content = "changed"

	s.Equal("hi", s.mem.Messages()[0].Content)
}

func (s *MemoryTestSuite) TestRollbackRestoresPriorState() {
	priors := [][]llm.Message{
		nil,
		{llm.NewSystemMessage("be brief")},
		{llm.NewUserMessage("a"), llm.NewAssistantMessage("b")},
		{llm.NewSystemMessage("sys"), llm.NewUserMessage("a"), llm.NewAssistantMessage("b"), llm.NewUserMessage("c"), llm.NewAssistantMessage("d")},
	}

	for _, prior := range priors {
		mem := New()
		for _, m := range prior {
			mem.Append(m)
		}
		before := mem.Messages()

		mem.Append(llm.NewUserMessage("speculative"))
		s.Require().NoError(mem.RollbackLast())

		s.Equal(len(before), mem.Len())
		s.Equal(before, mem.Messages())
	}
}

func (s *MemoryTestSuite) TestRollbackOnEmptyIsReportedNoOp() {
	err := s.mem.RollbackLast()

	var stateErr *ConversationStateError
	s.Require().ErrorAs(err, &stateErr)
	s.Equal("RollbackLast", stateErr.Op)
	s.Equal(0, s.mem.Len())
}

func (s *MemoryTestSuite) TestRollbackAfterReplyIsReportedNoOp() {
	s.exchange("hi", "hello")

	err := s.mem.RollbackLast()

	var stateErr *ConversationStateError
	s.Require().ErrorAs(err, &stateErr)
	s.Equal(2, s.mem.Len())
}

func (s *MemoryTestSuite) TestClearThenRenderIsEmpty() {
	s.Equal("", s.mem.Render())

	s.exchange("hi", "hello")
	s.mem.Clear()

	s.Equal("", s.mem.Render())
	s.Equal(0, s.mem.Len())
	s.mem.Clear()
	s.Equal("", s.mem.Render())
}

func (s *MemoryTestSuite) TestRender() {
	s.mem.Append(llm.NewSystemMessage("be brief"))
	s.exchange("hi", "hello there")

	s.Equal("[SYSTEM] be brief\n[USER] hi\n[ASSISTANT] hello there", s.mem.Render())
}

func (s *MemoryTestSuite) TestPersistAppendsBlock() {
	s.exchange("hi", "hello")

	s.Require().NoError(s.mem.Persist(context.Background(), s.store, "chatlog.txt"))
	s.exchange("more", "sure")
	s.Require().NoError(s.mem.Persist(context.Background(), s.store, "chatlog.txt"))

	want := "\n\n===== CHAT LOG @ 2024-03-01T12:30:45 =====\n[USER] hi\n[ASSISTANT] hello\n===== END LOG =====\n" +
		"\n\n===== CHAT LOG @ 2024-03-01T12:30:45 =====\n[USER] hi\n[ASSISTANT] hello\n[USER] more\n[ASSISTANT] sure\n===== END LOG =====\n"
	s.Equal(want, s.store.Contents("chatlog.txt"))
}

func (s *MemoryTestSuite) TestPersistFailureLeavesConversation() {
	s.exchange("hi", "hello")
	before := s.mem.Messages()
	s.store.FailWith = errors.New("disk full")

	err := s.mem.Persist(context.Background(), s.store, "chatlog.txt")

	s.Require().Error(err)
	s.True(storage.IsStorageError(err))
	s.Equal(before, s.mem.Messages())
}

func (s *MemoryTestSuite) TestPersistEmpty() {
	err := s.mem.Persist(context.Background(), s.store, "chatlog.txt")

	var stateErr *ConversationStateError
	s.Require().ErrorAs(err, &stateErr)
	s.Equal("", s.store.Contents("chatlog.txt"))
}

func TestNewGeneratesDistinctIDs(t *testing.T) {
	a, b := New(), New()

	require.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
