package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specsmith/pkg/agent"
	"specsmith/pkg/artifact"
	"specsmith/pkg/kvstore"
	"specsmith/pkg/prompts"
)

func newDocChat(t *testing.T, mock agent.LLMClient) (*DocumentChat, artifact.Ref, *kvstore.MemoryStore) {
	t.Helper()
	promptCatalog, err := prompts.Load()
	require.NoError(t, err)

	w := artifact.NewWriter(t.TempDir())
	ref, err := w.Write("default", artifact.KindDocumentation, "Shop System", "# Software Requirements Specification: Shop System\n\n## Introduction\n\nA shop.")
	require.NoError(t, err)

	store := kvstore.NewMemoryStore()
	return NewDocumentChat(agent.NewHandle(mock, "test-model"), store, promptCatalog, time.Hour), ref, store
}

func TestDiscussPlainReplyHasNoSuggestions(t *testing.T) {
	mock := agent.NewMockLLMClientWithContent("The introduction covers the project scope.")
	chat, ref, _ := newDocChat(t, mock)

	reply, err := chat.Discuss(context.Background(), "s1", ref, "what does the introduction say?")
	require.NoError(t, err)
	assert.Equal(t, "The introduction covers the project scope.", reply.Response)
	assert.Empty(t, reply.Suggestions)

	// The document content reaches the model through the system prompt.
	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "A shop.")
}

func TestDiscussParsesProposalBlock(t *testing.T) {
	raw := "I suggest tightening the scope statement." +
		`[PROPOSED_CHANGE]<json>{"section": "## Introduction", "original": "A shop.", "proposed": "An online shop for small retailers.", "rationale": "More specific scope."}</json>[/PROPOSED_CHANGE]` +
		"Let me know if that works."
	chat, ref, _ := newDocChat(t, agent.NewMockLLMClientWithContent(raw))

	reply, err := chat.Discuss(context.Background(), "s1", ref, "improve the introduction")
	require.NoError(t, err)

	assert.NotContains(t, reply.Response, "PROPOSED_CHANGE")
	assert.Contains(t, reply.Response, "tightening the scope statement")
	assert.Contains(t, reply.Response, "Let me know if that works")

	require.Len(t, reply.Suggestions, 1)
	s := reply.Suggestions[0]
	assert.Equal(t, "## Introduction", s.Section)
	assert.Equal(t, "A shop.", s.Original)
	assert.Equal(t, "An online shop for small retailers.", s.Proposed)
	assert.Equal(t, "More specific scope.", s.Rationale)
}

func TestDiscussAcceptsSuggestionArray(t *testing.T) {
	raw := "Two ideas." +
		`[PROPOSED_CHANGE]<json>[{"section": "## Introduction", "proposed": "new intro"}, {"section": "## System Features", "proposed": "new features"}]</json>[/PROPOSED_CHANGE]`
	chat, ref, _ := newDocChat(t, agent.NewMockLLMClientWithContent(raw))

	reply, err := chat.Discuss(context.Background(), "s1", ref, "improve it")
	require.NoError(t, err)
	require.Len(t, reply.Suggestions, 2)
	assert.Equal(t, "## Introduction", reply.Suggestions[0].Section)
	assert.Equal(t, "## System Features", reply.Suggestions[1].Section)
}

func TestDiscussMalformedBlockIsStrippedAndDropped(t *testing.T) {
	raw := "Here is a change." +
		`[PROPOSED_CHANGE]<json>{not json}</json>[/PROPOSED_CHANGE]`
	chat, ref, _ := newDocChat(t, agent.NewMockLLMClientWithContent(raw))

	reply, err := chat.Discuss(context.Background(), "s1", ref, "improve it")
	require.NoError(t, err)
	assert.Equal(t, "Here is a change.", reply.Response)
	assert.Empty(t, reply.Suggestions)
}

func TestDiscussSkipsIncompleteSuggestions(t *testing.T) {
	raw := "A vague idea." +
		`[PROPOSED_CHANGE]<json>{"section": "", "proposed": "something"}</json>[/PROPOSED_CHANGE]`
	chat, ref, _ := newDocChat(t, agent.NewMockLLMClientWithContent(raw))

	reply, err := chat.Discuss(context.Background(), "s1", ref, "improve it")
	require.NoError(t, err)
	assert.Empty(t, reply.Suggestions)
}

func TestDiscussKeepsHistoryAcrossTurns(t *testing.T) {
	mock := agent.NewMockLLMClientWithContent("first reply", "second reply")
	chat, ref, _ := newDocChat(t, mock)
	ctx := context.Background()

	_, err := chat.Discuss(ctx, "s1", ref, "first question")
	require.NoError(t, err)
	_, err = chat.Discuss(ctx, "s1", ref, "second question")
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	// Second call carries the first exchange: system + 2 history + current.
	second := calls[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, "first question", second[1].Content)
	assert.Equal(t, "first reply", second[2].Content)
	assert.Equal(t, "second question", second[3].Content)

	history := chat.History(ctx, "s1")
	require.Len(t, history, 4)
	assert.Equal(t, "second reply", history[3].Content)
}

func TestDiscussFailureLeavesHistoryUntouched(t *testing.T) {
	mock := agent.NewMockLLMClient(
		[]agent.CompletionResponse{{Content: "first reply"}},
		[]error{nil, agent.NewError(agent.ErrorTypeTransient, "down")},
	)
	chat, ref, _ := newDocChat(t, mock)
	ctx := context.Background()

	_, err := chat.Discuss(ctx, "s1", ref, "first question")
	require.NoError(t, err)
	_, err = chat.Discuss(ctx, "s1", ref, "second question")
	require.Error(t, err)

	history := chat.History(ctx, "s1")
	require.Len(t, history, 2, "the failed turn is not recorded")
}

func TestDiscussMissingDocumentFails(t *testing.T) {
	chat, _, _ := newDocChat(t, agent.NewMockLLMClientWithContent("unused"))
	missing := artifact.Ref{
		Kind: artifact.KindDocumentation,
		Path: filepath.Join(t.TempDir(), "gone.md"),
	}
	_, err := chat.Discuss(context.Background(), "s1", missing, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not available")
}
