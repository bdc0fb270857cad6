package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/search/mode"
	"github.com/kailas-cloud/syllabus/internal/domain/search/request"
	"github.com/kailas-cloud/syllabus/internal/domain/search/result"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
	"github.com/kailas-cloud/syllabus/internal/usecase/search"
)

// --- Fakes ---

type fakeSearcher struct {
	resp  *search.Response
	err   error
	calls int
	last  *request.Request
}

func (f *fakeSearcher) Search(_ context.Context, req *request.Request) (*search.Response, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeCompleter struct {
	answer string
	err    error
	sent   []domain.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []domain.ChatMessage) (domain.CompletionResult, error) {
	f.sent = msgs
	if f.err != nil {
		return domain.CompletionResult{}, f.err
	}
	return domain.CompletionResult{Content: f.answer, PromptTokens: 40, CompletionTokens: 8}, nil
}

type fakeConversations struct {
	stored  map[string][]domain.ChatMessage
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeConversations) Load(_ context.Context, id string) ([]domain.ChatMessage, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.stored[id], nil
}

func (f *fakeConversations) Save(_ context.Context, id string, turns []domain.ChatMessage) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stored[id] = turns
	return nil
}

func searchResponse() *search.Response {
	rows := []result.Row{
		result.New("c1", "9709.p1.quad", "Complete the square.\nThen solve.", result.Rank(1), result.Rank(1)),
	}
	return &search.Response{
		CurrentTopicPath: topicpath.MustParse("9709.p1"),
		Mode:             mode.Hybrid,
		Rows:             rows,
		Evidence:         []result.Evidence{result.ToEvidence(&rows[0])},
		Citations:        []result.Citation{result.ToCitation(&rows[0])},
	}
}

func newService() (*Service, *fakeSearcher, *fakeCompleter, *fakeConversations) {
	s := &fakeSearcher{resp: searchResponse()}
	c := &fakeCompleter{answer: "Use the quadratic formula."}
	h := &fakeConversations{stored: map[string][]domain.ChatMessage{}}
	return New(s, c, h), s, c, h
}

func question(q string) []domain.ChatMessage {
	return []domain.ChatMessage{{Role: domain.RoleUser, Content: q}}
}

func kindOf(t *testing.T, err error) domain.ErrorKind {
	t.Helper()
	se, ok := domain.AsSearchError(err)
	require.True(t, ok, "expected *SearchError, got %v", err)
	return se.Kind
}

// --- Tests ---

func TestAnswer_MessagesRequired(t *testing.T) {
	svc, s, _, _ := newService()

	_, err := svc.Answer(context.Background(), &Params{TopicPath: "9709"})
	assert.Equal(t, domain.KindMessagesRequired, kindOf(t, err))

	_, err = svc.Answer(context.Background(), &Params{
		TopicPath: "9709",
		Messages:  []domain.ChatMessage{{Role: domain.RoleAssistant, Content: "hi"}},
	})
	assert.Equal(t, domain.KindMessagesRequired, kindOf(t, err))
	assert.Zero(t, s.calls)
}

func TestAnswer_TopicPathRequired(t *testing.T) {
	svc, s, _, _ := newService()
	_, err := svc.Answer(context.Background(), &Params{Messages: question("q"), TopicPath: "  "})
	assert.Equal(t, domain.KindTopicPathRequired, kindOf(t, err))
	assert.Zero(t, s.calls)
}

func TestAnswer_SearchRequest(t *testing.T) {
	svc, s, _, _ := newService()
	msgs := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleAssistant, Content: "reply"},
		{Role: domain.RoleUser, Content: strings.Repeat("é", MaxQuestionLength+50)},
	}
	_, err := svc.Answer(context.Background(), &Params{Messages: msgs, TopicPath: "9709.P1", TopK: 5})
	require.NoError(t, err)

	require.NotNil(t, s.last)
	assert.Equal(t, MaxQuestionLength, len([]rune(s.last.Query())))
	assert.Equal(t, "9709.P1", s.last.TopicPath())
	assert.Equal(t, 5, s.last.MatchCount())
	assert.False(t, s.last.AllowFallback(), "chat never degrades to lexical")
}

func TestAnswer_Success(t *testing.T) {
	svc, _, c, h := newService()

	resp, err := svc.Answer(context.Background(), &Params{Messages: question("How do I solve it?"), TopicPath: "9709.p1"})
	require.NoError(t, err)

	assert.Equal(t, "Use the quadratic formula.", resp.Answer)
	assert.Equal(t, topicpath.Path("9709.p1"), resp.CurrentTopicPath)
	assert.Equal(t, "9709", resp.Subject)
	assert.Equal(t, DefaultLang, resp.Lang)
	assert.Len(t, resp.Evidence, 1)
	assert.Len(t, resp.Citations, 1)
	assert.True(t, strings.HasPrefix(resp.ConversationID, ConversationPrefix))
	assert.Equal(t, 40, resp.PromptTokens)

	require.Len(t, c.sent, 3)
	assert.Equal(t, domain.RoleSystem, c.sent[0].Role)
	assert.Contains(t, c.sent[1].Content, "9709.p1")
	user := c.sent[2].Content
	assert.Contains(t, user, "Question: How do I solve it?")
	assert.Contains(t, user, "source_id: c1")
	assert.Contains(t, user, "topic_path: 9709.p1.quad")
	assert.Contains(t, user, "snippet: |\n  Complete the square.\n  Then solve.")

	stored := h.stored[resp.ConversationID]
	require.Len(t, stored, 2)
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "How do I solve it?"}, stored[0])
	assert.Equal(t, domain.RoleAssistant, stored[1].Role)
}

func TestAnswer_ContinuesConversation(t *testing.T) {
	svc, _, c, h := newService()
	h.stored["conv_1"] = []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "earlier"},
		{Role: domain.RoleAssistant, Content: "earlier answer"},
	}

	resp, err := svc.Answer(context.Background(), &Params{
		Messages: question("next"), TopicPath: "9709.p1", ConversationID: "conv_1", Subject: "maths", Lang: "zh",
	})
	require.NoError(t, err)

	assert.Equal(t, "conv_1", resp.ConversationID)
	assert.Equal(t, "maths", resp.Subject)
	assert.Equal(t, "zh", resp.Lang)
	require.Len(t, c.sent, 5)
	assert.Equal(t, "earlier", c.sent[2].Content)
	assert.Len(t, h.stored["conv_1"], 4)
}

func TestAnswer_HistoryIsBestEffort(t *testing.T) {
	svc, _, _, h := newService()
	h.loadErr = errors.New("timeout")
	h.saveErr = errors.New("READONLY")

	resp, err := svc.Answer(context.Background(), &Params{Messages: question("q"), TopicPath: "9709.p1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Answer)
	assert.Equal(t, 1, h.saves)
}

func TestAnswer_WithoutHistory(t *testing.T) {
	s := &fakeSearcher{resp: searchResponse()}
	svc := New(s, &fakeCompleter{answer: "a"}, nil)

	resp, err := svc.Answer(context.Background(), &Params{Messages: question("q"), TopicPath: "9709.p1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestAnswer_SearchErrorPassesThrough(t *testing.T) {
	svc, s, c, h := newService()
	leak := domain.NewSearchError(domain.KindTopicLeakageDetected, "leak", nil)
	leak.IncidentID = "inc_abc"
	s.err = leak

	_, err := svc.Answer(context.Background(), &Params{Messages: question("q"), TopicPath: "9709.p1"})
	se, ok := domain.AsSearchError(err)
	require.True(t, ok)
	assert.Equal(t, "inc_abc", se.IncidentID)
	assert.Nil(t, c.sent, "chat must not run after a failed search")
	assert.Zero(t, h.saves)
}

func TestAnswer_ChatUnavailable(t *testing.T) {
	svc, _, c, h := newService()
	c.err = domain.ErrChatProviderError

	_, err := svc.Answer(context.Background(), &Params{Messages: question("q"), TopicPath: "9709.p1"})
	assert.Equal(t, domain.KindChatUnavailable, kindOf(t, err))
	assert.ErrorIs(t, err, domain.ErrChatProviderError)
	assert.Zero(t, h.saves)
}

func TestContextBlocks_TruncatesSnippet(t *testing.T) {
	rows := []result.Row{result.New("x", "9709", strings.Repeat("a", contextSnippetLimit+10), nil, result.Rank(1))}
	out := contextBlocks(rows)
	assert.True(t, strings.HasPrefix(out, "# Context Blocks\n---\n"))
	assert.NotContains(t, out, strings.Repeat("a", contextSnippetLimit+1))
}
