// Package answer grounds chat completions in a boundary search.
package answer

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/search/request"
	"github.com/kailas-cloud/syllabus/internal/domain/search/result"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
	"github.com/kailas-cloud/syllabus/internal/logger"
)

// Chat limits and defaults.
const (
	MaxQuestionLength  = 4000
	DefaultLang        = "en"
	ConversationPrefix = "conv_"
)

// Params is a chat turn as supplied by the caller.
type Params struct {
	Messages  []domain.ChatMessage
	TopicPath string
	Subject   string
	Lang      string
	// TopK <= 0 selects the search default.
	TopK           int
	ConversationID string
}

// Response is a grounded answer.
type Response struct {
	CurrentTopicPath topicpath.Path
	Subject          string
	Lang             string
	Answer           string
	Evidence         []result.Evidence
	Citations        []result.Citation
	ConversationID   string
	PromptTokens     int
	CompletionTokens int
}

// Service answers questions from the requested topic subtree only.
type Service struct {
	search  Searcher
	chat    domain.Completer
	history Conversations
}

// New creates an answer service. history may be nil, which disables persistence.
func New(s Searcher, chat domain.Completer, history Conversations) *Service {
	return &Service{search: s, chat: chat, history: history}
}

// Answer searches the subtree for the last user question and asks the chat
// model to answer from the returned context. Search errors are returned as is.
func (s *Service) Answer(ctx context.Context, p *Params) (*Response, error) {
	if len(p.Messages) == 0 {
		return nil, domain.NewSearchError(domain.KindMessagesRequired, "messages is required", nil)
	}
	if strings.TrimSpace(p.TopicPath) == "" {
		return nil, domain.NewSearchError(domain.KindTopicPathRequired, "current_topic_path is required", nil)
	}
	question := truncateRunes(strings.TrimSpace(domain.LastUserMessage(p.Messages)), MaxQuestionLength)
	if question == "" {
		return nil, domain.NewSearchError(domain.KindMessagesRequired, "messages must contain a user question", nil)
	}

	lang := strings.TrimSpace(p.Lang)
	if lang == "" {
		lang = DefaultLang
	}

	req, err := request.New(request.Params{
		Query:      question,
		TopicPath:  p.TopicPath,
		Subject:    p.Subject,
		MatchCount: p.TopK,
	})
	if err != nil {
		return nil, domain.NewSearchError(domain.KindInvalidRequest, err.Error(), err)
	}
	found, err := s.search.Search(ctx, &req)
	if err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(p.Subject)
	if subject == "" {
		subject = found.CurrentTopicPath.Subject()
	}

	convID := p.ConversationID
	if convID == "" {
		convID = ConversationPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	history := s.loadHistory(ctx, convID)

	user := domain.ChatMessage{Role: domain.RoleUser, Content: userPrompt(question, found.Rows)}
	messages := make([]domain.ChatMessage, 0, len(history)+3)
	messages = append(messages,
		domain.ChatMessage{Role: domain.RoleSystem, Content: systemPrompt(subject, lang)},
		domain.ChatMessage{Role: domain.RoleSystem, Content: taskPrompt(found.CurrentTopicPath.String())},
	)
	messages = append(messages, history...)
	messages = append(messages, user)

	completion, err := s.chat.Complete(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewSearchError(domain.KindChatUnavailable, "chat provider unavailable", err)
	}

	// Stored turns keep the bare question; context blocks are rebuilt per turn.
	s.saveHistory(ctx, convID, append(history,
		domain.ChatMessage{Role: domain.RoleUser, Content: question},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: completion.Content}))

	return &Response{
		CurrentTopicPath: found.CurrentTopicPath,
		Subject:          subject,
		Lang:             lang,
		Answer:           completion.Content,
		Evidence:         found.Evidence,
		Citations:        found.Citations,
		ConversationID:   convID,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
	}, nil
}

func (s *Service) loadHistory(ctx context.Context, id string) []domain.ChatMessage {
	if s.history == nil {
		return nil
	}
	turns, err := s.history.Load(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Warn("Conversation history unavailable",
			zap.String("conversation_id", id), zap.Error(err))
		return nil
	}
	return turns
}

func (s *Service) saveHistory(ctx context.Context, id string, turns []domain.ChatMessage) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, id, turns); err != nil {
		logger.FromContext(ctx).Warn("Failed to save conversation history",
			zap.String("conversation_id", id), zap.Error(err))
	}
}
