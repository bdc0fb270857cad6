package answer

import (
	"context"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/search/request"
	"github.com/kailas-cloud/syllabus/internal/usecase/search"
)

// Searcher runs a boundary search.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) (*search.Response, error)
}

// Conversations persists chat history between turns.
type Conversations interface {
	Load(ctx context.Context, id string) ([]domain.ChatMessage, error)
	Save(ctx context.Context, id string, turns []domain.ChatMessage) error
}
