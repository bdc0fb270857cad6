package chi

import (
	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/search/fusion"
	"github.com/kailas-cloud/syllabus/internal/domain/search/result"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	IncidentID string `json:"incident_id,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query            string       `json:"query"`
	CurrentTopicPath string       `json:"current_topic_path"`
	SubjectCode      string       `json:"subject_code"`
	Lang             string       `json:"lang"`
	MatchCount       int          `json:"match_count"`
	MinScore         float64      `json:"min_score"`
	Weights          *WeightsBody `json:"weights,omitempty"`
	AllowFallback    *bool        `json:"allow_fallback,omitempty"`
}

// WeightsBody overrides the fusion weights for one request. Omitted k selects 60.
type WeightsBody struct {
	Sem float64 `json:"sem"`
	Key float64 `json:"key"`
	K   *int    `json:"k,omitempty"`
}

func (w *WeightsBody) toFusion() *fusion.Weights {
	if w == nil {
		return nil
	}
	k := fusion.DefaultK
	if w.K != nil {
		k = *w.K
	}
	return &fusion.Weights{Sem: w.Sem, Key: w.Key, K: k}
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	CurrentTopicPath string         `json:"current_topic_path"`
	Mode             string         `json:"mode"`
	Degraded         bool           `json:"degraded"`
	Retries          int            `json:"retries"`
	Evidence         []EvidenceBody `json:"evidence"`
	Citations        []CitationBody `json:"citations"`
}

// EvidenceBody is one ranked row.
type EvidenceBody struct {
	ID        string  `json:"id"`
	TopicPath string  `json:"topic_path"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
	RankSem   *int    `json:"rank_sem"`
	RankKey   *int    `json:"rank_key"`
}

// CitationBody is the compact form of a row.
type CitationBody struct {
	ID        string  `json:"id"`
	TopicPath string  `json:"topic_path"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Messages         []domain.ChatMessage `json:"messages"`
	CurrentTopicPath string               `json:"current_topic_path"`
	SubjectCode      string               `json:"subject_code"`
	Lang             string               `json:"lang"`
	TopK             int                  `json:"top_k"`
	ConversationID   string               `json:"conversation_id"`
}

// ChatResponse is the body of a successful chat turn.
type ChatResponse struct {
	CurrentTopicPath string         `json:"current_topic_path"`
	SubjectCode      string         `json:"subject_code"`
	Lang             string         `json:"lang"`
	Answer           string         `json:"answer"`
	Evidence         []EvidenceBody `json:"evidence"`
	Citations        []CitationBody `json:"citations"`
	ConversationID   string         `json:"conversation_id"`
	Usage            *ChatUsage     `json:"usage,omitempty"`
}

// ChatUsage reports chat model token consumption.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func evidenceToBody(ev []result.Evidence) []EvidenceBody {
	out := make([]EvidenceBody, len(ev))
	for i := range ev {
		out[i] = EvidenceBody{
			ID:        ev[i].ID,
			TopicPath: ev[i].TopicPath,
			Snippet:   ev[i].Snippet,
			Score:     ev[i].Score,
			RankSem:   ev[i].RankSem,
			RankKey:   ev[i].RankKey,
		}
	}
	return out
}

func citationsToBody(cs []result.Citation) []CitationBody {
	out := make([]CitationBody, len(cs))
	for i := range cs {
		out[i] = CitationBody{
			ID:        cs[i].ID,
			TopicPath: cs[i].TopicPath,
			Snippet:   cs[i].Snippet,
			Score:     cs[i].Score,
		}
	}
	return out
}
