package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/search/request"
	answeruc "github.com/kailas-cloud/syllabus/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/syllabus/internal/usecase/health"
	searchuc "github.com/kailas-cloud/syllabus/internal/usecase/search"
)

const maxBodyBytes = 1 << 20

// Searcher runs boundary searches.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) (*searchuc.Response, error)
}

// Answerer runs grounded chat turns.
type Answerer interface {
	Answer(ctx context.Context, p *answeruc.Params) (*answeruc.Response, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers of the retrieval API.
type Server struct {
	search        Searcher
	answer        Answerer
	health        HealthChecker
	allowFallback bool
}

// NewServer creates an HTTP API server. answer may be nil when chat is not configured.
// allowFallback is the /v1/search default when a request omits allow_fallback.
func NewServer(search Searcher, answer Answerer, health HealthChecker, allowFallback bool) *Server {
	return &Server{
		search:        search,
		answer:        answer,
		health:        health,
		allowFallback: allowFallback,
	}
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if !decodeBody(w, r, &body) {
		return
	}
	annotatePath(r.Context(), body.CurrentTopicPath)

	allowFallback := s.allowFallback
	if body.AllowFallback != nil {
		allowFallback = *body.AllowFallback
	}
	req, err := request.New(request.Params{
		Query:         body.Query,
		TopicPath:     body.CurrentTopicPath,
		Subject:       body.SubjectCode,
		Lang:          body.Lang,
		MatchCount:    body.MatchCount,
		MinScore:      body.MinScore,
		Weights:       body.Weights.toFusion(),
		AllowFallback: allowFallback,
	})
	if err != nil {
		kind := domain.KindInvalidRequest
		if errors.Is(err, request.ErrTopicPathRequired) {
			kind = domain.KindTopicPathRequired
		}
		writeDomainError(w, r, domain.NewSearchError(kind, err.Error(), err))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, &req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		CurrentTopicPath: resp.CurrentTopicPath.String(),
		Mode:             string(resp.Mode),
		Degraded:         resp.Degraded,
		Retries:          resp.Retries,
		Evidence:         evidenceToBody(resp.Evidence),
		Citations:        citationsToBody(resp.Citations),
	})
}

// Chat handles POST /v1/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	if s.answer == nil {
		writeDomainError(w, r, domain.NewSearchError(domain.KindChatUnavailable, "chat is not configured", nil))
		return
	}

	var body ChatRequest
	if !decodeBody(w, r, &body) {
		return
	}
	annotatePath(r.Context(), body.CurrentTopicPath)

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.answer.Answer(ctx, &answeruc.Params{
		Messages:       body.Messages,
		TopicPath:      body.CurrentTopicPath,
		Subject:        body.SubjectCode,
		Lang:           body.Lang,
		TopK:           body.TopK,
		ConversationID: body.ConversationID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, ChatResponse{
		CurrentTopicPath: resp.CurrentTopicPath.String(),
		SubjectCode:      resp.Subject,
		Lang:             resp.Lang,
		Answer:           resp.Answer,
		Evidence:         evidenceToBody(resp.Evidence),
		Citations:        citationsToBody(resp.Citations),
		ConversationID:   resp.ConversationID,
		Usage: &ChatUsage{
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
			TotalTokens:      resp.PromptTokens + resp.CompletionTokens,
		},
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		annotate(r.Context(), string(domain.KindInvalidRequest), "")
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest), "invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage == nil || !usage.Used {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	if n := usage.RetryCount(); n > 0 {
		w.Header().Set("X-Embedding-Retries", strconv.Itoa(n))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
