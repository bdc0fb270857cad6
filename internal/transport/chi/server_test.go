package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/search/fusion"
	"github.com/kailas-cloud/syllabus/internal/domain/search/mode"
	"github.com/kailas-cloud/syllabus/internal/domain/search/request"
	"github.com/kailas-cloud/syllabus/internal/domain/search/result"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
	answeruc "github.com/kailas-cloud/syllabus/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/syllabus/internal/usecase/health"
	searchuc "github.com/kailas-cloud/syllabus/internal/usecase/search"
)

// --- Fakes ---

type fakeSearcher struct {
	resp *searchuc.Response
	err   error
	last  *request.Request
	calls int
}

func (f *fakeSearcher) Search(ctx context.Context, req *request.Request) (*searchuc.Response, error) {
	f.calls++
	f.last = req
	domain.UsageFromContext(ctx).AddTokens(7)
	domain.UsageFromContext(ctx).AddRetry()
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeAnswerer struct {
	resp *answeruc.Response
	err  error
	last *answeruc.Params
}

func (f *fakeAnswerer) Answer(_ context.Context, p *answeruc.Params) (*answeruc.Response, error) {
	f.last = p
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeHealth struct {
	report healthuc.Report
}

func (f *fakeHealth) Check(context.Context) healthuc.Report { return f.report }

func sampleRows() ([]result.Evidence, []result.Citation) {
	row := result.New("c1", "9709.p1.quad", "Complete the square.", result.Rank(1), nil).WithScore(0.005)
	return []result.Evidence{result.ToEvidence(&row)}, []result.Citation{result.ToCitation(&row)}
}

type harness struct {
	handler  http.Handler
	searcher *fakeSearcher
	answerer *fakeAnswerer
	health   *fakeHealth
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, apiKeys ...string) *harness {
	t.Helper()
	ev, cs := sampleRows()
	h := &harness{
		searcher: &fakeSearcher{resp: &searchuc.Response{
			CurrentTopicPath: topicpath.MustParse("9709.p1"),
			Mode:             mode.Hybrid,
			Evidence:         ev,
			Citations:        cs,
		}},
		answerer: &fakeAnswerer{resp: &answeruc.Response{
			CurrentTopicPath: topicpath.MustParse("9709.p1"),
			Subject:          "9709",
			Lang:             "en",
			Answer:           "Complete the square.",
			Evidence:         ev,
			Citations:        cs,
			ConversationID:   "conv_1",
			PromptTokens:     30,
			CompletionTokens: 5,
		}},
		health: &fakeHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
	core, logs := observer.New(zapcore.InfoLevel)
	h.logs = logs
	srv := NewServer(h.searcher, h.answerer, h.health, true)
	h.handler = NewRouter(srv, zap.New(core), apiKeys)
	return h
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

// --- /v1/search ---

func TestSearch_OK(t *testing.T) {
	h := newHarness(t)
	rr := h.do("POST", "/v1/search", `{
		"query": "solve quadratics",
		"current_topic_path": "9709.p1",
		"subject_code": "9709",
		"match_count": 5,
		"min_score": 0.001,
		"weights": {"sem": 0.5, "key": 0.5}
	}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if rr.Header().Get("X-Embedding-Tokens") != "7" {
		t.Errorf("X-Embedding-Tokens = %q", rr.Header().Get("X-Embedding-Tokens"))
	}
	if rr.Header().Get("X-Embedding-Retries") != "1" {
		t.Errorf("X-Embedding-Retries = %q", rr.Header().Get("X-Embedding-Retries"))
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CurrentTopicPath != "9709.p1" || resp.Mode != "hybrid" || resp.Degraded {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Evidence) != 1 || resp.Evidence[0].ID != "c1" || *resp.Evidence[0].RankSem != 1 || resp.Evidence[0].RankKey != nil {
		t.Errorf("evidence = %+v", resp.Evidence)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].TopicPath != "9709.p1.quad" {
		t.Errorf("citations = %+v", resp.Citations)
	}

	req := h.searcher.last
	if req.MatchCount() != 5 || req.Subject() != "9709" || !req.AllowFallback() {
		t.Errorf("request = %+v", req)
	}
	if w := req.Weights(fusion.DefaultWeights()); w.Sem != 0.5 || w.K != 60 {
		t.Errorf("weights = %+v", w)
	}
}

func TestSearch_AllowFallbackOverride(t *testing.T) {
	h := newHarness(t)
	rr := h.do("POST", "/v1/search", `{"query":"q","current_topic_path":"9709","allow_fallback":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if h.searcher.last.AllowFallback() {
		t.Error("explicit allow_fallback=false ignored")
	}
}

func TestSearch_InvalidBody(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{
		`{`,
		`{"query":"","current_topic_path":"9709"}`,
		`{"query":"q","current_topic_path":"9709","min_score":2}`,
		`{"query":"q","current_topic_path":"9709","weights":{"sem":0,"key":0}}`,
	} {
		rr := h.do("POST", "/v1/search", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rr.Code)
			continue
		}
		if e := decodeError(t, rr); e.Code != string(domain.KindInvalidRequest) {
			t.Errorf("%s: code = %s", body, e.Code)
		}
	}
}

func TestSearch_MissingTopicPathWins(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{
		`{"query":"q"}`,
		`{"query":"","current_topic_path":""}`,
		`{"query":"q","current_topic_path":"  ","min_score":5}`,
		`{"query":"q","weights":{"sem":0,"key":0}}`,
	} {
		rr := h.do("POST", "/v1/search", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rr.Code)
			continue
		}
		if e := decodeError(t, rr); e.Code != string(domain.KindTopicPathRequired) {
			t.Errorf("%s: code = %s", body, e.Code)
		}
	}
	if h.searcher.calls != 0 {
		t.Errorf("searcher called %d times", h.searcher.calls)
	}
}

func TestSearch_DomainErrors(t *testing.T) {
	tests := []struct {
		kind    domain.ErrorKind
		status  int
		message string
	}{
		{domain.KindTopicPathRequired, http.StatusBadRequest, "current_topic_path is required"},
		{domain.KindTopicPathInvalidStructure, http.StatusBadRequest, "current_topic_path is required"},
		{domain.KindTopicPathUnknown, http.StatusBadRequest, "current_topic_path is required"},
		{domain.KindDatabaseError, http.StatusInternalServerError, "database unavailable"},
		{domain.KindEmbeddingUnavailable, http.StatusBadGateway, "embedding provider unavailable"},
		{domain.KindSearchBackendError, http.StatusBadGateway, "search backend unavailable"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			h := newHarness(t)
			h.searcher.err = domain.NewSearchError(tt.kind, "current_topic_path is required", context.DeadlineExceeded)

			rr := h.do("POST", "/v1/search", `{"query":"q","current_topic_path":"9709"}`)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			e := decodeError(t, rr)
			if e.Code != string(tt.kind) || e.Error != tt.message || e.IncidentID != "" {
				t.Errorf("body = %+v", e)
			}
		})
	}
}

func TestSearch_Leakage(t *testing.T) {
	h := newHarness(t)
	se := domain.NewSearchError(domain.KindTopicLeakageDetected, "1 of 3 rows are outside 9709.p1", nil)
	se.IncidentID = "inc_0123"
	h.searcher.err = se

	rr := h.do("POST", "/v1/search", `{"query":"q","current_topic_path":"9709.p1"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	e := decodeError(t, rr)
	if e.Code != "TOPIC_LEAKAGE_DETECTED" || e.IncidentID != "inc_0123" {
		t.Errorf("body = %+v", e)
	}
	if strings.Contains(e.Error, "9709.p1") {
		t.Errorf("internal detail exposed: %q", e.Error)
	}

	lines := h.logs.FilterMessage("http_request").All()
	if len(lines) != 1 {
		t.Fatalf("request log lines = %d", len(lines))
	}
	fields := lines[0].ContextMap()
	if fields["incident_id"] != "inc_0123" || fields["code"] != "TOPIC_LEAKAGE_DETECTED" || fields["current_topic_path"] != "9709.p1" {
		t.Errorf("wide event = %v", fields)
	}
}

func TestSearch_ClientCanceled(t *testing.T) {
	h := newHarness(t)
	h.searcher.err = context.Canceled

	rr := h.do("POST", "/v1/search", `{"query":"q","current_topic_path":"9709"}`)
	if rr.Code != statusClientClosedRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

// --- /v1/chat ---

func TestChat_OK(t *testing.T) {
	h := newHarness(t)
	rr := h.do("POST", "/v1/chat", `{
		"messages": [{"role":"user","content":"How?"}],
		"current_topic_path": "9709.p1",
		"top_k": 4,
		"conversation_id": "conv_1"
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Complete the square." || resp.SubjectCode != "9709" || resp.ConversationID != "conv_1" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 35 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	p := h.answerer.last
	if len(p.Messages) != 1 || p.TopK != 4 || p.TopicPath != "9709.p1" {
		t.Errorf("params = %+v", p)
	}
}

func TestChat_MessagesRequired(t *testing.T) {
	h := newHarness(t)
	h.answerer.err = domain.NewSearchError(domain.KindMessagesRequired, "messages is required", nil)

	rr := h.do("POST", "/v1/chat", `{"messages":[],"current_topic_path":"9709"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "MESSAGES_REQUIRED" || e.Error != "messages is required" {
		t.Errorf("body = %+v", e)
	}
}

func TestChat_NotConfigured(t *testing.T) {
	h := newHarness(t)
	h.handler = NewRouter(NewServer(h.searcher, nil, h.health, true), zap.NewNop(), nil)

	rr := h.do("POST", "/v1/chat", `{"messages":[{"role":"user","content":"q"}],"current_topic_path":"9709"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "CHAT_UNAVAILABLE" {
		t.Errorf("code = %s", e.Code)
	}
}

// --- health, metrics, routing ---

func TestHealth(t *testing.T) {
	h := newHarness(t, "secret")
	rr := h.do("GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("resp = %+v", resp)
	}

	h.health.report = healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{"embedding": healthuc.CheckError}}
	if rr := h.do("GET", "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("degraded status = %d, want 200", rr.Code)
	}

	h.health.report = healthuc.Report{Status: healthuc.Unhealthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError}}
	if rr := h.do("GET", "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, "secret")
	rr := h.do("GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAuthRequiredForAPI(t *testing.T) {
	h := newHarness(t, "secret")
	rr := h.do("POST", "/v1/search", `{"query":"q","current_topic_path":"9709"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if h.searcher.last != nil {
		t.Error("search ran without credentials")
	}
}

func TestRouting(t *testing.T) {
	h := newHarness(t)
	if rr := h.do("GET", "/v1/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d", rr.Code)
	} else if e := decodeError(t, rr); e.Code != codeNotFound {
		t.Errorf("code = %s", e.Code)
	}
	if rr := h.do("GET", "/v1/search", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/search = %d", rr.Code)
	}
}

func TestRecoverer(t *testing.T) {
	h := newHarness(t)
	srv := NewServer(panicSearcher{}, nil, h.health, true)
	h.handler = NewRouter(srv, zap.NewNop(), nil)

	rr := h.do("POST", "/v1/search", `{"query":"q","current_topic_path":"9709"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %s", e.Code)
	}
}

type panicSearcher struct{}

func (panicSearcher) Search(context.Context, *request.Request) (*searchuc.Response, error) {
	panic("boom")
}
