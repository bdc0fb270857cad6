package health

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/syllabus/internal/db"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means searches still run, possibly lexical only.
	Degraded Status = "degraded"
	// Unhealthy means searches cannot be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckTimeout indicates the component did not answer in time.
	CheckTimeout CheckResult = "timeout"
)

// Component names in a report.
const (
	ComponentDatabase  = "database"
	ComponentIndex     = "index"
	ComponentEmbedding = "embedding"
	ComponentChat      = "chat"
)

const defaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Deps are the components to probe. Nil providers are skipped.
type Deps struct {
	DB        DBPinger
	Index     IndexChecker
	Embedding ProviderChecker
	Chat      ProviderChecker
}

// Service coordinates health checks.
type Service struct {
	deps    Deps
	timeout time.Duration
}

// New creates a Service. timeout <= 0 selects 3s per check.
func New(deps Deps, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{deps: deps, timeout: timeout}
}

// Check probes all components concurrently.
// A database or index failure makes the service unhealthy; a provider failure only degrades it.
func (s *Service) Check(ctx context.Context) Report {
	type probe struct {
		name string
		fn   func(context.Context) error
	}
	probes := []probe{{ComponentDatabase, s.deps.DB.Ping}}
	if s.deps.Index != nil {
		probes = append(probes, probe{ComponentIndex, s.indexReady})
	}
	if s.deps.Embedding != nil {
		probes = append(probes, probe{ComponentEmbedding, s.deps.Embedding.HealthCheck})
	}
	if s.deps.Chat != nil {
		probes = append(probes, probe{ComponentChat, s.deps.Chat.HealthCheck})
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(probes))
	)
	for _, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := classify(p.fn(cctx))
			mu.Lock()
			checks[p.name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	return Report{Status: aggregate(checks), Checks: checks}
}

func (s *Service) indexReady(ctx context.Context) error {
	ok, err := s.deps.Index.IndexReady(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errIndexMissing
	}
	return nil
}

func classify(err error) CheckResult {
	switch {
	case err == nil:
		return CheckOK
	case db.IsUnavailable(err):
		return CheckTimeout
	default:
		return CheckError
	}
}

func aggregate(checks map[string]CheckResult) Status {
	if failed(checks[ComponentDatabase]) || failed(checks[ComponentIndex]) {
		return Unhealthy
	}
	for _, v := range checks {
		if failed(v) {
			return Degraded
		}
	}
	return Healthy
}

// failed treats a missing result (component not probed) as passing.
func failed(r CheckResult) bool { return r != "" && r != CheckOK }
