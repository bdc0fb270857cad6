package request

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/syllabus/internal/domain/search/fusion"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength    = 4096
	DefaultMatchCount = 12
	MaxMatchCount     = 50
)

// ErrTopicPathRequired is returned when the topic path is missing or blank.
// It takes precedence over every other parameter error.
var ErrTopicPathRequired = errors.New("current_topic_path is required")

// Params holds the raw, caller-supplied search parameters.
type Params struct {
	Query     string
	TopicPath string
	Subject   string
	Lang      string
	// MatchCount <= 0 selects DefaultMatchCount.
	MatchCount int
	MinScore   float64
	// Weights nil selects the service defaults.
	Weights       *fusion.Weights
	AllowFallback bool
}

// Request is a validated search query.
// The topic path is only checked for presence here; its canonical form is
// checked by the search pipeline so that codec failures carry their own codes.
type Request struct {
	query         string
	topicPath     string
	subject       string
	lang          string
	matchCount    int
	minScore      float64
	weights       *fusion.Weights
	allowFallback bool
}

// New validates and normalizes search parameters.
// match_count defaults to 12 and is clamped to 50.
func New(p Params) (Request, error) {
	if strings.TrimSpace(p.TopicPath) == "" {
		return Request{}, ErrTopicPathRequired
	}

	query := strings.TrimSpace(p.Query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}

	matchCount := p.MatchCount
	if matchCount <= 0 {
		matchCount = DefaultMatchCount
	}
	if matchCount > MaxMatchCount {
		matchCount = MaxMatchCount
	}

	if p.MinScore < 0 || p.MinScore > 1 {
		return Request{}, fmt.Errorf("min_score must be between 0 and 1")
	}

	var weights *fusion.Weights
	if p.Weights != nil {
		if err := p.Weights.Validate(); err != nil {
			return Request{}, fmt.Errorf("invalid weights: %w", err)
		}
		w := *p.Weights
		weights = &w
	}

	return Request{
		query:         query,
		topicPath:     p.TopicPath,
		subject:       strings.TrimSpace(p.Subject),
		lang:          strings.TrimSpace(p.Lang),
		matchCount:    matchCount,
		minScore:      p.MinScore,
		weights:       weights,
		allowFallback: p.AllowFallback,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// TopicPath returns the raw, unvalidated topic path.
func (r *Request) TopicPath() string { return r.topicPath }

// Subject returns the optional subject hint.
func (r *Request) Subject() string { return r.subject }

// Lang returns the optional language hint.
func (r *Request) Lang() string { return r.lang }

// MatchCount returns the maximum number of results to return.
func (r *Request) MatchCount() int { return r.matchCount }

// MinScore returns the minimum fused score threshold.
func (r *Request) MinScore() float64 { return r.minScore }

// Weights returns the fusion weights, falling back to def when none were given.
func (r *Request) Weights(def fusion.Weights) fusion.Weights {
	if r.weights == nil {
		return def
	}
	return *r.weights
}

// AllowFallback reports whether lexical-only degradation is acceptable.
func (r *Request) AllowFallback() bool { return r.allowFallback }
