package result

import "unicode/utf8"

// CitationSnippetLimit is the maximum snippet length (in runes) carried by a citation.
const CitationSnippetLimit = 280

// Row is a single candidate returned by the search backend.
// The topic path is whatever the backend stored and must be re-validated
// against the requested boundary before the row is trusted.
type Row struct {
	id        string
	topicPath string
	snippet   string
	rankSem   *int
	rankKey   *int
	score     float64
}

// New creates a search row. A nil rank means the row is absent from that ranking.
func New(id, topicPath, snippet string, rankSem, rankKey *int) Row {
	return Row{
		id: id, topicPath: topicPath, snippet: snippet,
		rankSem: copyRank(rankSem), rankKey: copyRank(rankKey),
	}
}

// Rank returns a pointer to n, for building rows.
func Rank(n int) *int { return &n }

// ID returns the content identifier.
func (r *Row) ID() string { return r.id }

// TopicPath returns the row's topic path as stored by the backend.
func (r *Row) TopicPath() string { return r.topicPath }

// Snippet returns the text snippet.
func (r *Row) Snippet() string { return r.snippet }

// RankSem returns the 1-based semantic rank, or nil.
func (r *Row) RankSem() *int { return copyRank(r.rankSem) }

// RankKey returns the 1-based lexical rank, or nil.
func (r *Row) RankKey() *int { return copyRank(r.rankKey) }

// Score returns the fused score.
func (r *Row) Score() float64 { return r.score }

// WithScore returns a copy of r carrying the given score.
func (r Row) WithScore(score float64) Row {
	r.score = score
	return r
}

// Evidence is the full per-row view returned to callers.
type Evidence struct {
	ID        string
	TopicPath string
	Snippet   string
	Score     float64
	RankSem   *int
	RankKey   *int
}

// Citation is the compact view used for chat answers.
type Citation struct {
	ID        string
	TopicPath string
	Snippet   string
	Score     float64
}

// ToEvidence maps a verified row to evidence.
func ToEvidence(r *Row) Evidence {
	return Evidence{
		ID:        r.id,
		TopicPath: r.topicPath,
		Snippet:   r.snippet,
		Score:     r.score,
		RankSem:   r.RankSem(),
		RankKey:   r.RankKey(),
	}
}

// ToCitation maps a verified row to a citation with a truncated snippet.
func ToCitation(r *Row) Citation {
	return Citation{
		ID:        r.id,
		TopicPath: r.topicPath,
		Snippet:   truncateRunes(r.snippet, CitationSnippetLimit),
		Score:     r.score,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func copyRank(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
