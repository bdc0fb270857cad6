package search

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/syllabus/internal/db"
	"github.com/kailas-cloud/syllabus/internal/domain/search/filter"
	"github.com/kailas-cloud/syllabus/internal/domain/search/query"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
)

func TestSearch_MergesRanks(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "t:chunks:idx" {
			t.Errorf("index = %s", q.IndexName)
		}
		if q.K != DefaultDensePool {
			t.Errorf("K = %d, want %d", q.K, DefaultDensePool)
		}
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			entry("a", "9709.p1"),
			entry("b", "9709.p1.algebra"),
		}}, nil
	}
	ms.searchBM25Fn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if q.TopK != 7 {
			t.Errorf("TopK = %d, want 7", q.TopK)
		}
		if !reflect.DeepEqual(q.Terms, []string{"solve", "quadratic"}) {
			t.Errorf("terms = %v", q.Terms)
		}
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			entry("c", "9709.p1"),
			entry("a", "9709.p1"),
		}}, nil
	}

	rows, err := repo.Search(context.Background(), &query.Query{
		Text:    "Solve a quadratic!",
		Vector:  []float32{0.1, 0.2},
		Root:    topicpath.MustParse("9709.p1"),
		KeyPool: 7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	a, b, c := rows[0], rows[1], rows[2]
	if a.ID() != "a" || b.ID() != "b" || c.ID() != "c" {
		t.Fatalf("order = %s %s %s", a.ID(), b.ID(), c.ID())
	}
	if *a.RankSem() != 1 || *a.RankKey() != 2 {
		t.Errorf("a ranks = %v/%v", *a.RankSem(), *a.RankKey())
	}
	if *b.RankSem() != 2 || b.RankKey() != nil {
		t.Errorf("b ranks = %v/%v", b.RankSem(), b.RankKey())
	}
	if c.RankSem() != nil || *c.RankKey() != 1 {
		t.Errorf("c ranks = %v/%v", c.RankSem(), c.RankKey())
	}
	if b.TopicPath() != "9709.p1.algebra" || b.Snippet() != "snippet b" {
		t.Errorf("b = %s %q", b.TopicPath(), b.Snippet())
	}
}

func TestSearch_AppliesBoundaryToBothRankings(t *testing.T) {
	repo, ms := newTestRepo(t)

	check := func(f filter.Expression) {
		t.Helper()
		if len(f.Must()) != 3 {
			t.Fatalf("must = %d conditions, want lineage+subject+lang", len(f.Must()))
		}
		if f.Must()[0].Key() != filter.FieldTopicLineage || f.Must()[0].Match() != "9709.p1" {
			t.Errorf("boundary = %s:%s", f.Must()[0].Key(), f.Must()[0].Match())
		}
		if f.Must()[1].Match() != "9709" || f.Must()[2].Match() != "en" {
			t.Errorf("hints = %s, %s", f.Must()[1].Match(), f.Must()[2].Match())
		}
		if len(f.MustNot()) != 1 || f.MustNot()[0].Match() != "unmapped" {
			t.Errorf("must_not = %v", f.MustNot())
		}
	}
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		check(q.Filters)
		return &db.SearchResult{}, nil
	}
	ms.searchBM25Fn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		check(q.Filters)
		return &db.SearchResult{}, nil
	}

	_, err := repo.Search(context.Background(), &query.Query{
		Text:    "q",
		Vector:  []float32{1},
		Root:    "9709.p1",
		Subject: "9709",
		Lang:    "EN",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearch_LexicalOnlyWithoutVector(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchBM25Fn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{entry("x", "9709")}}, nil
	}

	rows, err := repo.Search(context.Background(), &query.Query{Text: "words here", Root: "9709"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.knnCalls != 0 {
		t.Errorf("KNN called %d times without a vector", ms.knnCalls)
	}
	if len(rows) != 1 || rows[0].RankSem() != nil || *rows[0].RankKey() != 1 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestSearch_RejectsMissingRoot(t *testing.T) {
	repo, ms := newTestRepo(t)
	if _, err := repo.Search(context.Background(), &query.Query{Text: "q"}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := repo.Search(context.Background(), &query.Query{Text: "q", Root: topicpath.Unmapped}); err == nil {
		t.Fatal("expected error for unmapped root")
	}
	if ms.knnCalls+ms.bm25Calls != 0 {
		t.Error("store must not be called without a valid root")
	}
}

func TestSearch_StoreErrors(t *testing.T) {
	storeErr := errors.New("connection reset")

	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) { return nil, storeErr }
	if _, err := repo.Search(context.Background(), &query.Query{Text: "q", Vector: []float32{1}, Root: "9709"}); !errors.Is(err, storeErr) {
		t.Errorf("knn error = %v", err)
	}
	if ms.bm25Calls != 0 {
		t.Error("BM25 should not run after a KNN failure")
	}

	repo, ms = newTestRepo(t)
	ms.searchBM25Fn = func(context.Context, *db.TextQuery) (*db.SearchResult, error) { return nil, storeErr }
	if _, err := repo.Search(context.Background(), &query.Query{Text: "q", Root: "9709"}); !errors.Is(err, storeErr) {
		t.Errorf("bm25 error = %v", err)
	}
}

func TestTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Solve x^2 + 3x = 0", []string{"solve", "3x"}},
		{"rate of change, RATE of change", []string{"rate", "of", "change"}},
		{"  ", []string{}},
		{"différentielle équation", []string{"différentielle", "équation"}},
	}
	for _, tt := range tests {
		if got := Terms(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Terms(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTerms_Capped(t *testing.T) {
	text := ""
	for i := range maxTerms + 10 {
		text += string(rune('a'+i%26)) + string(rune('a'+i/26)) + " "
	}
	if got := Terms(text); len(got) != maxTerms {
		t.Errorf("len = %d, want %d", len(got), maxTerms)
	}
}
