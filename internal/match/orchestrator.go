package match

import (
	"context"
	"errors"
	"fmt"
	"log"

	"card-scanner/internal/attributes"
	"card-scanner/internal/card"
	"card-scanner/internal/scanerr"
)

// DefaultLimit is the number of candidates requested per query.
const DefaultLimit = 20

// Candidate is a catalog record returned by a search. Everything except
// Ref is supplied by the catalog and passed through untouched.
type Candidate struct {
	Ref     string   `json:"id"`
	Name    string   `json:"name"`
	SetName string   `json:"set_name,omitempty"`
	Number  string   `json:"number,omitempty"`
	Score   float64  `json:"score,omitempty"`
	Reasons []string `json:"match_reasons,omitempty"`
}

// Searcher is the catalog-search collaborator. Filters are advisory.
type Searcher interface {
	Search(ctx context.Context, q Query, limit int) ([]Candidate, error)
}

// Result is the outcome of one cascade run.
type Result struct {
	Matched    bool        `json:"matched"`
	Query      *Query      `json:"query,omitempty"` // The query that produced Candidates
	Candidates []Candidate `json:"candidates,omitempty"`
	Attempts   []Query     `json:"attempts"`
}

// Orchestrator issues a cascade of queries one at a time.
type Orchestrator struct {
	searcher Searcher
	limit    int
}

// NewOrchestrator creates an orchestrator. A non-positive limit uses
// DefaultLimit.
func NewOrchestrator(s Searcher, limit int) *Orchestrator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Orchestrator{searcher: s, limit: limit}
}

// Run searches with each query from BuildQueries in order and stops at the
// first one that returns candidates. Running out of queries is not an
// error: the result has Matched false and lists every attempt. A searcher
// failure aborts the run.
func (o *Orchestrator) Run(ctx context.Context, a attributes.Attributes, energy card.Energy) (*Result, error) {
	queries := BuildQueries(a, energy)
	res := &Result{Attempts: make([]Query, 0, len(queries))}

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("search stopped after %d queries: %w", i, err)
		}
		res.Attempts = append(res.Attempts, q)
		log.Printf("Match: trying %s %s (%d/%d)", q.Strategy, q, i+1, len(queries))

		cands, err := o.searcher.Search(ctx, q, o.limit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return res, fmt.Errorf("search stopped after %d queries: %w", i+1, err)
			}
			return res, scanerr.NewSearchError(q.Text, err)
		}
		if len(cands) > 0 {
			log.Printf("Match: %d candidates for %s", len(cands), q)
			res.Matched = true
			res.Query = &res.Attempts[len(res.Attempts)-1]
			res.Candidates = cands
			return res, nil
		}
	}

	log.Printf("Match: no results after %d queries", len(res.Attempts))
	return res, nil
}
