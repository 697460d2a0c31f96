package match

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type limitedSearcher struct {
	limiter  *rate.Limiter
	searcher Searcher
}

// NewLimitedSearcher throttles s with l. A nil limiter passes calls through.
func NewLimitedSearcher(l *rate.Limiter, s Searcher) Searcher {
	return &limitedSearcher{
		limiter:  l,
		searcher: s,
	}
}

func (s *limitedSearcher) Search(ctx context.Context, q Query, limit int) ([]Candidate, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// Wait refuses early when the next slot is past the deadline.
			return nil, fmt.Errorf("failed to wait for search slot: %v: %w", err, context.DeadlineExceeded)
		}
	}

	return s.searcher.Search(ctx, q, limit)
}
