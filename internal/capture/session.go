package capture

import (
	"context"
	"log"
	"sync"

	"card-scanner/internal/card"
	"card-scanner/internal/pipeline"
)

// Runner runs one pipeline instance.
type Runner interface {
	Run(ctx context.Context, f *card.Frame, b *card.Boundary) *pipeline.Outcome
}

// Session starts one pipeline run per capture event and delivers the
// outcomes to a callback. Runs are independent; the session never waits
// for one before starting the next.
type Session struct {
	runner   Runner
	onResult func(*pipeline.Outcome)

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSession creates a session delivering outcomes to onResult.
func NewSession(r Runner, onResult func(*pipeline.Outcome)) *Session {
	return &Session{runner: r, onResult: onResult}
}

// Consume starts a run for every event until events is closed. It returns
// immediately.
func (s *Session) Consume(events <-chan Event) {
	go func() {
		for ev := range events {
			s.Submit(ev)
		}
	}()
}

// Manual starts a run for ev regardless of detection state. It reports
// false if the session is closed.
func (s *Session) Manual(ev Event) bool {
	ev.Manual = true
	return s.Submit(ev)
}

// Submit starts a run for ev. It reports false if the session is closed.
func (s *Session) Submit(ev Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		out := s.runner.Run(context.Background(), ev.Frame, ev.Boundary)
		s.deliver(out)
	}()
	return true
}

func (s *Session) deliver(out *pipeline.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if out != nil {
			log.Printf("Capture: session closed, discarding run %s", out.RunID)
		}
		return
	}
	if s.onResult != nil {
		s.onResult(out)
	}
}

// Close stops delivering outcomes. Runs already in flight finish but their
// outcomes are discarded. Close does not wait for them; see Wait.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Wait blocks until every started run has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}
