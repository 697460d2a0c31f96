// Package pipeline runs one card identification from a captured frame to
// ranked catalog candidates.
//
// Stages run in a fixed order: extract, preprocess, then text recognition
// and color classification side by side, then attribute extraction and
// the search cascade. One deadline covers recognition and search. Every
// failure is reported in the Outcome; Run never returns an error.
package pipeline

import (
	"context"
	"errors"
	"image"
	"log"
	"time"

	"card-scanner/internal/attributes"
	"card-scanner/internal/card"
	"card-scanner/internal/colorclass"
	"card-scanner/internal/extract"
	"card-scanner/internal/match"
	"card-scanner/internal/ocr"
	"card-scanner/internal/preprocess"
	"card-scanner/internal/scanerr"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Defaults for an accepted match added to the collection.
const (
	DefaultQuantity  = 1
	DefaultCondition = "Near Mint"
	DefaultVariant   = "Normal"
)

// Recognizer is the OCR collaborator.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (*ocr.Text, error)
}

// Collection stores accepted cards.
type Collection interface {
	AddCard(ctx context.Context, ref string, quantity int, condition, variant string) error
}

// Options configures a pipeline.
type Options struct {
	Strategy    preprocess.Strategy
	Timeout     time.Duration // Covers recognition and search
	SearchLimit int
	AutoAdd     bool // Add the top candidate to the collection
}

// DefaultOptions returns the light strategy with a 45 second ceiling.
func DefaultOptions() Options {
	return Options{
		Strategy:    preprocess.Light,
		Timeout:     45 * time.Second,
		SearchLimit: match.DefaultLimit,
	}
}

// Outcome reports one pipeline run. Code is empty on success.
type Outcome struct {
	RunID    string        `json:"run_id"`
	Code     scanerr.Code  `json:"code,omitempty"`
	Err      error         `json:"-"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	Method     extract.Method        `json:"extraction"`
	Strategy   preprocess.Strategy   `json:"preprocess"`
	Text       *ocr.Text             `json:"text,omitempty"`
	Attributes attributes.Attributes `json:"attributes"`
	Profile    colorclass.Profile    `json:"colors"`
	Energy     card.Energy           `json:"energy,omitempty"` // Energy used to filter searches
	Match      *match.Result         `json:"match,omitempty"`
	Added      string                `json:"added,omitempty"` // Ref added to the collection

	Image *image.RGBA `json:"-"` // The extracted card
}

// Succeeded reports whether the run produced candidates.
func (o *Outcome) Succeeded() bool {
	return o.Code == ""
}

// Candidates returns the matched candidates, if any.
func (o *Outcome) Candidates() []match.Candidate {
	if o.Match == nil {
		return nil
	}
	return o.Match.Candidates
}

// Pipeline holds the collaborators shared by runs. It keeps no per-run
// state, so one Pipeline can serve concurrent runs.
type Pipeline struct {
	recognizer   Recognizer
	orchestrator *match.Orchestrator
	collection   Collection
	opts         Options
}

// New creates a pipeline. A zero Timeout uses the default.
func New(r Recognizer, s match.Searcher, opts Options) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Pipeline{
		recognizer:   r,
		orchestrator: match.NewOrchestrator(s, opts.SearchLimit),
		opts:         opts,
	}
}

// WithCollection sets the store used for auto-add.
func (p *Pipeline) WithCollection(c Collection) *Pipeline {
	p.collection = c
	return p
}

// Options returns the pipeline's options.
func (p *Pipeline) Options() Options {
	return p.opts
}

type searchResult struct {
	res *match.Result
	err error
}

// Run identifies the card in f. b may be nil, in which case the center of
// the frame is used.
func (p *Pipeline) Run(ctx context.Context, f *card.Frame, b *card.Boundary) *Outcome {
	out := &Outcome{RunID: uuid.NewString(), Started: time.Now()}
	defer func() { out.Duration = time.Since(out.Started) }()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	ext := extract.Extract(f.Image, b)
	out.Method = ext.Method
	out.Image = ext.RGBA

	pre := preprocess.Apply(ext.RGBA, p.opts.Strategy)
	out.Strategy = pre.Strategy

	var text *ocr.Text
	var profile colorclass.Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := p.recognizer.Recognize(gctx, pre.Image)
		text = t
		return err
	})
	g.Go(func() error {
		// The enhanced strategy drops color, so classify the extracted image.
		profile = colorclass.Classify(ext.RGBA)
		return nil
	})
	// The recognizer is held to the deadline the same way.
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case <-ctx.Done():
		return p.fail(ctx, out, ctx.Err(), scanerr.Timeout)
	case err = <-done:
	}
	out.Text, out.Profile = text, profile
	if err != nil {
		return p.fail(ctx, out, err, scanerr.OCRUnavailable)
	}
	if text == nil {
		return p.fail(ctx, out, scanerr.NewOCRError(scanerr.OCRLowConfidence, nil), "")
	}

	attrs := attributes.Extract(text.Raw)
	out.Attributes = attrs
	if attrs.CardName == "" {
		return p.fail(ctx, out, scanerr.New(scanerr.NoNameExtracted, "could not read a card name", nil), "")
	}

	out.Energy = profile.Detected
	if out.Energy == "" {
		out.Energy = attrs.Energy
	}
	log.Printf("Pipeline: run %s name=%q number=%q hp=%d damage=%d energy=%s",
		out.RunID, attrs.CardName, attrs.CardNumber, attrs.HP, attrs.AttackDamage, out.Energy)

	// Neither is the searcher.
	energy := out.Energy
	ch := make(chan searchResult, 1)
	go func() {
		res, err := p.orchestrator.Run(ctx, attrs, energy)
		ch <- searchResult{res, err}
	}()

	var sr searchResult
	select {
	case <-ctx.Done():
		return p.fail(ctx, out, ctx.Err(), scanerr.Timeout)
	case sr = <-ch:
	}
	out.Match = sr.res
	if sr.err != nil {
		return p.fail(ctx, out, sr.err, scanerr.SearchNetwork)
	}
	if !sr.res.Matched {
		return p.fail(ctx, out, scanerr.New(scanerr.NoMatch, "no catalog results for any search", nil), "")
	}

	top := sr.res.Candidates[0]
	log.Printf("Pipeline: run %s matched %q (%s) via %s", out.RunID, top.Name, top.Ref, sr.res.Query.Strategy)

	if p.opts.AutoAdd && p.collection != nil {
		if err := p.collection.AddCard(ctx, top.Ref, DefaultQuantity, DefaultCondition, DefaultVariant); err != nil {
			// The match stands even if the collection write fails.
			log.Printf("Pipeline: run %s failed to add %s to collection: %v", out.RunID, top.Ref, err)
		} else {
			out.Added = top.Ref
		}
	}
	return out
}

// fail records err on out. A run whose deadline passed always reports
// TIMEOUT. Errors without a code get fallback.
func (p *Pipeline) fail(ctx context.Context, out *Outcome, err error, fallback scanerr.Code) *Outcome {
	var se *scanerr.Error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		se = scanerr.NewTimeoutError(p.opts.Timeout, err)
	case errors.As(err, &se):
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		se = scanerr.NewTimeoutError(p.opts.Timeout, err)
	default:
		se = scanerr.New(fallback, err.Error(), err)
	}
	se = se.WithRun(out.RunID)
	out.Code = se.Code
	out.Err = se
	log.Printf("Pipeline: run %s failed: %v", out.RunID, se)
	return out
}
