// Package app wires the scanner together: catalog, OCR engine, boundary
// detector and pipeline, plus the live auto-capture session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"card-scanner/internal/boundary"
	"card-scanner/internal/camera"
	"card-scanner/internal/capture"
	"card-scanner/internal/card"
	"card-scanner/internal/catalog"
	"card-scanner/internal/config"
	"card-scanner/internal/match"
	"card-scanner/internal/ocr"
	"card-scanner/internal/pipeline"
)

// EventType identifies application events.
type EventType int

const (
	EventStatus  EventType = iota // capture.Status after each detection tick
	EventCapture                  // capture.Event handed to a pipeline run
	EventOutcome                  // *pipeline.Outcome of a finished run
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// App holds the long-lived scanner components.
type App struct {
	Config   config.Config
	Catalog  *catalog.DB
	Detector *boundary.Detector
	Pipeline *pipeline.Pipeline

	closers []io.Closer

	mu        sync.RWMutex
	listeners map[EventType][]EventListener
}

// New validates cfg and opens the catalog and the OCR engine it
// describes. Invalid settings fail with INVALID_CONFIGURATION.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := catalog.Open(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	engine, err := ocr.NewEngine(cfg.OCRParams())
	if err != nil {
		db.Close()
		return nil, err
	}
	a := newApp(cfg, db, engine)
	a.closers = append(a.closers, engine)
	return a, nil
}

func newApp(cfg config.Config, db *catalog.DB, r pipeline.Recognizer) *App {
	searcher := match.NewLimitedSearcher(cfg.Limiter(), db)
	p := pipeline.New(r, searcher, cfg.PipelineOptions()).WithCollection(db)
	return &App{
		Config:    cfg,
		Catalog:   db,
		Detector:  boundary.NewDetector(cfg.BoundaryParams()),
		Pipeline:  p,
		closers:   []io.Closer{db},
		listeners: make(map[EventType][]EventListener),
	}
}

// Close releases the OCR engine and the catalog.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// On registers a listener for an event type.
func (a *App) On(event EventType, listener EventListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners[event] = append(a.listeners[event], listener)
}

// Emit calls every listener registered for event.
func (a *App) Emit(event EventType, data interface{}) {
	a.mu.RLock()
	listeners := a.listeners[event]
	a.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Detect finds the card boundary in f. Detection failures count as no
// boundary.
func (a *App) Detect(f *card.Frame) *card.Boundary {
	b, err := a.Detector.Detect(f)
	if err != nil {
		log.Printf("App: detection failed: %v", err)
		return nil
	}
	return b
}

// Scan identifies the card in a single still frame.
func (a *App) Scan(ctx context.Context, f *card.Frame) *pipeline.Outcome {
	out := a.Pipeline.Run(ctx, f, a.Detect(f))
	a.Emit(EventOutcome, out)
	return out
}

// RunCamera drives auto-capture over src until ctx ends or src runs dry.
// Each value received on manual triggers a capture of the current frame.
// It waits for in-flight runs before returning.
func (a *App) RunCamera(ctx context.Context, src capture.FrameSource, manual <-chan struct{}) error {
	ctrl := capture.NewController(src, a.Detector, a.Config.CaptureParams(), a.Config.DetectionInterval, 1)
	ctrl.OnStatus(func(s capture.Status) { a.Emit(EventStatus, s) })

	session := capture.NewSession(a.Pipeline, func(out *pipeline.Outcome) { a.Emit(EventOutcome, out) })
	defer session.Wait()
	defer session.Close()

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for ev := range ctrl.Events() {
			if !a.Config.AutoCapture {
				continue
			}
			a.Emit(EventCapture, ev)
			session.Submit(ev)
		}
	}()

	ctrl.Start()
	defer ctrl.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ctrl.Done():
			err := ctrl.Err()
			if errors.Is(err, camera.ErrExhausted) {
				// Let the last captures finish and report.
				<-forwarded
				session.Wait()
				return nil
			}
			return err
		case _, ok := <-manual:
			if !ok {
				manual = nil
				continue
			}
			ev, err := ctrl.Snapshot()
			if err != nil {
				log.Printf("App: manual capture failed: %v", err)
				continue
			}
			a.Emit(EventCapture, ev)
			session.Manual(ev)
		}
	}
}
