package capture

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"card-scanner/internal/card"
)

// FrameSource supplies the live frame.
type FrameSource interface {
	Frame() (*card.Frame, error)
}

// Detector finds a card boundary in a frame. nil, nil means none found.
type Detector interface {
	Detect(f *card.Frame) (*card.Boundary, error)
}

// Event is a capture request for one frame.
type Event struct {
	Frame      *card.Frame
	Boundary   *card.Boundary // nil for a manual capture with no detection
	Confidence float64
	Manual     bool
}

// Status is reported after every detection tick.
type Status struct {
	State         State
	Boundary      *card.Boundary
	AvgConfidence float64
}

// Controller runs the detector on a fixed interval and emits capture
// events when the machine decides to capture. It never waits for the
// consumer: events that do not fit in the buffer are dropped.
type Controller struct {
	source   FrameSource
	detector Detector
	machine  *Machine
	interval time.Duration

	events   chan Event
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	busy     atomic.Bool

	srcMu sync.Mutex // Serializes source reads between ticks and snapshots

	mu       sync.Mutex
	err      error
	onStatus func(Status)
}

// NewController creates a controller. bufferSize bounds pending capture
// events; values below 1 use 1.
func NewController(src FrameSource, det Detector, p Params, interval time.Duration, bufferSize int) *Controller {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Controller{
		source:   src,
		detector: det,
		machine:  NewMachine(p),
		interval: interval,
		events:   make(chan Event, bufferSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnStatus sets a callback invoked after each tick. It runs on the
// detection goroutine and must not block.
func (c *Controller) OnStatus(fn func(Status)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// Events returns the capture event channel. It is closed when the loop
// exits.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Start begins the detection loop in a background goroutine. Calling it
// more than once has no effect.
func (c *Controller) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	log.Printf("Capture: starting detection every %v", c.interval)
	go c.loop()
}

// Stop ends the detection loop and waits for it to exit. It is safe to call
// more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	if c.started.Load() {
		<-c.done
	}
}

// Done is closed when the detection loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the loop, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// State returns the machine state. Only meaningful while no tick runs.
func (c *Controller) State() State {
	return c.machine.State()
}

func (c *Controller) loop() {
	defer close(c.done)
	defer close(c.events)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			log.Printf("Capture: detection stopped")
			return
		case now := <-ticker.C:
			if _, err := c.Tick(now); err != nil {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				log.Printf("Capture: %v", err)
				return
			}
		}
	}
}

// Tick runs one detection step. A tick that starts while another is still
// running is skipped and reports ok=false. Tick must not be called after
// the loop has exited.
func (c *Controller) Tick(now time.Time) (ok bool, err error) {
	if !c.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer c.busy.Store(false)

	f, err := c.readFrame()
	if err != nil {
		return false, err
	}
	if f == nil {
		return true, nil
	}

	b, err := c.detector.Detect(f)
	if err != nil {
		// A bad frame is treated as no detection.
		log.Printf("Capture: detection failed: %v", err)
		b = nil
	}

	at := f.Timestamp
	if at.IsZero() {
		at = now
	}
	d := c.machine.Observe(at, b)
	from := d.From
	for _, s := range append(d.Via, d.To) {
		if s != from {
			log.Printf("Capture: %s -> %s", from, s)
		}
		from = s
	}

	c.mu.Lock()
	onStatus := c.onStatus
	c.mu.Unlock()
	if onStatus != nil {
		for _, s := range d.Via {
			onStatus(Status{State: s, Boundary: b, AvgConfidence: d.AvgConfidence})
		}
		onStatus(Status{State: d.To, Boundary: b, AvgConfidence: d.AvgConfidence})
	}

	if d.Capture {
		c.emit(Event{Frame: f, Boundary: b, Confidence: d.AvgConfidence})
	}
	return true, nil
}

func (c *Controller) readFrame() (*card.Frame, error) {
	c.srcMu.Lock()
	defer c.srcMu.Unlock()
	f, err := c.source.Frame()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return f, nil
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		log.Printf("Capture: event dropped, consumer busy")
	}
}

// Snapshot grabs the current frame and runs the detector once, bypassing
// the state machine. The boundary may be nil.
func (c *Controller) Snapshot() (Event, error) {
	f, err := c.readFrame()
	if err != nil {
		return Event{}, err
	}
	if f == nil {
		return Event{}, fmt.Errorf("no frame available")
	}
	b, err := c.detector.Detect(f)
	if err != nil {
		log.Printf("Capture: detection failed: %v", err)
		b = nil
	}
	ev := Event{Frame: f, Boundary: b, Manual: true}
	if b != nil {
		ev.Confidence = b.Confidence
	}
	return ev, nil
}
