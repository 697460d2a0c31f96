// Package capture decides when a card held in front of the camera is steady
// enough to scan, and hands captured frames to pipeline runs.
package capture

import (
	"time"

	"card-scanner/internal/boundary"
	"card-scanner/internal/card"
)

// State is the auto-capture state.
type State int

const (
	Idle State = iota
	Detecting
	Stable
	Captured
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Detecting:
		return "Detecting"
	case Stable:
		return "Stable"
	case Captured:
		return "Captured"
	case Cooldown:
		return "Cooldown"
	}
	return "Unknown"
}

// Params configures the state machine.
type Params struct {
	StabilizationFrames int           // Consecutive steady detections before capture
	CornerTolerance     float64       // Max corner movement between ticks, px
	MinConfidence       float64       // Average confidence required over the steady run
	Cooldown            time.Duration // Debounce after a capture
	HistoryWindow       time.Duration // Detections older than this are forgotten
}

// DefaultParams returns sensible defaults for a 500ms detection interval.
func DefaultParams() Params {
	return Params{
		StabilizationFrames: 3,
		CornerTolerance:     20,
		MinConfidence:       0.7,
		Cooldown:            2 * time.Second,
		HistoryWindow:       5 * time.Second,
	}
}

// Decision is the outcome of one observation.
type Decision struct {
	From          State
	To            State
	Via           []State // Entered and left within this observation
	Capture       bool    // Start a pipeline run with Boundary
	Boundary      *card.Boundary
	AvgConfidence float64 // Over the current steady run
}

type sample struct {
	at         time.Time
	confidence float64
}

// Machine is the auto-capture state machine. It is not safe for concurrent
// use; the Controller drives it from a single goroutine.
type Machine struct {
	params     Params
	state      State
	streak     int
	last       *card.Boundary
	history    []sample
	capturedAt time.Time
}

// NewMachine creates a machine in the Idle state.
func NewMachine(p Params) *Machine {
	if p.StabilizationFrames < 1 {
		p.StabilizationFrames = 1
	}
	return &Machine{params: p}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Reset returns the machine to Idle and forgets all history.
func (m *Machine) Reset() {
	m.state = Idle
	m.clear()
}

func (m *Machine) clear() {
	m.streak = 0
	m.last = nil
	m.history = m.history[:0]
}

// Observe feeds one detection result. b is nil when nothing was found.
func (m *Machine) Observe(now time.Time, b *card.Boundary) Decision {
	d := Decision{From: m.state, Boundary: b}

	switch m.state {
	case Captured:
		m.state = Cooldown

	case Cooldown:
		if now.Sub(m.capturedAt) < m.params.Cooldown {
			break
		}
		if b == nil {
			m.state = Idle
		} else {
			m.state = Detecting
			m.track(now, b)
		}

	default:
		if b == nil {
			m.Reset()
			break
		}
		m.track(now, b)
		d.AvgConfidence = m.averageConfidence()
		if !m.steady() {
			m.state = Detecting
			break
		}
		// A steady run below the confidence floor holds in Stable until
		// the average improves or the card moves.
		if d.AvgConfidence < m.params.MinConfidence {
			m.state = Stable
			break
		}
		if d.From != Stable {
			d.Via = []State{Stable}
		}
		m.state = Captured
		m.capturedAt = now
		m.clear()
		d.Capture = true
	}

	d.To = m.state
	return d
}

// track extends or restarts the steady run with b.
func (m *Machine) track(now time.Time, b *card.Boundary) {
	if m.streak > 0 && boundary.Stable(m.last, b, m.params.CornerTolerance) {
		m.streak++
	} else {
		m.streak = 1
		m.history = m.history[:0]
	}
	m.last = b

	m.history = append(m.history, sample{at: now, confidence: b.Confidence})
	cutoff := now.Add(-m.params.HistoryWindow)
	i := 0
	for i < len(m.history) && !m.history[i].at.After(cutoff) {
		i++
	}
	m.history = m.history[i:]
}

func (m *Machine) steady() bool {
	n := m.params.StabilizationFrames
	return m.streak >= n && len(m.history) >= n
}

// averageConfidence averages the most recent StabilizationFrames samples.
func (m *Machine) averageConfidence() float64 {
	recent := m.history
	if n := m.params.StabilizationFrames; len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	if len(recent) == 0 {
		return 0
	}
	var sum float64
	for _, s := range recent {
		sum += s.confidence
	}
	return sum / float64(len(recent))
}
