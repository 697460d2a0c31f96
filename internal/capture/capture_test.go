package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"card-scanner/internal/card"
	"card-scanner/internal/pipeline"
	"card-scanner/pkg/geometry"

	"github.com/stretchr/testify/require"
)

func boundaryAt(x, y, conf float64) *card.Boundary {
	return &card.Boundary{
		Corners: [4]geometry.Point2D{
			{X: x, Y: y}, {X: x + 250, Y: y}, {X: x + 250, Y: y + 350}, {X: x, Y: y + 350},
		},
		Confidence: conf,
		Area:       250 * 350,
	}
}

func testParams() Params {
	p := DefaultParams()
	p.Cooldown = time.Second
	return p
}

func TestMachineCapturesAfterStableFrames(t *testing.T) {
	m := NewMachine(testParams())
	t0 := time.Unix(1000, 0)
	tick := 500 * time.Millisecond

	d := m.Observe(t0, boundaryAt(100, 50, 0.9))
	require.Equal(t, Idle, d.From)
	require.Equal(t, Detecting, d.To)
	require.False(t, d.Capture)

	d = m.Observe(t0.Add(tick), boundaryAt(105, 52, 0.9))
	require.Equal(t, Detecting, d.To)
	require.False(t, d.Capture)

	d = m.Observe(t0.Add(2*tick), boundaryAt(102, 55, 0.8))
	require.Equal(t, Detecting, d.From)
	require.Equal(t, Captured, d.To)
	require.Equal(t, []State{Stable}, d.Via)
	require.True(t, d.Capture)
	require.InDelta(t, (0.9+0.9+0.8)/3, d.AvgConfidence, 1e-9)

	d = m.Observe(t0.Add(3*tick), boundaryAt(102, 55, 0.9))
	require.Equal(t, Cooldown, d.To)
	require.False(t, d.Capture)
}

func TestMachineCooldown(t *testing.T) {
	p := testParams()
	p.StabilizationFrames = 1
	m := NewMachine(p)
	t0 := time.Unix(1000, 0)

	require.True(t, m.Observe(t0, boundaryAt(0, 0, 0.9)).Capture)
	require.Equal(t, Cooldown, m.Observe(t0.Add(100*time.Millisecond), boundaryAt(0, 0, 0.9)).To)

	// Still inside the debounce window: the same card must not retrigger.
	d := m.Observe(t0.Add(500*time.Millisecond), boundaryAt(0, 0, 0.9))
	require.Equal(t, Cooldown, d.To)
	require.False(t, d.Capture)

	d = m.Observe(t0.Add(1500*time.Millisecond), boundaryAt(0, 0, 0.9))
	require.Equal(t, Detecting, d.To)
	require.False(t, d.Capture)
}

func TestMachineCooldownToIdle(t *testing.T) {
	p := testParams()
	p.StabilizationFrames = 1
	m := NewMachine(p)
	t0 := time.Unix(1000, 0)

	m.Observe(t0, boundaryAt(0, 0, 0.9))
	m.Observe(t0.Add(time.Millisecond), nil)
	d := m.Observe(t0.Add(2*time.Second), nil)
	require.Equal(t, Cooldown, d.From)
	require.Equal(t, Idle, d.To)
}

func TestMachineLostBoundaryResets(t *testing.T) {
	m := NewMachine(testParams())
	t0 := time.Unix(1000, 0)

	m.Observe(t0, boundaryAt(100, 50, 0.9))
	m.Observe(t0.Add(time.Second/2), boundaryAt(100, 50, 0.9))
	d := m.Observe(t0.Add(time.Second), nil)
	require.Equal(t, Idle, d.To)

	// The streak starts over.
	m.Observe(t0.Add(3*time.Second/2), boundaryAt(100, 50, 0.9))
	d = m.Observe(t0.Add(2*time.Second), boundaryAt(100, 50, 0.9))
	require.False(t, d.Capture)
	d = m.Observe(t0.Add(5*time.Second/2), boundaryAt(100, 50, 0.9))
	require.True(t, d.Capture)
}

func TestMachineMovementRestartsStreak(t *testing.T) {
	m := NewMachine(testParams())
	t0 := time.Unix(1000, 0)
	step := time.Second / 2

	m.Observe(t0, boundaryAt(100, 50, 0.9))
	m.Observe(t0.Add(step), boundaryAt(100, 50, 0.9))
	// Jumped 80px: not the same placement.
	d := m.Observe(t0.Add(2*step), boundaryAt(180, 50, 0.9))
	require.False(t, d.Capture)
	require.Equal(t, Detecting, d.To)

	m.Observe(t0.Add(3*step), boundaryAt(185, 50, 0.9))
	d = m.Observe(t0.Add(4*step), boundaryAt(182, 48, 0.9))
	require.True(t, d.Capture)
}

func TestMachineConfidenceGate(t *testing.T) {
	m := NewMachine(testParams())
	t0 := time.Unix(1000, 0)
	step := time.Second / 2

	for i := 0; i < 3; i++ {
		m.Observe(t0.Add(time.Duration(i)*step), boundaryAt(100, 50, 0.5))
	}
	require.Equal(t, Stable, m.State())

	// The average over the last three frames climbs past 0.7.
	d := m.Observe(t0.Add(3*step), boundaryAt(100, 50, 0.95))
	require.False(t, d.Capture)
	require.Equal(t, Stable, d.To)
	d = m.Observe(t0.Add(4*step), boundaryAt(100, 50, 0.95))
	require.True(t, d.Capture)
	require.Equal(t, Stable, d.From)
	require.Empty(t, d.Via)
}

func TestMachineHistoryWindow(t *testing.T) {
	m := NewMachine(testParams())
	t0 := time.Unix(1000, 0)

	// Detections 3s apart: only two fall within the 5s window.
	m.Observe(t0, boundaryAt(100, 50, 0.9))
	m.Observe(t0.Add(3*time.Second), boundaryAt(100, 50, 0.9))
	d := m.Observe(t0.Add(6*time.Second), boundaryAt(100, 50, 0.9))
	require.False(t, d.Capture)

	d = m.Observe(t0.Add(7*time.Second), boundaryAt(100, 50, 0.9))
	require.True(t, d.Capture)
}

func TestNewMachineClampsFrames(t *testing.T) {
	p := testParams()
	p.StabilizationFrames = 0
	m := NewMachine(p)
	require.True(t, m.Observe(time.Unix(1, 0), boundaryAt(0, 0, 0.9)).Capture)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "Idle", Idle.String())
	require.Equal(t, "Cooldown", Cooldown.String())
	require.Equal(t, "Unknown", State(42).String())
}

// --- Controller ---

type fakeSource struct {
	mu    sync.Mutex
	err   error
	reads int
}

func (s *fakeSource) Frame() (*card.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	return card.NewFrame(image.NewRGBA(image.Rect(0, 0, 640, 480)), time.Time{}), nil
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type fakeDetector struct {
	mu sync.Mutex
	b  *card.Boundary
}

func (d *fakeDetector) Detect(f *card.Frame) (*card.Boundary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.b, nil
}

func TestControllerTickEmitsCapture(t *testing.T) {
	p := testParams()
	c := NewController(&fakeSource{}, &fakeDetector{b: boundaryAt(100, 50, 0.9)}, p, time.Hour, 4)

	var states []State
	c.OnStatus(func(s Status) { states = append(states, s.State) })

	t0 := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		ok, err := c.Tick(t0.Add(time.Duration(i) * 500 * time.Millisecond))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, []State{Detecting, Detecting, Stable, Captured}, states)

	select {
	case ev := <-c.Events():
		require.NotNil(t, ev.Frame)
		require.NotNil(t, ev.Boundary)
		require.False(t, ev.Manual)
		require.InDelta(t, 0.9, ev.Confidence, 1e-9)
	default:
		t.Fatal("expected a capture event")
	}
}

func TestControllerDropsEventsWhenFull(t *testing.T) {
	p := testParams()
	p.StabilizationFrames = 1
	p.Cooldown = 0
	c := NewController(&fakeSource{}, &fakeDetector{b: boundaryAt(100, 50, 0.9)}, p, time.Hour, 1)

	t0 := time.Unix(1000, 0)
	// capture, cooldown, capture... with nobody reading.
	for i := 0; i < 6; i++ {
		_, err := c.Tick(t0.Add(time.Duration(i) * time.Second))
		require.NoError(t, err)
	}
	require.Len(t, c.events, 1)
}

func TestControllerSkipsOverlappingTick(t *testing.T) {
	c := NewController(&fakeSource{}, &fakeDetector{}, testParams(), time.Hour, 1)
	c.busy.Store(true)
	ok, err := c.Tick(time.Now())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestControllerLoopAndStop(t *testing.T) {
	src := &fakeSource{}
	c := NewController(src, &fakeDetector{}, testParams(), 5*time.Millisecond, 1)
	c.Start()
	c.Start()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.reads >= 3
	}, time.Second, 5*time.Millisecond)

	c.Stop()
	c.Stop()
	require.NoError(t, c.Err())

	_, open := <-c.Events()
	require.False(t, open)
}

func TestControllerStopsOnSourceError(t *testing.T) {
	src := &fakeSource{}
	src.fail(errors.New("camera unplugged"))
	c := NewController(src, &fakeDetector{}, testParams(), 5*time.Millisecond, 1)
	c.Start()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	require.ErrorContains(t, c.Err(), "camera unplugged")
	c.Stop()
}

func TestControllerSnapshot(t *testing.T) {
	c := NewController(&fakeSource{}, &fakeDetector{}, testParams(), time.Hour, 1)
	ev, err := c.Snapshot()
	require.NoError(t, err)
	require.True(t, ev.Manual)
	require.Nil(t, ev.Boundary)
	require.NotNil(t, ev.Frame)
	require.Equal(t, Idle, c.State())
}

// --- Session ---

type fakeRunner struct {
	calls   atomic.Int32
	release chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, f *card.Frame, b *card.Boundary) *pipeline.Outcome {
	r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}
	return &pipeline.Outcome{RunID: "run"}
}

func TestSessionRunsEachEvent(t *testing.T) {
	r := &fakeRunner{}
	var mu sync.Mutex
	var got int
	s := NewSession(r, func(o *pipeline.Outcome) {
		mu.Lock()
		got++
		mu.Unlock()
	})

	events := make(chan Event, 3)
	for i := 0; i < 3; i++ {
		events <- Event{Frame: &card.Frame{}}
	}
	close(events)
	s.Consume(events)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got == 3
	}, time.Second, 5*time.Millisecond)
	s.Wait()
	require.Equal(t, int32(3), r.calls.Load())
}

func TestSessionCloseDiscardsInFlight(t *testing.T) {
	r := &fakeRunner{release: make(chan struct{})}
	var delivered atomic.Int32
	s := NewSession(r, func(o *pipeline.Outcome) { delivered.Add(1) })

	require.True(t, s.Manual(Event{Frame: &card.Frame{}}))
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)

	s.Close()
	close(r.release)
	s.Wait()

	require.Zero(t, delivered.Load())
	require.False(t, s.Manual(Event{Frame: &card.Frame{}}))
}
