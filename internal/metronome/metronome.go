// Package metronome runs a cancellable click loop at a configurable tempo.
package metronome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	MinBPM        = 30
	MaxBPM        = 200
	DefaultBPM    = 120
	DefaultVolume = 0.5
)

// ErrBPMRange is returned when a tempo falls outside [MinBPM, MaxBPM].
var ErrBPMRange = errors.New("bpm out of range")

// Sink receives one call per beat. Click runs on the metronome goroutine and
// must not call back into the Metronome.
type Sink interface {
	Click(beat int, volume float64)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(beat int, volume float64)

func (f SinkFunc) Click(beat int, volume float64) { f(beat, volume) }

// State is a point-in-time view of the metronome.
type State struct {
	Running bool    `json:"running"`
	BPM     int     `json:"bpm"`
	Volume  float64 `json:"volume"`
}

// Metronome clicks a Sink every 60s/BPM while running.
type Metronome struct {
	mu     sync.Mutex
	bpm    int
	volume float64
	sink   Sink
	log    *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped metronome.
func New(sink Sink, bpm int, volume float64, log *slog.Logger) (*Metronome, error) {
	if err := checkBPM(bpm); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Metronome{bpm: bpm, volume: clamp(volume), sink: sink, log: log}, nil
}

// Interval returns the time between beats at bpm.
func Interval(bpm int) time.Duration {
	return time.Minute / time.Duration(bpm)
}

// Start begins clicking. The first click is immediate. Starting a running
// metronome does nothing.
func (m *Metronome) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
	m.log.Debug("metronome started", "bpm", m.bpm)
}

// Stop halts the loop and waits for it to exit. No click is delivered after
// Stop returns.
func (m *Metronome) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.log.Debug("metronome stopped")
}

// Running reports whether the loop is active.
func (m *Metronome) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// BPM returns the current tempo.
func (m *Metronome) BPM() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bpm
}

// SetBPM changes the tempo. A running loop picks it up from the next beat.
func (m *Metronome) SetBPM(bpm int) error {
	if err := checkBPM(bpm); err != nil {
		return err
	}
	m.mu.Lock()
	m.bpm = bpm
	m.mu.Unlock()
	return nil
}

// ChangeBPM shifts the tempo by delta. A result outside the range leaves the
// tempo unchanged.
func (m *Metronome) ChangeBPM(delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.bpm + delta
	if err := checkBPM(next); err != nil {
		return m.bpm, err
	}
	m.bpm = next
	return next, nil
}

// SetVolume sets the click volume, clamped to [0, 1].
func (m *Metronome) SetVolume(v float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = clamp(v)
	return m.volume
}

// State returns running, bpm and volume together.
func (m *Metronome) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Running: m.cancel != nil, BPM: m.bpm, Volume: m.volume}
}

func (m *Metronome) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for beat := 1; ; beat++ {
		if ctx.Err() != nil {
			return
		}
		m.mu.Lock()
		bpm, vol := m.bpm, m.volume
		m.mu.Unlock()

		if m.sink != nil {
			m.sink.Click(beat, vol)
		}

		t := time.NewTimer(Interval(bpm))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func checkBPM(bpm int) error {
	if bpm < MinBPM || bpm > MaxBPM {
		return fmt.Errorf("%d not in [%d, %d]: %w", bpm, MinBPM, MaxBPM, ErrBPMRange)
	}
	return nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
