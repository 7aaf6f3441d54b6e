// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"os"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/cube_tracker/internal/teapot"
)

// Simulator is a byte source that speaks the teapot protocol without
// hardware. It alternates between a few seconds of smooth rotation and a
// still phase, and sends each sample twice with the same tag like the real
// firmware does.
type Simulator struct {
	interval time.Duration
	ticker   *time.Ticker

	mu      sync.Mutex
	elapsed float64 // motion time in seconds; frozen while still
	steps   int
	tag     byte
	pending []byte

	closeOnce sync.Once
	closed    chan struct{}
}

const (
	simMovingSteps = 300
	simStillSteps  = 200
)

// NewSimulator emits one packet pair every interval.
func NewSimulator(interval time.Duration) *Simulator {
	return &Simulator{
		interval: interval,
		ticker:   time.NewTicker(interval),
		closed:   make(chan struct{}),
	}
}

// Read blocks until the next packet pair is due.
func (s *Simulator) Read(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, os.ErrClosed
	default:
	}

	s.mu.Lock()
	empty := len(s.pending) == 0
	s.mu.Unlock()

	if empty {
		select {
		case <-s.closed:
			return 0, os.ErrClosed
		case <-s.ticker.C:
		}
		s.mu.Lock()
		s.pending = s.next()
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// next advances the simulated device by one step and returns the wire bytes.
func (s *Simulator) next() []byte {
	phase := s.steps % (simMovingSteps + simStillSteps)
	if phase < simMovingSteps {
		s.elapsed += s.interval.Seconds()
	}
	s.steps++
	s.tag++

	q := SimulatedOrientation(s.elapsed)
	dev := DeviceComponents(q)
	var raw [4]uint16
	for i, v := range dev {
		raw[i] = EncodeComponent(v)
	}
	pkt := teapot.Encode(raw, s.tag)

	out := make([]byte, 0, 2*teapot.PacketSize)
	out = append(out, pkt[:]...)
	return append(out, pkt[:]...)
}

// SimulatedOrientation is the orientation the simulator reports after t
// seconds of motion.
func SimulatedOrientation(t float64) Quaternion {
	axis := r3.Vec{X: 0.3 * math.Sin(0.4*t), Y: 1, Z: 0.2 * math.Cos(0.25*t)}
	return FromAxisAngle(axis, 60+30*math.Sin(t))
}

// Close stops the simulator; a pending Read returns os.ErrClosed.
func (s *Simulator) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.ticker.Stop()
	})
	return nil
}
