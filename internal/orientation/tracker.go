// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/relabs-tech/cube_tracker/internal/teapot"
)

// fixedPointScale is the firmware's 2.14 fixed-point scale.
const fixedPointScale = 16384.0

// DecodeComponent converts one wire component to a float. The firmware sends
// signed values but they are read unsigned, so anything at or above 2.0 is
// folded back into the negative range.
func DecodeComponent(raw uint16) float64 {
	v := float64(raw) / fixedPointScale
	if v >= 2 {
		v -= 4
	}
	return v
}

// EncodeComponent is the inverse of DecodeComponent for v in [-2, 2).
func EncodeComponent(v float64) uint16 {
	if v < 0 {
		v += 4
	}
	return uint16(int(math.Round(v*fixedPointScale)) & 0xFFFF)
}

// Tracker turns teapot packets into quaternions in the viewer's frame and
// keeps the previous orientation for delta comparison.
//
// The firmware sends every sample twice with the same sequence tag; the
// repeat is dropped here.
type Tracker struct {
	lastTag  byte
	current  Quaternion
	previous Quaternion
}

// NewTracker starts with current and previous at the identity and a last
// tag of zero.
func NewTracker() *Tracker {
	return &Tracker{current: Identity(), previous: Identity()}
}

// Accept decodes p. It returns false, with no state change, when p repeats
// the last accepted sequence tag.
func (t *Tracker) Accept(p teapot.Packet) (Quaternion, bool) {
	if p.Tag() == t.lastTag {
		return Quaternion{}, false
	}
	t.lastTag = p.Tag()

	var q [4]float64
	for i := range q {
		q[i] = DecodeComponent(p.RawComponent(i))
	}

	// Device frame -> viewer frame.
	next := New(q[0], -q[2], q[3], q[1]).Normalized()

	t.previous = t.current
	t.current = next
	return next, true
}

// DeviceComponents maps a viewer-frame quaternion back to the four values
// the firmware would put on the wire.
func DeviceComponents(q Quaternion) [4]float64 {
	return [4]float64{q.Real, q.Kmag, -q.Imag, q.Jmag}
}

func (t *Tracker) Current() Quaternion  { return t.current }
func (t *Tracker) Previous() Quaternion { return t.previous }
func (t *Tracker) LastTag() byte        { return t.lastTag }

// Reset forgets the tag and both orientations.
func (t *Tracker) Reset() {
	*t = *NewTracker()
}
