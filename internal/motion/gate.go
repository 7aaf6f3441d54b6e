// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion decides when the camera should follow the device.
package motion

import (
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
)

// Signal is the gate's verdict for one orientation update.
type Signal int

const (
	NoChange Signal = iota
	Start
	Stop
)

func (s Signal) String() string {
	switch s {
	case Start:
		return "start"
	case Stop:
		return "stop"
	default:
		return "no-change"
	}
}

const (
	DefaultThetaThreshold = 0.05   // degrees
	DefaultAxisThreshold  = 0.0005 // length of the axis difference
)

// Gate compares consecutive orientations against fixed thresholds.
type Gate struct {
	ThetaThreshold float64
	AxisThreshold  float64
}

// DefaultGate uses the thresholds the firmware was tuned with.
func DefaultGate() Gate {
	return Gate{ThetaThreshold: DefaultThetaThreshold, AxisThreshold: DefaultAxisThreshold}
}

// Delta is the raw comparison behind a verdict.
type Delta struct {
	Theta float64 // previous.Angle() - current.Angle(), signed
	Axis  float64 // |previous.Axis() - current.Axis()|
}

// Compare computes the delta between two orientations.
func Compare(previous, current orientation.Quaternion) Delta {
	return Delta{
		Theta: previous.Angle() - current.Angle(),
		Axis:  r3.Norm(r3.Sub(previous.Axis(), current.Axis())),
	}
}

// Evaluate returns Start when the orientation moved enough, Stop otherwise.
//
// Only a decrease of the angle beyond the threshold counts; an increase with
// an unchanged axis yields Stop.
// TODO: decide whether |Theta| was intended once a device that
// rotates about a fixed axis is available for testing.
func (g Gate) Evaluate(previous, current orientation.Quaternion) Signal {
	d := Compare(previous, current)
	if d.Theta > g.ThetaThreshold || d.Axis > g.AxisThreshold {
		return Start
	}
	return Stop
}

// Latch holds the tracking state. Start and Stop are idempotent; Apply
// reports NoChange when the signal does not flip the state.
// It is safe for concurrent use.
type Latch struct {
	active atomic.Bool
}

// Apply records sig and returns it if it changed the state.
func (l *Latch) Apply(sig Signal) Signal {
	switch sig {
	case Start:
		if l.active.CompareAndSwap(false, true) {
			return Start
		}
	case Stop:
		if l.active.CompareAndSwap(true, false) {
			return Stop
		}
	}
	return NoChange
}

// Active reports whether tracking is running.
func (l *Latch) Active() bool { return l.active.Load() }
