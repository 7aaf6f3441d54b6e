// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quaternion is a rotation in the viewer's coordinate system.
// Real is w; Imag, Jmag and Kmag are x, y and z.
type Quaternion struct {
	quat.Number
}

// New builds a quaternion from its w, x, y, z components.
func New(w, x, y, z float64) Quaternion {
	return Quaternion{quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}}
}

// Identity is the "no rotation" quaternion.
func Identity() Quaternion {
	return New(1, 0, 0, 0)
}

func (q Quaternion) vector() r3.Vec {
	return r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// Axis returns the unit rotation axis. The identity (or any quaternion with a
// zero vector part) has no defined axis and reports +Y.
func (q Quaternion) Axis() r3.Vec {
	v := q.vector()
	if v == (r3.Vec{}) {
		return r3.Vec{Y: 1}
	}
	return r3.Unit(v)
}

// Angle returns the rotation angle in degrees, in [0, 360].
// It depends only on the ratio between the vector and scalar parts, so an
// unnormalized quaternion reports the same angle as its normalized form.
func (q Quaternion) Angle() float64 {
	return math.Atan2(r3.Norm(q.vector()), q.Real) * (360.0 / math.Pi)
}

// Normalized returns q scaled to unit length. The zero quaternion is returned
// unchanged.
func (q Quaternion) Normalized() Quaternion {
	n := quat.Abs(q.Number)
	if n == 0 || n == 1 {
		return q
	}
	return Quaternion{quat.Scale(1/n, q.Number)}
}

// FromAxisAngle builds a unit quaternion rotating deg degrees about axis.
func FromAxisAngle(axis r3.Vec, deg float64) Quaternion {
	half := deg * math.Pi / 360.0
	a := r3.Scale(math.Sin(half), r3.Unit(axis))
	return New(math.Cos(half), a.X, a.Y, a.Z)
}

// Sample is the published form of an accepted orientation.
type Sample struct {
	W     float64    `json:"w"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Z     float64    `json:"z"`
	Angle float64    `json:"angle_deg"`
	Axis  [3]float64 `json:"axis"`
	Tag   byte       `json:"tag"`
	Time  time.Time  `json:"time"`
}

// NewSample captures q for publishing.
func NewSample(q Quaternion, tag byte, at time.Time) Sample {
	a := q.Axis()
	return Sample{
		W:     q.Real,
		X:     q.Imag,
		Y:     q.Jmag,
		Z:     q.Kmag,
		Angle: q.Angle(),
		Axis:  [3]float64{a.X, a.Y, a.Z},
		Tag:   tag,
		Time:  at,
	}
}
