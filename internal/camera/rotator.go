// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package camera turns an orientation into a viewport camera pose and hands
// it to whatever is showing the model.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
)

// DefaultDistance is how far the eye sits from the target.
const DefaultDistance = 10.0

// Pose is a camera placement. Target is always the origin.
type Pose struct {
	Eye    r3.Vec `json:"eye"`
	Target r3.Vec `json:"target"`
	Up     r3.Vec `json:"up"`
}

// Rotator orbits the camera around the origin following the device.
type Rotator struct {
	Distance float64
}

// Rotate computes the pose for q. The camera turns opposite to the device so
// the model appears to follow it.
func (r Rotator) Rotate(q orientation.Quaternion) Pose {
	axis := q.Axis()
	theta := -q.Angle() * math.Pi / 180

	return Pose{
		Eye: RotateVec(r3.Vec{Z: -r.Distance}, axis, theta),
		Up:  RotateVec(r3.Vec{Y: -1}, axis, theta),
	}
}

// RotateVec rotates v by theta radians about the unit axis a using the
// quaternion-derived rotation matrix.
func RotateVec(v, a r3.Vec, theta float64) r3.Vec {
	c := math.Cos(theta)
	s := math.Sin(theta)
	t := 1 - c

	return r3.Vec{
		X: v.X*(c+a.X*a.X*t) + v.Y*(a.X*a.Y*t-a.Z*s) + v.Z*(a.X*a.Z*t+a.Y*s),
		Y: v.X*(a.Y*a.X*t+a.Z*s) + v.Y*(c+a.Y*a.Y*t) + v.Z*(a.Y*a.Z*t-a.X*s),
		Z: v.X*(a.Z*a.X*t-a.Y*s) + v.Y*(a.Z*a.Y*t+a.X*s) + v.Z*(c+a.Z*a.Z*t),
	}
}
