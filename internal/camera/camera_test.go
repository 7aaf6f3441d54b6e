// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package camera

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
)

func assertVec(t *testing.T, want, got r3.Vec, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, "x")
	assert.InDelta(t, want.Y, got.Y, delta, "y")
	assert.InDelta(t, want.Z, got.Z, delta, "z")
}

func TestRotatorIdentity(t *testing.T) {
	r := Rotator{Distance: 7.5}
	p := r.Rotate(orientation.Identity())

	assert.Equal(t, r3.Vec{Z: -7.5}, p.Eye)
	assert.Equal(t, r3.Vec{Y: -1}, p.Up)
	assert.Equal(t, r3.Vec{}, p.Target)
}

func TestRotatorQuarterTurnAboutY(t *testing.T) {
	r := Rotator{Distance: DefaultDistance}
	p := r.Rotate(orientation.FromAxisAngle(r3.Vec{Y: 1}, 90))

	// The camera turns the other way round: -90 degrees about +Y.
	assertVec(t, r3.Vec{X: 10}, p.Eye, 1e-9)
	assertVec(t, r3.Vec{Y: -1}, p.Up, 1e-9)
}

func TestRotatorHalfTurnAboutX(t *testing.T) {
	r := Rotator{Distance: 2}
	p := r.Rotate(orientation.FromAxisAngle(r3.Vec{X: 1}, 180))

	assertVec(t, r3.Vec{Z: 2}, p.Eye, 1e-9)
	assertVec(t, r3.Vec{Y: 1}, p.Up, 1e-9)
}

func TestRotateVecMatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		axis := r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
		theta := (rng.Float64()*2 - 1) * math.Pi
		v := r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}

		want := r3.Rotate(v, theta, axis)
		assertVec(t, want, RotateVec(v, axis, theta), 1e-9)
	}
}

func TestRotatePreservesLength(t *testing.T) {
	r := Rotator{Distance: 10}
	for _, deg := range []float64{0, 13, 90, 179, 270} {
		p := r.Rotate(orientation.FromAxisAngle(r3.Vec{X: 1, Y: -2, Z: 0.5}, deg))
		assert.InDelta(t, 10, r3.Norm(p.Eye), 1e-9)
		assert.InDelta(t, 1, r3.Norm(p.Up), 1e-9)
		assert.InDelta(t, 0, r3.Dot(p.Eye, p.Up), 1e-9, "eye and up stay orthogonal")
	}
}

type recordingSink struct {
	poses []Pose
	err   error
}

func (r *recordingSink) Apply(_ context.Context, p Pose) error {
	r.poses = append(r.poses, p)
	return r.err
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	pose := Pose{Eye: r3.Vec{Z: -1}}

	t.Run("empty is unavailable", func(t *testing.T) {
		assert.ErrorIs(t, MultiSink{}.Apply(ctx, pose), ErrUnavailable)
	})

	t.Run("one available is enough", func(t *testing.T) {
		ok := &recordingSink{}
		off := &recordingSink{err: ErrUnavailable}
		require.NoError(t, MultiSink{off, ok}.Apply(ctx, pose))
		assert.Equal(t, []Pose{pose}, ok.poses)
		assert.Len(t, off.poses, 1)
	})

	t.Run("all unavailable", func(t *testing.T) {
		a := &recordingSink{err: ErrUnavailable}
		b := &recordingSink{err: ErrUnavailable}
		assert.ErrorIs(t, MultiSink{a, b}.Apply(ctx, pose), ErrUnavailable)
	})

	t.Run("real failures are joined", func(t *testing.T) {
		boom := errors.New("boom")
		a := &recordingSink{err: boom}
		b := &recordingSink{}
		err := MultiSink{a, b}.Apply(ctx, pose)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrUnavailable)
		assert.Len(t, b.poses, 1, "later sinks still receive the pose")
	})
}

func TestSinkFunc(t *testing.T) {
	called := false
	s := SinkFunc(func(context.Context, Pose) error {
		called = true
		return nil
	})
	require.NoError(t, s.Apply(context.Background(), Pose{}))
	assert.True(t, called)
}
