// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ticker runs a callback at a fixed interval that can be started
// and stopped repeatedly.
package ticker

import (
	"sync"
	"time"
)

// Handle controls one scheduled callback. Start and Stop are idempotent and
// safe to call from any goroutine.
type Handle interface {
	Start()
	Stop()
	Enabled() bool
}

// Scheduler creates stopped handles.
type Scheduler interface {
	Schedule(interval time.Duration, fn func()) Handle
}

// Real schedules callbacks on time.Ticker.
type Real struct{}

func (Real) Schedule(interval time.Duration, fn func()) Handle {
	return New(interval, fn)
}

// Timer calls fn every interval while started. Callbacks never overlap.
type Timer struct {
	interval time.Duration
	fn       func()

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New returns a stopped timer.
func New(interval time.Duration, fn func()) *Timer {
	return &Timer{interval: interval, fn: fn}
}

// Start begins ticking. Calling Start on a running timer does nothing.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stop, t.done)
}

// Stop halts ticking and waits for an in-flight callback to return, so no
// callback runs after Stop returns. It must not be called from fn.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.stop == nil {
		t.mu.Unlock()
		return
	}
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	close(stop)
	<-done
}

func (t *Timer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Timer) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			// Stop may have raced with the tick.
			select {
			case <-stop:
				return
			default:
			}
			t.fn()
		}
	}
}
