// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session wires one IMU link to one camera: bytes are framed,
// decoded and gated on a single consumer goroutine, and a frame timer moves
// the camera from the latest committed orientation while the device is in
// motion.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/cube_tracker/internal/camera"
	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/link"
	"github.com/relabs-tech/cube_tracker/internal/motion"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/teapot"
	"github.com/relabs-tech/cube_tracker/internal/ticker"
)

// ErrLinkLost means the byte source failed. The session is finished; the
// caller should reattach with a fresh source.
var ErrLinkLost = errors.New("session: link lost")

// maxPingFailures is how many keep-alive writes in a row may fail before the
// link is declared lost.
const maxPingFailures = 3

// readerExitTimeout bounds how long shutdown waits for a Read that the
// driver does not unblock on Close.
const readerExitTimeout = 500 * time.Millisecond

// Options tune a session.
type Options struct {
	FrameInterval  time.Duration
	PingInterval   time.Duration
	PingByte       byte
	CameraDistance float64
	Gate           motion.Gate
	ReadBuffer     int
}

// DefaultOptions matches the stock device setup: 100 fps camera updates
// and a 2 s keep-alive.
func DefaultOptions() Options {
	return Options{
		FrameInterval:  10 * time.Millisecond,
		PingInterval:   link.DefaultPingInterval,
		PingByte:       link.DefaultPingByte,
		CameraDistance: camera.DefaultDistance,
		Gate:           motion.DefaultGate(),
		ReadBuffer:     256,
	}
}

// OptionsFrom derives options from the loaded configuration.
func OptionsFrom(cfg *config.Config) Options {
	t := cfg.Tracking
	return Options{
		FrameInterval:  t.FrameInterval(),
		PingInterval:   t.PingInterval(),
		PingByte:       t.PingByte[0],
		CameraDistance: t.CameraDistance,
		Gate:           motion.Gate{ThetaThreshold: t.ThetaThreshold, AxisThreshold: t.AxisThreshold},
		ReadBuffer:     cfg.Serial.ReadBuffer,
	}
}

// Observer is told about accepted orientations and tracking transitions.
// Calls come from the consumer goroutine, or from Close when the session
// never ran, and must not block.
type Observer interface {
	OrientationAccepted(s orientation.Sample)
	TrackingChanged(active bool)
}

// committed is the hand-off between the consumer and the frame timer. It is
// replaced whole, never mutated.
type committed struct {
	q      orientation.Quaternion
	sample orientation.Sample
}

// Session owns every piece of per-link state. Nothing here is global.
type Session struct {
	id   string
	opts Options
	log  *logrus.Entry

	src  io.ReadCloser
	sink camera.Sink

	// Consumer goroutine only.
	decoder *teapot.Decoder
	tracker *orientation.Tracker

	latch   motion.Latch
	rotator camera.Rotator
	latest  atomic.Pointer[committed]
	frame   ticker.Handle
	ping    ticker.Handle // nil when the source cannot be written to

	observers []Observer

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
	started   atomic.Bool
	readDone  chan struct{}
	done      chan struct{}

	pingFailures atomic.Int32
	pingLost     chan error

	statsMu      sync.Mutex
	decoderStats teapot.Stats

	duplicates  atomic.Uint64
	frames      atomic.Uint64
	sinkErrors  atomic.Uint64
	unavailable atomic.Uint64
}

// New builds a session reading from src and moving sink. If src also
// implements link.ByteSink it receives the keep-alive pings.
func New(src io.ReadCloser, sink camera.Sink, sched ticker.Scheduler, opts Options, log *logrus.Entry) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		opts:     opts,
		log:      log.WithFields(logrus.Fields{"component": "session", "session": id[:8]}),
		src:      src,
		sink:     sink,
		decoder:  teapot.NewDecoder(),
		tracker:  orientation.NewTracker(),
		rotator:  camera.Rotator{Distance: opts.CameraDistance},
		ctx:      ctx,
		cancel:   cancel,
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
		pingLost: make(chan error, 1),
	}

	s.frame = sched.Schedule(opts.FrameInterval, s.onFrame)
	if out, ok := src.(link.ByteSink); ok {
		pinger := link.NewPinger(out, opts.PingByte, s.log)
		s.ping = sched.Schedule(opts.PingInterval, func() { s.onPing(pinger) })
	}
	return s
}

// ID is a random identifier used in logs and client ids.
func (s *Session) ID() string { return s.id }

// Observe registers o. It must be called before Run.
func (s *Session) Observe(o Observer) {
	s.observers = append(s.observers, o)
}

// Run pumps the byte source until ctx is cancelled, Close is called or the
// source fails. The source is closed and all timers are stopped before Run
// returns. A read failure, or maxPingFailures keep-alive writes failing in a
// row, is reported as ErrLinkLost.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session: already running")
	}
	defer close(s.done)
	defer s.teardown()
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	chunks := make(chan []byte, 16)
	var readErr error
	go func() {
		defer close(s.readDone)
		readErr = s.read(chunks)
		close(chunks)
	}()

	if s.ping != nil {
		s.ping.Start()
	}
	s.log.Info("session: started")

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("session: stopping")
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if s.ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warnf("session: byte source failed: %v", readErr)
				return fmt.Errorf("%w: %v", ErrLinkLost, readErr)
			}
			s.Feed(chunk)
		case err := <-s.pingLost:
			s.log.Warnf("session: keep-alive failed %d times: %v", maxPingFailures, err)
			return fmt.Errorf("%w: %v", ErrLinkLost, err)
		}
	}
}

// read copies chunks off the source until it fails or the session ends.
func (s *Session) read(chunks chan<- []byte) error {
	buf := make([]byte, s.opts.ReadBuffer)
	for {
		n, err := s.src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunks <- chunk:
			case <-s.ctx.Done():
				return s.ctx.Err()
			}
		}
		if err != nil {
			return err
		}
	}
}

// Feed runs one chunk through decoder, tracker and gate. Every packet in the
// chunk is handled before Feed returns. Feed must only be called from one
// goroutine at a time; Run does so from its consumer loop.
func (s *Session) Feed(chunk []byte) {
	for _, pkt := range s.decoder.Write(chunk) {
		q, ok := s.tracker.Accept(pkt)
		if !ok {
			s.duplicates.Add(1)
			continue
		}

		c := &committed{q: q, sample: orientation.NewSample(q, pkt.Tag(), time.Now())}
		s.latest.Store(c)
		for _, o := range s.observers {
			o.OrientationAccepted(c.sample)
		}

		s.apply(s.opts.Gate.Evaluate(s.tracker.Previous(), s.tracker.Current()))
	}

	stats := s.decoder.Stats()
	s.statsMu.Lock()
	s.decoderStats = stats
	s.statsMu.Unlock()
}

func (s *Session) apply(sig motion.Signal) {
	switch s.latch.Apply(sig) {
	case motion.Start:
		s.frame.Start()
		s.log.Debug("session: tracking started")
	case motion.Stop:
		s.frame.Stop()
		s.log.Debug("session: tracking stopped")
	default:
		return
	}
	for _, o := range s.observers {
		o.TrackingChanged(s.latch.Active())
	}
}

func (s *Session) onPing(p *link.Pinger) {
	if err := p.Ping(); err != nil {
		if s.pingFailures.Add(1) == maxPingFailures {
			select {
			case s.pingLost <- err:
			default:
			}
		}
		return
	}
	s.pingFailures.Store(0)
}

func (s *Session) onFrame() {
	if err := s.Tick(s.ctx); err != nil {
		if errors.Is(err, camera.ErrUnavailable) {
			s.log.Debugf("session: %v", err)
			return
		}
		s.log.Warnf("session: camera update failed: %v", err)
	}
}

// Tick moves the camera to the latest committed orientation. A sink failure
// affects this tick only.
func (s *Session) Tick(ctx context.Context) error {
	c := s.latest.Load()
	if c == nil {
		return nil
	}
	s.frames.Add(1)

	pose := s.rotator.Rotate(c.q)
	if err := s.sink.Apply(ctx, pose); err != nil {
		if errors.Is(err, camera.ErrUnavailable) {
			s.unavailable.Add(1)
		} else {
			s.sinkErrors.Add(1)
		}
		return fmt.Errorf("apply camera pose: %w", err)
	}
	return nil
}

// Tracking reports whether the camera is following the device.
func (s *Session) Tracking() bool { return s.latch.Active() }

// Latest returns the last accepted orientation, if any.
func (s *Session) Latest() (orientation.Quaternion, bool) {
	c := s.latest.Load()
	if c == nil {
		return orientation.Quaternion{}, false
	}
	return c.q, true
}

// Close ends the session. If Run is active it returns once Run has torn
// everything down; otherwise it tears down directly. Teardown stops the frame
// and ping timers, reports a tracking stop to observers if tracking was
// active, and then closes the byte source. Close is idempotent and
// must not be called from a timer callback or an Observer.
func (s *Session) Close() error {
	s.cancel()
	if s.started.Load() {
		<-s.done
	} else {
		s.teardown()
	}
	return s.closeErr
}

func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.frame.Stop()
		if s.ping != nil {
			s.ping.Stop()
		}
		if s.latch.Apply(motion.Stop) == motion.Stop {
			for _, o := range s.observers {
				o.TrackingChanged(false)
			}
		}
		s.closeErr = s.src.Close()

		if s.started.Load() {
			select {
			case <-s.readDone:
			case <-time.After(readerExitTimeout):
				s.log.Warn("session: byte source did not unblock on close")
			}
		}
		s.log.Info("session: closed")
	})
}
