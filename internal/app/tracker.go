// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/cube_tracker/internal/camera"
	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/display"
	"github.com/relabs-tech/cube_tracker/internal/link"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/session"
	"github.com/relabs-tech/cube_tracker/internal/telemetry"
	"github.com/relabs-tech/cube_tracker/internal/ticker"
	"github.com/relabs-tech/cube_tracker/internal/web"
)

// simulatorInterval is the packet rate of --simulate, close to what the
// firmware sends.
const simulatorInterval = 20 * time.Millisecond

// ErrNoPort is returned when neither a serial port nor simulation is set.
var ErrNoPort = errors.New("no serial port configured (set serial.port, --port or --simulate)")

// Tracker owns the supervisor and every enabled output.
type Tracker struct {
	cfg      *config.Config
	simulate bool
	log      *logrus.Entry

	sinks     camera.MultiSink
	observers []session.Observer
	sup       *session.Supervisor

	hub       *web.Hub
	publisher *telemetry.Publisher
	display   *display.Display
}

// NewTracker builds the outputs enabled in cfg. The OLED is optional
// hardware: if it cannot be opened the tracker runs without it.
func NewTracker(cfg *config.Config, simulate bool, log *logrus.Entry) (*Tracker, error) {
	if cfg.Serial.Port == "" && !simulate {
		return nil, ErrNoPort
	}
	t := &Tracker{cfg: cfg, simulate: simulate, log: log}

	if cfg.Web.Enabled {
		t.hub = web.NewHub(log)
		t.addOutput(t.hub, t.hub)
	}
	if cfg.MQTT.Enabled {
		t.publisher = telemetry.Connect(cfg.MQTT, log)
		t.addOutput(t.publisher, t.publisher)
	}
	if cfg.Display.Enabled {
		d, err := display.Open(cfg.Display.I2CBus, log)
		if err != nil {
			log.Warnf("display: disabled: %v", err)
		} else {
			t.display = d
			t.addOutput(d, d)
		}
	}

	t.sup = &session.Supervisor{
		Open:  t.openSource,
		Build: t.buildSession,
		Delay: cfg.Tracking.ReconnectDelay(),
		Log:   log,
	}
	return t, nil
}

func (t *Tracker) addOutput(s camera.Sink, o session.Observer) {
	t.sinks = append(t.sinks, s)
	t.observers = append(t.observers, o)
}

// Observe adds an observer to every session built from now on.
func (t *Tracker) Observe(o session.Observer) {
	t.observers = append(t.observers, o)
}

func (t *Tracker) openSource(context.Context) (io.ReadCloser, error) {
	if t.simulate {
		t.log.Info("tracker: using simulated device")
		return orientation.NewSimulator(simulatorInterval), nil
	}
	p, err := link.Open(t.cfg.Serial)
	if err != nil {
		return nil, err
	}
	t.log.Infof("tracker: opened %s at %d baud", p.Name(), t.cfg.Serial.BaudRate)
	return p, nil
}

func (t *Tracker) buildSession(src io.ReadCloser) *session.Session {
	s := session.New(src, t.sinks, ticker.Real{}, session.OptionsFrom(t.cfg), t.log)
	for _, o := range t.observers {
		s.Observe(o)
	}
	return s
}

// Status returns the live session snapshot.
func (t *Tracker) Status() (session.Snapshot, bool) {
	s := t.sup.Current()
	if s == nil {
		return session.Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Run blocks until ctx ends or a component fails, then releases the
// outputs.
func (t *Tracker) Run(ctx context.Context) error {
	defer t.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.sup.Run(gctx) })
	if t.hub != nil {
		srv := web.NewServer(t.hub, t.Status, link.ListPorts, t.log)
		g.Go(func() error { return srv.Serve(gctx, t.cfg.Web.Listen) })
	}
	if t.display != nil {
		g.Go(func() error { return t.display.Run(gctx) })
	}
	return g.Wait()
}

func (t *Tracker) close() {
	if t.publisher != nil {
		t.publisher.Close()
	}
	if t.display != nil {
		if err := t.display.Close(); err != nil {
			t.log.Warnf("display: close: %v", err)
		}
	}
}
