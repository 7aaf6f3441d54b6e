// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display shows tracking status on a 128x64 SSD1306 OLED.
package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/cube_tracker/internal/camera"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
)

// UpdateInterval is how often a changed status is pushed to the panel.
const UpdateInterval = 200 * time.Millisecond

// Width and Height are the panel size in pixels.
const (
	Width  = 128
	Height = 64
)

// Panel is the drawing surface; *ssd1306.Dev implements it.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// Status is what gets drawn.
type Status struct {
	Tracking        bool
	HaveOrientation bool
	Angle           float64
	Axis            [3]float64
	Tag             byte
	HavePose        bool
	Eye             [3]float64
}

// Display keeps the latest status and redraws it from Run. Apply and the
// observer callbacks only record state, so they never wait on the I2C bus.
type Display struct {
	panel Panel
	bus   io.Closer
	log   *logrus.Entry

	mu     sync.Mutex
	status Status
	dirty  bool
	closed bool
}

func New(panel Panel, log *logrus.Entry) *Display {
	return &Display{panel: panel, log: log.WithField("component", "display"), dirty: true}
}

// Open initialises periph, opens the I2C bus (empty name picks the first
// one) and the SSD1306 at its default address.
func Open(busName string, log *logrus.Entry) (*Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	d := New(dev, log)
	d.bus = bus
	d.log.Infof("display: initialized on I2C bus %q", bus.String())
	return d, nil
}

// Apply records the camera eye. It reports camera.ErrUnavailable once the
// display is closed.
func (d *Display) Apply(_ context.Context, pose camera.Pose) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return camera.ErrUnavailable
	}
	d.status.HavePose = true
	d.status.Eye = [3]float64{pose.Eye.X, pose.Eye.Y, pose.Eye.Z}
	d.dirty = true
	return nil
}

func (d *Display) OrientationAccepted(s orientation.Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.HaveOrientation = true
	d.status.Angle = s.Angle
	d.status.Axis = s.Axis
	d.status.Tag = s.Tag
	d.dirty = true
}

func (d *Display) TrackingChanged(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.Tracking = active
	d.dirty = true
}

// Status returns a copy of the current status.
func (d *Display) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Run redraws on every UpdateInterval tick while something changed, until
// ctx ends.
func (d *Display) Run(ctx context.Context) error {
	t := time.NewTicker(UpdateInterval)
	defer t.Stop()

	d.log.Info("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := d.Refresh(); err != nil {
				d.log.Warnf("display: error updating display: %v", err)
			}
		}
	}
}

// Refresh draws the status if it changed since the last successful draw.
func (d *Display) Refresh() error {
	d.mu.Lock()
	if !d.dirty || d.closed {
		d.mu.Unlock()
		return nil
	}
	s := d.status
	d.dirty = false
	d.mu.Unlock()

	img := Render(s)
	if err := d.panel.Draw(d.panel.Bounds(), img, image.Point{}); err != nil {
		d.mu.Lock()
		d.dirty = true
		d.mu.Unlock()
		return err
	}
	return nil
}

// Close blanks the panel and releases the bus.
func (d *Display) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	err := d.panel.Halt()
	if d.bus != nil {
		err = errors.Join(err, d.bus.Close())
	}
	return err
}

// Render lays the status out as four 13 px text lines.
func Render(s Status) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	line := func(n int, text string) {
		drawer.Dot = fixed.P(0, 13*n)
		drawer.DrawString(text)
	}

	state := "IDLE"
	if s.Tracking {
		state = "TRACKING"
	}
	if !s.HaveOrientation {
		line(1, "Cube tracker")
		line(2, state)
		line(3, "Waiting...")
		return img
	}

	line(1, fmt.Sprintf("%-9s #%3d", state, s.Tag))
	line(2, fmt.Sprintf("ang %6.1f", s.Angle))
	line(3, fmt.Sprintf("ax%+5.2f%+5.2f%+5.2f", s.Axis[0], s.Axis[1], s.Axis[2]))
	if s.HavePose {
		line(4, fmt.Sprintf("ey%+5.1f%+5.1f%+5.1f", s.Eye[0], s.Eye[1], s.Eye[2]))
	}
	return img
}
