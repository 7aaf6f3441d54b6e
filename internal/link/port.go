// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package link owns the serial connection to the IMU: opening the port,
// keeping it alive and listing candidates.
package link

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	jserial "github.com/jacobsa/go-serial/serial"
	"go.bug.st/serial"

	"github.com/relabs-tech/cube_tracker/internal/config"
)

// ByteSink is the outbound side of the link.
type ByteSink interface {
	WriteByte(b byte) error
	IsOpen() bool
}

// Port wraps an open stream and tracks whether it is still usable.
type Port struct {
	name string
	rwc  io.ReadWriteCloser

	open atomic.Bool
	wmu  sync.Mutex
	once sync.Once
	err  error
}

// NewPort wraps rwc, which must already be open.
func NewPort(name string, rwc io.ReadWriteCloser) *Port {
	p := &Port{name: name, rwc: rwc}
	p.open.Store(true)
	return p
}

func (p *Port) Name() string { return p.name }

func (p *Port) IsOpen() bool { return p.open.Load() }

// Read returns os.ErrClosed once the port has been closed locally, whatever
// the driver reports.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.rwc.Read(b)
	if err != nil && !p.IsOpen() {
		return n, os.ErrClosed
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) {
	if !p.IsOpen() {
		return 0, os.ErrClosed
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.rwc.Write(b)
}

func (p *Port) WriteByte(b byte) error {
	_, err := p.Write([]byte{b})
	return err
}

// Close is idempotent.
func (p *Port) Close() error {
	p.once.Do(func() {
		p.open.Store(false)
		p.err = p.rwc.Close()
	})
	return p.err
}

// Open opens the configured serial port with the configured driver.
func Open(cfg config.SerialConfig) (*Port, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port not configured")
	}

	switch cfg.Driver {
	case "jacobsa":
		// jacobsa/go-serial cannot drive DTR; boards that reset on DTR need bugst.
		rwc, err := jserial.Open(jserial.OpenOptions{
			PortName:              cfg.Port,
			BaudRate:              uint(cfg.BaudRate),
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            jserial.PARITY_NONE,
			InterCharacterTimeout: 0,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
		}
		return NewPort(cfg.Port, rwc), nil

	default:
		sp, err := serial.Open(cfg.Port, &serial.Mode{
			BaudRate: cfg.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
		}
		if err := sp.SetDTR(cfg.DTR); err != nil {
			sp.Close()
			return nil, fmt.Errorf("set DTR on %s: %w", cfg.Port, err)
		}
		return NewPort(cfg.Port, sp), nil
	}
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return ports, nil
}
