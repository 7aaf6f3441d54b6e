// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPingInterval matches the firmware's watchdog.
	DefaultPingInterval = 2000 * time.Millisecond
	// DefaultPingByte is what the firmware expects as a keep-alive.
	DefaultPingByte byte = 'r'
)

// Pinger writes a single keep-alive byte so that a dead link shows up as a
// write error.
type Pinger struct {
	sink ByteSink
	b    byte
	log  *logrus.Entry
}

func NewPinger(sink ByteSink, b byte, log *logrus.Entry) *Pinger {
	return &Pinger{sink: sink, b: b, log: log}
}

// Ping sends the byte if the sink is open and does nothing otherwise.
func (p *Pinger) Ping() error {
	if !p.sink.IsOpen() {
		return nil
	}
	if err := p.sink.WriteByte(p.b); err != nil {
		p.log.Warnf("link: ping failed: %v", err)
		return err
	}
	return nil
}
