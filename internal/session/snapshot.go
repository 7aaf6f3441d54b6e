// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/teapot"
)

// Snapshot is a point-in-time view of a session for status pages.
type Snapshot struct {
	ID              string             `json:"id"`
	Source          string             `json:"source,omitempty"`
	Tracking        bool               `json:"tracking"`
	HaveOrientation bool               `json:"have_orientation"`
	Orientation     orientation.Sample `json:"orientation"`
	Decoder         teapot.Stats       `json:"decoder"`
	Duplicates      uint64             `json:"duplicates"`
	Frames          uint64             `json:"frames"`
	SinkErrors      uint64             `json:"sink_errors"`
	Unavailable     uint64             `json:"sink_unavailable"`
}

type named interface {
	Name() string
}

// Snapshot is safe to call from any goroutine.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:          s.id,
		Tracking:    s.latch.Active(),
		Duplicates:  s.duplicates.Load(),
		Frames:      s.frames.Load(),
		SinkErrors:  s.sinkErrors.Load(),
		Unavailable: s.unavailable.Load(),
	}
	if n, ok := s.src.(named); ok {
		snap.Source = n.Name()
	}
	if c := s.latest.Load(); c != nil {
		snap.HaveOrientation = true
		snap.Orientation = c.sample
	}

	s.statsMu.Lock()
	snap.Decoder = s.decoderStats
	s.statsMu.Unlock()
	return snap
}
