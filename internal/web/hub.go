// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/cube_tracker/internal/camera"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
)

const (
	viewerBuffer = 4
	writeWait    = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers are served from the same box
	},
}

// Message is one websocket frame sent to viewers.
type Message struct {
	Type     string              `json:"type"` // pose, orientation, tracking
	Pose     *camera.Pose        `json:"pose,omitempty"`
	Sample   *orientation.Sample `json:"orientation,omitempty"`
	Tracking *bool               `json:"tracking,omitempty"`
}

// Hub fans camera poses out to browser viewers. It is a camera.Sink and a
// session observer. A viewer that cannot keep up loses frames, never blocks
// the frame timer.
type Hub struct {
	log *logrus.Entry

	mu       sync.Mutex
	viewers  map[int]chan []byte
	nextID   int
	lastPose []byte
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		log:     log.WithField("component", "web"),
		viewers: make(map[int]chan []byte),
	}
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Apply sends pose to every viewer. With nobody watching it reports
// camera.ErrUnavailable.
func (h *Hub) Apply(_ context.Context, pose camera.Pose) error {
	b, err := json.Marshal(Message{Type: "pose", Pose: &pose})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPose = b
	if len(h.viewers) == 0 {
		return camera.ErrUnavailable
	}
	h.broadcastLocked(b)
	return nil
}

func (h *Hub) OrientationAccepted(s orientation.Sample) {
	h.publish(Message{Type: "orientation", Sample: &s})
}

func (h *Hub) TrackingChanged(active bool) {
	h.publish(Message{Type: "tracking", Tracking: &active})
}

func (h *Hub) publish(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		h.log.Warnf("web: encode %s message: %v", m.Type, err)
		return
	}
	h.mu.Lock()
	h.broadcastLocked(b)
	h.mu.Unlock()
}

func (h *Hub) broadcastLocked(b []byte) {
	for _, ch := range h.viewers {
		select {
		case ch <- b:
		default:
		}
	}
}

func (h *Hub) subscribe() (int, <-chan []byte) {
	ch := make(chan []byte, viewerBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.viewers[id] = ch
	if h.lastPose != nil {
		ch <- h.lastPose
	}
	return id, ch
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.viewers[id]; ok {
		delete(h.viewers, id)
		close(ch)
	}
}

// ServeWS upgrades the request and streams messages until the viewer goes
// away. Anything the viewer sends is ignored.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, ch := h.subscribe()
	h.log.Infof("web: viewer %d connected from %s", id, r.RemoteAddr)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debugf("web: viewer %d: %v", id, err)
				}
				return
			}
		}
	}()

	defer func() {
		h.unsubscribe(id)
		h.log.Infof("web: viewer %d disconnected", id)
	}()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case b, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.log.Debugf("web: viewer %d write: %v", id, err)
				return
			}
		}
	}
}
