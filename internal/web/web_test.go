// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/cube_tracker/internal/camera"
	"github.com/relabs-tech/cube_tracker/internal/logging"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/session"
)

func newTestServer(t *testing.T, status StatusFunc, ports PortsFunc) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(logging.Discard())
	if status == nil {
		status = func() (session.Snapshot, bool) { return session.Snapshot{}, false }
	}
	if ports == nil {
		ports = func() ([]string, error) { return nil, nil }
	}
	ts := httptest.NewServer(NewServer(hub, status, ports, logging.Discard()).Handler())
	t.Cleanup(ts.Close)
	return hub, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHubWithoutViewersIsUnavailable(t *testing.T) {
	hub := NewHub(logging.Discard())
	err := hub.Apply(context.Background(), camera.Pose{})
	assert.ErrorIs(t, err, camera.ErrUnavailable)
}

func TestHubStreamsPoses(t *testing.T) {
	hub, ts := newTestServer(t, nil, nil)
	conn := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, time.Second, time.Millisecond)

	pose := camera.Rotator{Distance: camera.DefaultDistance}.Rotate(orientation.FromAxisAngle(r3.Vec{Y: 1}, 90))
	require.NoError(t, hub.Apply(context.Background(), pose))

	m := readMessage(t, conn)
	assert.Equal(t, "pose", m.Type)
	require.NotNil(t, m.Pose)
	assert.InDelta(t, pose.Eye.X, m.Pose.Eye.X, 1e-9)
	assert.InDelta(t, pose.Up.Y, m.Pose.Up.Y, 1e-9)

	hub.TrackingChanged(true)
	m = readMessage(t, conn)
	assert.Equal(t, "tracking", m.Type)
	require.NotNil(t, m.Tracking)
	assert.True(t, *m.Tracking)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Viewers() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, hub.Apply(context.Background(), pose), camera.ErrUnavailable)
}

func TestNewViewerGetsLastPose(t *testing.T) {
	hub, ts := newTestServer(t, nil, nil)
	pose := camera.Pose{Eye: r3.Vec{Z: -10}, Up: r3.Vec{Y: -1}}
	assert.ErrorIs(t, hub.Apply(context.Background(), pose), camera.ErrUnavailable)

	conn := dial(t, ts)
	m := readMessage(t, conn)
	require.Equal(t, "pose", m.Type)
	assert.Equal(t, pose, *m.Pose)
}

func TestSlowViewerDoesNotBlockApply(t *testing.T) {
	hub, ts := newTestServer(t, nil, nil)
	dial(t, ts) // never reads
	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10*viewerBuffer; i++ {
			_ = hub.Apply(context.Background(), camera.Pose{Eye: r3.Vec{X: float64(i)}})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Apply blocked on a slow viewer")
	}
}

func TestAPIOrientation(t *testing.T) {
	var live atomic.Pointer[session.Snapshot]
	_, ts := newTestServer(t, func() (session.Snapshot, bool) {
		if s := live.Load(); s != nil {
			return *s, true
		}
		return session.Snapshot{}, false
	}, nil)

	resp, err := http.Get(ts.URL + "/api/orientation")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	live.Store(&session.Snapshot{ID: "abc", Tracking: true, Duplicates: 4})
	resp, err = http.Get(ts.URL + "/api/orientation")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got session.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "abc", got.ID)
	assert.True(t, got.Tracking)
	assert.Equal(t, uint64(4), got.Duplicates)

	resp, err = http.Post(ts.URL+"/api/orientation", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPIPorts(t *testing.T) {
	t.Run("lists ports", func(t *testing.T) {
		_, ts := newTestServer(t, nil, func() ([]string, error) {
			return []string{"/dev/ttyUSB0", "/dev/ttyACM0"}, nil
		})
		resp, err := http.Get(ts.URL + "/api/ports")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body struct {
			Ports []string `json:"ports"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyACM0"}, body.Ports)
	})

	t.Run("no ports is an empty list", func(t *testing.T) {
		_, ts := newTestServer(t, nil, nil)
		resp, err := http.Get(ts.URL + "/api/ports")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string][]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.NotNil(t, body["ports"])
		assert.Empty(t, body["ports"])
	})

	t.Run("enumeration failure", func(t *testing.T) {
		_, ts := newTestServer(t, nil, func() ([]string, error) { return nil, errors.New("no sysfs") })
		resp, err := http.Get(ts.URL + "/api/ports")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestRootPage(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestServeStopsOnCancel(t *testing.T) {
	s := NewServer(NewHub(logging.Discard()),
		func() (session.Snapshot, bool) { return session.Snapshot{}, false },
		func() ([]string, error) { return nil, nil },
		logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
