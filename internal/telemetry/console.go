// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/cube_tracker/internal/camera"
	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
)

const connectTimeout = 5 * time.Second

// Subscriber is the part of mqtt.Client the console uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Dial connects a fresh client and waits for the broker.
func Dial(cfg config.MQTTConfig, role string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(fmt.Sprintf("%s-%s-%s", cfg.ClientID, role, uuid.NewString()[:8]))

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return client, nil
}

// Console prints what a running tracker publishes, one line per message.
type Console struct {
	out io.Writer
	log *logrus.Entry
	mu  sync.Mutex
}

func NewConsole(out io.Writer, log *logrus.Entry) *Console {
	return &Console{out: out, log: log.WithField("component", "console")}
}

type subscription struct {
	topic   string
	handler mqtt.MessageHandler
}

// Subscribe registers the console on the orientation and tracking topics,
// and on the camera topic too when withCamera is set.
func (c *Console) Subscribe(client Subscriber, topics Topics, withCamera bool) error {
	subs := []subscription{
		{topics.Orientation, c.onOrientation},
		{topics.Tracking, c.onTracking},
	}
	if withCamera {
		subs = append(subs, subscription{topics.Camera, c.onCamera})
	}

	for _, s := range subs {
		token := client.Subscribe(s.topic, 0, s.handler)
		if !token.WaitTimeout(connectTimeout) {
			return fmt.Errorf("subscribe %s: timed out", s.topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.topic, err)
		}
		c.log.Infof("console: subscribed to %s", s.topic)
	}
	return nil
}

func (c *Console) onOrientation(_ mqtt.Client, msg mqtt.Message) {
	var s orientation.Sample
	if err := json.Unmarshal(msg.Payload(), &s); err != nil {
		c.log.Warnf("console: orientation unmarshal error: %v", err)
		return
	}
	c.printf("[ORIENT] tag=%3d  ANGLE=%7.2f  AXIS=(%+.3f %+.3f %+.3f)  Q=(%+.4f %+.4f %+.4f %+.4f)\n",
		s.Tag, s.Angle, s.Axis[0], s.Axis[1], s.Axis[2], s.W, s.X, s.Y, s.Z)
}

func (c *Console) onTracking(_ mqtt.Client, msg mqtt.Message) {
	var st TrackingState
	if err := json.Unmarshal(msg.Payload(), &st); err != nil {
		c.log.Warnf("console: tracking unmarshal error: %v", err)
		return
	}
	state := "stopped"
	if st.Active {
		state = "started"
	}
	c.printf("[TRACK]  %s\n", state)
}

func (c *Console) onCamera(_ mqtt.Client, msg mqtt.Message) {
	var p camera.Pose
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		c.log.Warnf("console: camera unmarshal error: %v", err)
		return
	}
	c.printf("[CAMERA] eye=(%+6.2f %+6.2f %+6.2f)  up=(%+.3f %+.3f %+.3f)\n",
		p.Eye.X, p.Eye.Y, p.Eye.Z, p.Up.X, p.Up.Y, p.Up.Z)
}

// printf serialises output; paho may call handlers concurrently.
func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
