// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry publishes camera poses, orientations and tracking state
// to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/cube_tracker/internal/camera"
	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
)

// publishTimeout bounds how long a frame tick waits for the client to accept
// a pose.
const publishTimeout = 50 * time.Millisecond

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Topics names where each message kind goes.
type Topics struct {
	Camera      string
	Orientation string
	Tracking    string
}

func TopicsFrom(cfg config.MQTTConfig) Topics {
	return Topics{
		Camera:      cfg.TopicCamera,
		Orientation: cfg.TopicOrientation,
		Tracking:    cfg.TopicTracking,
	}
}

// TrackingState is the payload on the tracking topic.
type TrackingState struct {
	Active bool      `json:"active"`
	Time   time.Time `json:"time"`
}

// Publisher is both a camera.Sink and a session observer.
type Publisher struct {
	client Client
	topics Topics
	log    *logrus.Entry
}

func NewPublisher(client Client, topics Topics, log *logrus.Entry) *Publisher {
	return &Publisher{client: client, topics: topics, log: log.WithField("component", "telemetry")}
}

// Connect builds a paho client from cfg and starts connecting in the
// background. Until the broker is reachable Apply reports
// camera.ErrUnavailable.
func Connect(cfg config.MQTTConfig, log *logrus.Entry) *Publisher {
	log = log.WithField("component", "telemetry")
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8])

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Infof("telemetry: connected to MQTT broker at %s", cfg.Broker)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("telemetry: MQTT connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	client.Connect()

	return NewPublisher(client, TopicsFrom(cfg), log)
}

// Apply publishes pose on the camera topic.
func (p *Publisher) Apply(ctx context.Context, pose camera.Pose) error {
	if !p.client.IsConnectionOpen() {
		return camera.ErrUnavailable
	}
	payload, err := json.Marshal(pose)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topics.Camera, 0, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", p.topics.Camera, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: timed out", p.topics.Camera)
	}
}

func (p *Publisher) OrientationAccepted(s orientation.Sample) {
	p.publish(p.topics.Orientation, true, s)
}

func (p *Publisher) TrackingChanged(active bool) {
	p.publish(p.topics.Tracking, true, TrackingState{Active: active, Time: time.Now()})
}

// publish does not wait for the broker. A failed publish is logged from the
// token's own goroutine.
func (p *Publisher) publish(topic string, retained bool, v any) {
	if !p.client.IsConnectionOpen() {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Warnf("telemetry: encode %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, 0, retained, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			p.log.Warnf("telemetry: MQTT publish error (%s): %v", topic, err)
		}
	}()
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
