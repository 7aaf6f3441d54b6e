// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Tracking TrackingConfig `yaml:"tracking"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Web      WebConfig      `yaml:"web"`
	Display  DisplayConfig  `yaml:"display"`
	Log      LogConfig      `yaml:"log"`
}

type SerialConfig struct {
	Port       string `yaml:"port"`
	BaudRate   int    `yaml:"baud_rate"`
	Driver     string `yaml:"driver"` // "bugst" or "jacobsa"
	DTR        bool   `yaml:"dtr"`
	ReadBuffer int    `yaml:"read_buffer"`
}

type TrackingConfig struct {
	FrameRate        int     `yaml:"frame_rate"` // camera updates per second while tracking
	CameraDistance   float64 `yaml:"camera_distance"`
	ThetaThreshold   float64 `yaml:"theta_threshold"` // degrees
	AxisThreshold    float64 `yaml:"axis_threshold"`
	PingIntervalMS   int     `yaml:"ping_interval_ms"`
	PingByte         string  `yaml:"ping_byte"`
	ReconnectDelayMS int     `yaml:"reconnect_delay_ms"`
}

type MQTTConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Broker           string `yaml:"broker"`
	ClientID         string `yaml:"client_id"`
	TopicCamera      string `yaml:"topic_camera"`
	TopicOrientation string `yaml:"topic_orientation"`
	TopicTracking    string `yaml:"topic_tracking"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type DisplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	I2CBus  string `yaml:"i2c_bus"` // "" picks the first bus
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:   38400,
			Driver:     "bugst",
			DTR:        true,
			ReadBuffer: 256,
		},
		Tracking: TrackingConfig{
			FrameRate:        100,
			CameraDistance:   10,
			ThetaThreshold:   0.05,
			AxisThreshold:    0.0005,
			PingIntervalMS:   2000,
			PingByte:         "r",
			ReconnectDelayMS: 2000,
		},
		MQTT: MQTTConfig{
			Broker:           "tcp://localhost:1883",
			ClientID:         "cube-tracker",
			TopicCamera:      "cube/camera",
			TopicOrientation: "cube/orientation",
			TopicTracking:    "cube/tracking",
		},
		Web: WebConfig{
			Enabled: true,
			Listen:  ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path on top of Default and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and required fields. The serial port may be empty
// here; it is required only when the tracker runs against real hardware.
func (c *Config) Validate() error {
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be > 0, got %d", c.Serial.BaudRate)
	}
	switch c.Serial.Driver {
	case "bugst", "jacobsa":
	default:
		return fmt.Errorf("serial.driver must be bugst or jacobsa, got %q", c.Serial.Driver)
	}
	if c.Serial.ReadBuffer <= 0 {
		return fmt.Errorf("serial.read_buffer must be > 0, got %d", c.Serial.ReadBuffer)
	}

	t := c.Tracking
	if t.FrameRate <= 0 || t.FrameRate > 1000 {
		return fmt.Errorf("tracking.frame_rate must be 1-1000, got %d", t.FrameRate)
	}
	if t.CameraDistance <= 0 {
		return fmt.Errorf("tracking.camera_distance must be > 0, got %v", t.CameraDistance)
	}
	if t.ThetaThreshold < 0 || t.AxisThreshold < 0 {
		return fmt.Errorf("tracking thresholds must not be negative")
	}
	if t.PingIntervalMS <= 0 {
		return fmt.Errorf("tracking.ping_interval_ms must be > 0, got %d", t.PingIntervalMS)
	}
	if len(t.PingByte) != 1 {
		return fmt.Errorf("tracking.ping_byte must be exactly one byte, got %q", t.PingByte)
	}
	if t.ReconnectDelayMS < 0 {
		return fmt.Errorf("tracking.reconnect_delay_ms must not be negative, got %d", t.ReconnectDelayMS)
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enabled is true")
		}
		if c.MQTT.TopicCamera == "" || c.MQTT.TopicOrientation == "" || c.MQTT.TopicTracking == "" {
			return fmt.Errorf("mqtt topics must not be empty")
		}
	}
	if c.Web.Enabled && c.Web.Listen == "" {
		return fmt.Errorf("web.listen is required when web.enabled is true")
	}
	return nil
}

// FrameInterval is the camera update period.
func (t TrackingConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(t.FrameRate)
}

func (t TrackingConfig) PingInterval() time.Duration {
	return time.Duration(t.PingIntervalMS) * time.Millisecond
}

func (t TrackingConfig) ReconnectDelay() time.Duration {
	return time.Duration(t.ReconnectDelayMS) * time.Millisecond
}
