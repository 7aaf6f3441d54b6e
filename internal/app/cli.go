// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app holds the cube_tracker command line.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/link"
	"github.com/relabs-tech/cube_tracker/internal/logging"
	"github.com/relabs-tech/cube_tracker/internal/telemetry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string

	// ListPorts enumerates serial ports. Tests replace it.
	ListPorts func() ([]string, error)
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Port     string
	Simulate bool
}

// NewRootCommand creates the cube_tracker root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{ListPorts: link.ListPorts}

	cmd := &cobra.Command{
		Use:   "cube_tracker",
		Short: "Drive a 3D viewport camera from a serial IMU",
		Long: `cube_tracker reads orientation packets from an IMU cube over a serial
link and keeps a viewport camera pointed at it while the cube moves.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file (defaults apply when empty)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPortsCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	return cmd
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Track the device until interrupted",
		Long: `Open the serial port, decode orientation packets and move the camera
outputs (web viewport, MQTT, OLED) while the device is in motion. A lost
link is reopened after tracking.reconnect_delay_ms.

Example:
  cube_tracker run --port /dev/ttyUSB0
  cube_tracker run --config tracker.yaml
  cube_tracker run --simulate`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTracker(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Port, "port", "p", "", "serial port, overrides serial.port")
	cmd.Flags().BoolVar(&opts.Simulate, "simulate", false, "use a simulated device instead of the serial port")
	return cmd
}

// NewPortsCommand creates the ports command.
func NewPortsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := rootOpts.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Broker string
	Camera bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print what a running tracker publishes over MQTT",
		Long: `Subscribe to the orientation and tracking topics of a running tracker
and print one line per message until interrupted.

Example:
  cube_tracker watch --broker tcp://pi.local:1883 --camera`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Broker, "broker", "", "MQTT broker URL, overrides mqtt.broker")
	cmd.Flags().BoolVar(&opts.Camera, "camera", false, "also print every camera pose")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Broker != "" {
		cfg.MQTT.Broker = opts.Broker
	}
	logger, logCloser, err := logging.New(cfg.Log.Level, cfg.Log.Dir)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	log := logrus.NewEntry(logger)

	client, err := telemetry.Dial(cfg.MQTT, "watch")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Infof("watch: connected to MQTT broker at %s", cfg.MQTT.Broker)

	console := telemetry.NewConsole(cmd.OutOrStdout(), log)
	if err := console.Subscribe(client, telemetry.TopicsFrom(cfg.MQTT), opts.Camera); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("watch: shutting down")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runTracker(parent context.Context, opts *RunOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Port != "" {
		cfg.Serial.Port = opts.Port
	}

	logger, logCloser, err := logging.New(cfg.Log.Level, cfg.Log.Dir)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	log := logrus.NewEntry(logger)

	tr, err := NewTracker(cfg, opts.Simulate, log)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("cube_tracker: starting")
	err = tr.Run(ctx)
	log.Info("cube_tracker: stopped")
	return err
}
