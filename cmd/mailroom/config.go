// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Port is the TCP port the mail protocol listens on.
	Port int

	// Hostname is the name shown to clients in the greeting.
	Hostname string

	// Location to store the per-user mailbox documents.
	MaildropPath string

	// IdleTimeoutSeconds closes sessions that send nothing for this long.
	// Zero disables the timeout.
	IdleTimeoutSeconds int

	// FlushIntervalSeconds periodically saves every mailbox. Zero disables
	// periodic saves; mailboxes are still saved when sessions end.
	FlushIntervalSeconds int

	// ShutdownTimeoutSeconds is how long to wait for sessions to close.
	ShutdownTimeoutSeconds int

	// MetricsAddr, if set, serves Prometheus metrics at /metrics.
	MetricsAddr string

	LogLevel string
}

func DefaultConfig() Config {
	return Config{
		Port:                   5000,
		Hostname:               "localhost",
		IdleTimeoutSeconds:     300,
		ShutdownTimeoutSeconds: 10,
		LogLevel:               "info",
	}
}

// LoadConfig decodes a JSON config over the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	config := DefaultConfig()
	if err := json.NewDecoder(r).Decode(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.MaildropPath == "" {
		return fmt.Errorf("Missing MaildropPath")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("Invalid Port: %d", c.Port)
	}
	if c.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("Invalid IdleTimeoutSeconds: %d", c.IdleTimeoutSeconds)
	}
	if c.FlushIntervalSeconds < 0 {
		return fmt.Errorf("Invalid FlushIntervalSeconds: %d", c.FlushIntervalSeconds)
	}
	if c.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("Invalid ShutdownTimeoutSeconds: %d", c.ShutdownTimeoutSeconds)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("Invalid LogLevel: %w", err)
	}
	return nil
}

func (c Config) Addr() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

func (c Config) Level() (zapcore.Level, error) {
	var level zapcore.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
