// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package metrics holds the Prometheus collectors shared by the server
// components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailroom"

// Connection metrics
var (
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of connections accepted",
		},
	)

	ConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_current",
			Help:      "Current number of open sessions",
		},
	)

	AcceptErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Total number of failed accepts on the listener",
		},
	)

	IdleTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_timeouts_total",
			Help:      "Total number of sessions closed for inactivity",
		},
	)
)

// Protocol metrics
var (
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of LOGIN attempts",
		},
		[]string{"result"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of commands processed",
		},
		[]string{"command"},
	)

	EmailsComposed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_composed_total",
			Help:      "Total number of emails composed",
		},
	)
)

// Storage metrics
var (
	MailboxesCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mailboxes_current",
			Help:      "Number of mailboxes held in memory",
		},
	)

	PersistenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Total number of failed mailbox persistence operations",
		},
		[]string{"op"},
	)

	PersistenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persistence_duration_seconds",
			Help:      "Duration of mailbox loads and saves",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"op"},
	)
)

// KnownCommands bounds the label values of CommandsTotal; anything else is
// counted as "unknown".
var KnownCommands = map[string]bool{
	"LOGIN":    true,
	"INBOX":    true,
	"VIEW":     true,
	"COMPOSE":  true,
	"DELETE":   true,
	"SORT":     true,
	"FOLDERS":  true,
	"MKFOLDER": true,
	"RMFOLDER": true,
	"NOOP":     true,
	"QUIT":     true,
}

// CommandLabel maps a command verb to its CommandsTotal label.
func CommandLabel(verb string) string {
	if KnownCommands[verb] {
		return verb
	}
	return "unknown"
}
