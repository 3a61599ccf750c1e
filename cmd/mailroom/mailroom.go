// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"src.bluestatic.org/mailroom/pkg/mailstore"
	"src.bluestatic.org/mailroom/pkg/persist"
	"src.bluestatic.org/mailroom/pkg/version"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s config.json\n", os.Args[0])
		os.Exit(1)
	}

	if os.Args[1] == "version" {
		fmt.Print(version.VersionString)
		os.Exit(0)
	}

	configFile, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config file: %s\n", err)
		os.Exit(2)
	}

	config, err := LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config file: %s\n", err)
		os.Exit(3)
	}
	configFile.Close()

	level, err := config.Level()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config file: LogLevel: %s\n", err)
		os.Exit(3)
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Development = false
	logConfig.DisableStacktrace = true
	logConfig.Level.SetLevel(level)
	log, err := logConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(4)
	}
	defer log.Sync()

	log.Info("Starting mailroom", zap.String("version", version.VersionString))

	if err := config.Validate(); err != nil {
		log.Fatal("Invalid config", zap.Error(err))
	}

	store := openStore(config.MaildropPath, log)

	var ls listeners
	ls.mail, err = net.Listen("tcp", config.Addr())
	if err != nil {
		log.Fatal("Failed to listen", zap.String("address", config.Addr()), zap.Error(err))
	}
	if config.MetricsAddr != "" {
		ls.metrics, err = net.Listen("tcp", config.MetricsAddr)
		if err != nil {
			log.Fatal("Failed to listen for metrics", zap.String("address", config.MetricsAddr), zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runServer(ctx, config, ls, store, log); err != nil {
		log.Error("Server failed", zap.Error(err))
		log.Sync()
		os.Exit(5)
	}

	log.Info("Shutdown complete")
}

// openStore creates the Store over the maildrop and loads every stored
// mailbox. Persistence failures are logged; the server still runs, and
// mailboxes that could not be loaded start empty.
func openStore(maildrop string, log *zap.Logger) *mailstore.Store {
	if err := os.MkdirAll(maildrop, 0700); err != nil {
		log.Error("Failed to create maildrop", zap.String("path", maildrop), zap.Error(err))
	}

	store := mailstore.New(persist.Dir{Path: maildrop}, log)
	n, err := store.Preload()
	if err != nil {
		log.Warn("Failed to load stored mailboxes, starting empty", zap.String("path", maildrop), zap.Error(err))
		return store
	}
	log.Info("Loaded mailboxes", zap.Int("count", n), zap.String("path", maildrop))
	return store
}
