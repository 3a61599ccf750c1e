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
	"time"

	"go.uber.org/zap"

	"src.bluestatic.org/mailroom/pkg/mailproto"
	"src.bluestatic.org/mailroom/pkg/version"
)

const defaultAddr = "localhost:5000"

func main() {
	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [host:port]\n", os.Args[0])
		os.Exit(1)
	}

	addr := defaultAddr
	if len(os.Args) == 2 {
		if os.Args[1] == "version" {
			fmt.Print(version.VersionString)
			os.Exit(0)
		}
		addr = os.Args[1]
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Development = false
	logConfig.DisableStacktrace = true
	logConfig.Level.SetLevel(zap.WarnLevel)
	log, err := logConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(4)
	}

	nc, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		log.Fatal("Failed to connect", zap.String("address", addr), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mailproto.Relay(ctx, nc, os.Stdin, os.Stdout, log); err != nil {
		log.Error("Connection failed", zap.Error(err))
		log.Sync()
		os.Exit(2)
	}
}
