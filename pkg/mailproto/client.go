// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package mailproto

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"

	"go.uber.org/zap"
)

// Relay connects a console to a server session: every line the server sends
// is written to out, and every line read from in is sent to the server. It
// returns when the server closes the connection, after which a sent QUIT is
// the normal way to finish. When in is exhausted, QUIT is sent on the user's
// behalf.
func Relay(ctx context.Context, nc net.Conn, in io.Reader, out io.Writer, log *zap.Logger) error {
	log = log.With(zap.Stringer("server", nc.RemoteAddr()))
	tp := textproto.NewConn(nc)
	defer tp.Close()

	serverDone := make(chan error, 1)
	go func() {
		for {
			line, err := tp.ReadLine()
			if err != nil {
				serverDone <- err
				return
			}
			fmt.Fprintln(out, line)
		}
	}()

	input := make(chan string)
	inputDone := make(chan struct{})
	defer close(inputDone)
	go func() {
		defer close(input)
		s := bufio.NewScanner(in)
		for s.Scan() {
			select {
			case input <- s.Text():
			case <-inputDone:
				return
			}
		}
	}()

	quitSent := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-serverDone:
			if errors.Is(err, io.EOF) || quitSent {
				log.Debug("server closed connection", zap.Error(err))
				return nil
			}
			return fmt.Errorf("read from server: %w", err)

		case line, ok := <-input:
			if !ok {
				line = "QUIT"
			}
			if err := tp.PrintfLine("%s", line); err != nil {
				return fmt.Errorf("write to server: %w", err)
			}
			if !ok || strings.EqualFold(strings.TrimSpace(line), "QUIT") {
				quitSent = true
				input = nil
			}
		}
	}
}
