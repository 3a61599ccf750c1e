// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package mailproto implements the line-oriented mail protocol: the
// per-connection session state machine, the accept loop that spawns
// sessions, and a console relay client.
package mailproto

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"src.bluestatic.org/mailroom/pkg/mailbox"
	"src.bluestatic.org/mailroom/pkg/metrics"
)

// PostOffice provides the mailboxes that sessions operate on.
type PostOffice interface {
	// Name is shown to clients in the greeting.
	Name() string
	// OpenMailbox returns the single shared Mailbox for user, creating it if
	// needed. Usernames are not authenticated.
	OpenMailbox(user string) (*mailbox.Mailbox, error)
	// CloseMailbox is called once when a session that opened user's mailbox
	// ends, however it ends.
	CloseMailbox(user string) error
}

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("mailproto: server closed")

type Options struct {
	// IdleTimeout bounds how long a session waits for a client line. Zero
	// disables the timeout.
	IdleTimeout time.Duration
}

// Server accepts connections and runs one session goroutine per connection.
type Server struct {
	po   PostOffice
	log  *zap.Logger
	opts Options

	mu        sync.Mutex
	closing   bool
	listeners map[net.Listener]struct{}
	conns     map[*connection]struct{}
	sessions  sync.WaitGroup
}

func NewServer(po PostOffice, log *zap.Logger, opts Options) *Server {
	return &Server{
		po:        po,
		log:       log,
		opts:      opts,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[*connection]struct{}),
	}
}

// ListenAndServe binds addr and serves it until Shutdown. Failure to bind is
// returned immediately.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown is called. A failed Accept
// is logged and retried; it does not stop the loop.
func (s *Server) Serve(l net.Listener) error {
	if !s.trackListener(l) {
		l.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(l)

	s.log.Info("accepting connections", zap.Stringer("address", l.Addr()))

	var backoff time.Duration
	for {
		nc, err := l.Accept()
		if err != nil {
			if s.isClosing() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(2*backoff, time.Second)
			}
			s.log.Error("accept", zap.Error(err), zap.Duration("retry_in", backoff))
			metrics.AcceptErrors.Inc()
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		conn := newConnection(nc, s.po, s.log, s.opts)
		if !s.trackConn(conn) {
			nc.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.untrackConn(conn)
			conn.serve()
		}()
	}
}

// Shutdown stops all listeners, tells every open session that the server is
// going away, closes their connections, and waits for the session goroutines
// to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for l := range s.listeners {
		l.Close()
	}
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if len(conns) > 0 {
		s.log.Info("closing sessions", zap.Int("count", len(conns)))
	}
	for _, c := range conns {
		c.shutdown()
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("all sessions closed")
		return nil
	case <-ctx.Done():
		s.log.Warn("timed out waiting for sessions to close", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) trackListener(l net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.listeners[l] = struct{}{}
	return true
}

func (s *Server) untrackListener(l net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, l)
}

// trackConn registers c. Sessions are only added to the WaitGroup before
// closing is set.
func (s *Server) trackConn(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	s.sessions.Add(1)
	return true
}

func (s *Server) untrackConn(c *connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.sessions.Done()
}
