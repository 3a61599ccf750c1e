// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"src.bluestatic.org/mailroom/pkg/mailproto"
	"src.bluestatic.org/mailroom/pkg/mailstore"
)

type listeners struct {
	mail    net.Listener
	metrics net.Listener // Optional.
}

// runServer serves mail sessions, and metrics if configured, until ctx is
// done or a server fails. Every held mailbox is saved before it returns.
func runServer(ctx context.Context, config Config, ls listeners, store *mailstore.Store, log *zap.Logger) error {
	po := &postOffice{
		hostname: config.Hostname,
		store:    store,
		log:      log,
	}
	srv := mailproto.NewServer(po, log, mailproto.Options{
		IdleTimeout: config.IdleTimeout(),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := srv.Serve(ls.mail)
		if errors.Is(err, mailproto.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down mail server", zap.Int("sessions", srv.Sessions()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Sessions still open after shutdown timeout", zap.Error(err))
		}
		return nil
	})

	if ls.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			log.Info("Serving metrics", zap.Stringer("address", ls.metrics.Addr()))
			if err := metricsSrv.Serve(ls.metrics); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				log.Warn("Error shutting down metrics server", zap.Error(err))
			}
			return nil
		})
	}

	if interval := config.FlushInterval(); interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := store.Flush(); err != nil {
						log.Error("Periodic flush failed", zap.Error(err))
					}
				}
			}
		})
	}

	err := g.Wait()

	if ferr := store.Flush(); ferr != nil {
		log.Error("Failed to save mailboxes", zap.Error(ferr))
	} else {
		log.Info("Saved all mailboxes", zap.Int("count", store.Len()))
	}
	return err
}
