// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package mailstore maps usernames to their live Mailboxes for the lifetime
// of the server process.
package mailstore

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"src.bluestatic.org/mailroom/pkg/mailbox"
	"src.bluestatic.org/mailroom/pkg/metrics"
)

// Backend loads and saves the Mailbox for a username.
type Backend interface {
	Load(user string) (*mailbox.Mailbox, error)
	Save(user string, mb *mailbox.Mailbox) error
}

// Lister is implemented by Backends that can enumerate stored users.
type Lister interface {
	Users() ([]string, error)
}

// Quarantiner is implemented by Backends that can set aside a stored
// mailbox that failed to load, so a later Save does not overwrite it.
type Quarantiner interface {
	Quarantine(user string) (string, error)
}

// Store holds one Mailbox per username. Entries are never removed.
type Store struct {
	backend Backend
	log     *zap.Logger

	mu    sync.Mutex
	boxes map[string]*mailbox.Mailbox
	// saving holds one lock per user, taken from snapshot to write.
	saving map[string]*sync.Mutex

	loads singleflight.Group
}

// New creates a Store over backend. A nil backend keeps mailboxes in memory
// only.
func New(backend Backend, log *zap.Logger) *Store {
	return &Store{
		backend: backend,
		log:     log,
		boxes:   make(map[string]*mailbox.Mailbox),
		saving:  make(map[string]*sync.Mutex),
	}
}

// GetOrCreate returns the Mailbox for user, loading it from the backend or
// creating it on first use. Concurrent first calls for the same user all
// receive the same instance. A backend failure is logged and replaced by an
// empty Mailbox.
func (s *Store) GetOrCreate(user string) *mailbox.Mailbox {
	if mb, ok := s.lookup(user); ok {
		return mb
	}

	v, _, _ := s.loads.Do(user, func() (any, error) {
		if mb, ok := s.lookup(user); ok {
			return mb, nil
		}
		mb := s.load(user)

		s.mu.Lock()
		s.boxes[user] = mb
		n := len(s.boxes)
		s.mu.Unlock()

		metrics.MailboxesCurrent.Set(float64(n))
		return mb, nil
	})
	return v.(*mailbox.Mailbox)
}

// Users returns the usernames with a live Mailbox, sorted.
func (s *Store) Users() []string {
	s.mu.Lock()
	users := make([]string, 0, len(s.boxes))
	for u := range s.boxes {
		users = append(users, u)
	}
	s.mu.Unlock()

	sort.Strings(users)
	return users
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boxes)
}

// Preload loads every user the backend knows about. It returns the number
// of mailboxes held afterwards.
func (s *Store) Preload() (int, error) {
	lister, ok := s.backend.(Lister)
	if !ok {
		return s.Len(), nil
	}
	users, err := lister.Users()
	if err != nil {
		s.log.Error("failed to list stored mailboxes", zap.Error(err))
		metrics.PersistenceErrors.WithLabelValues("list").Inc()
		return s.Len(), err
	}
	for _, user := range users {
		s.GetOrCreate(user)
	}
	return s.Len(), nil
}

// Save writes the Mailbox for user to the backend, if one is held. Saves
// for the same user are serialized, so the stored document is never older
// than the last snapshot taken.
func (s *Store) Save(user string) error {
	mb, ok := s.lookup(user)
	if !ok || s.backend == nil {
		return nil
	}

	lock := s.saveLock(user)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := s.backend.Save(user, mb)
	metrics.PersistenceDuration.WithLabelValues("save").Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error("failed to save mailbox", zap.String("user", user), zap.Error(err))
		metrics.PersistenceErrors.WithLabelValues("save").Inc()
		return err
	}
	s.log.Debug("saved mailbox", zap.String("user", user))
	return nil
}

// Flush saves every held Mailbox, continuing past failures.
func (s *Store) Flush() error {
	var errs []error
	for _, user := range s.Users() {
		if err := s.Save(user); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) lookup(user string) (*mailbox.Mailbox, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb, ok := s.boxes[user]
	return mb, ok
}

func (s *Store) saveLock(user string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.saving[user]
	if !ok {
		lock = &sync.Mutex{}
		s.saving[user] = lock
	}
	return lock
}

func (s *Store) load(user string) *mailbox.Mailbox {
	if s.backend == nil {
		return mailbox.New()
	}

	start := time.Now()
	mb, err := s.backend.Load(user)
	metrics.PersistenceDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error("failed to load mailbox, starting empty", zap.String("user", user), zap.Error(err))
		metrics.PersistenceErrors.WithLabelValues("load").Inc()
		s.quarantine(user)
		return mailbox.New()
	}
	s.log.Debug("loaded mailbox", zap.String("user", user))
	return mb
}

func (s *Store) quarantine(user string) {
	q, ok := s.backend.(Quarantiner)
	if !ok {
		return
	}
	path, err := q.Quarantine(user)
	if err != nil {
		s.log.Error("failed to set aside unreadable mailbox", zap.String("user", user), zap.Error(err))
		metrics.PersistenceErrors.WithLabelValues("quarantine").Inc()
		return
	}
	if path != "" {
		s.log.Warn("set aside unreadable mailbox", zap.String("user", user), zap.String("path", path))
	}
}
