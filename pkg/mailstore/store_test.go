// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package mailstore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"src.bluestatic.org/mailroom/pkg/mailbox"
	"src.bluestatic.org/mailroom/pkg/metrics"
	"src.bluestatic.org/mailroom/pkg/persist"
)

type fakeBackend struct {
	mu      sync.Mutex
	loads   atomic.Int32
	delay   time.Duration
	loadErr error
	saveErr error
	saved   map[string][]mailbox.FolderState
	users   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{saved: make(map[string][]mailbox.FolderState)}
}

func (b *fakeBackend) Load(user string) (*mailbox.Mailbox, error) {
	b.loads.Add(1)
	time.Sleep(b.delay)
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return mailbox.Restore(b.saved[user])
}

func (b *fakeBackend) Save(user string, mb *mailbox.Mailbox) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved[user] = mb.Snapshot()
	return nil
}

func (b *fakeBackend) Users() ([]string, error) {
	return b.users, nil
}

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	s := New(nil, zaptest.NewLogger(t))

	a := s.GetOrCreate("alice")
	require.NotNil(t, a)
	assert.Same(t, a, s.GetOrCreate("alice"))
	assert.NotSame(t, a, s.GetOrCreate("bob"))
	assert.Equal(t, []string{"alice", "bob"}, s.Users())
}

func TestGetOrCreateConcurrentFirstLogin(t *testing.T) {
	backend := newFakeBackend()
	backend.delay = 20 * time.Millisecond
	s := New(backend, zap.NewNop())

	const n = 32
	results := make([]*mailbox.Mailbox, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = s.GetOrCreate("carol")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i], "result %d", i)
	}
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int32(1), backend.loads.Load())
}

func TestGetOrCreateLoadsFromBackend(t *testing.T) {
	backend := newFakeBackend()
	stored := mailbox.New()
	stored.Inbox().AddEmail(mailbox.NewEmail("bob", "", "", "Hi", "Hello"))
	backend.saved["alice"] = stored.Snapshot()

	s := New(backend, zap.NewNop())
	mb := s.GetOrCreate("alice")
	assert.Equal(t, 1, mb.Inbox().Len())
}

func TestGetOrCreateLoadFailureFallsBackToEmpty(t *testing.T) {
	backend := newFakeBackend()
	backend.loadErr = errors.New("disk on fire")
	s := New(backend, zap.NewNop())

	before := testutil.ToFloat64(metrics.PersistenceErrors.WithLabelValues("load"))
	mb := s.GetOrCreate("alice")
	require.NotNil(t, mb)
	assert.Equal(t, 0, mb.Inbox().Len())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PersistenceErrors.WithLabelValues("load")))

	// Still the same instance; the backend is not retried.
	assert.Same(t, mb, s.GetOrCreate("alice"))
	assert.Equal(t, int32(1), backend.loads.Load())
}

func TestSaveAndFlush(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, zap.NewNop())

	require.NoError(t, s.Save("nobody"))
	assert.Empty(t, backend.saved)

	s.GetOrCreate("alice").Inbox().AddEmail(mailbox.NewEmail("x", "", "", "one", ""))
	s.GetOrCreate("bob")
	require.NoError(t, s.Save("alice"))
	require.Len(t, backend.saved["alice"], 2)
	assert.Len(t, backend.saved["alice"][0].Emails, 1)

	require.NoError(t, s.Flush())
	assert.Contains(t, backend.saved, "bob")

	backend.saveErr = errors.New("read-only")
	assert.ErrorIs(t, s.Save("alice"), backend.saveErr)
	assert.ErrorIs(t, s.Flush(), backend.saveErr)
}

func TestPreload(t *testing.T) {
	backend := newFakeBackend()
	backend.users = []string{"alice", "bob"}
	s := New(backend, zap.NewNop())

	n, err := s.Preload()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, ok := s.lookup("bob")
	assert.True(t, ok)
	_, ok = s.lookup("carol")
	assert.False(t, ok)
}

func TestStoreWithDirBackend(t *testing.T) {
	dir := persist.Dir{Path: t.TempDir()}

	s := New(dir, zap.NewNop())
	s.GetOrCreate("alice").Inbox().AddEmail(mailbox.NewEmail("bob", "", "", "Hi", "Hello there"))
	require.NoError(t, s.Flush())

	restarted := New(dir, zap.NewNop())
	n, err := restarted.Preload()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mb, ok := restarted.lookup("alice")
	require.True(t, ok)
	e, err := mb.Inbox().Email(0)
	require.NoError(t, err)
	assert.Equal(t, "Hi", e.Subject)
}

func TestPreloadMissingDir(t *testing.T) {
	s := New(persist.Dir{Path: filepath.Join(t.TempDir(), "gone")}, zap.NewNop())
	_, err := s.Preload()
	assert.Error(t, err)
}

func TestConcurrentSavesKeepLatestSnapshot(t *testing.T) {
	dir := persist.Dir{Path: t.TempDir()}
	s := New(dir, zap.NewNop())
	mb := s.GetOrCreate("carol")

	const writers = 4
	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				mb.Inbox().AddEmail(mailbox.NewEmail("dan", "", "", "note", ""))
				assert.NoError(t, s.Save("carol"))
			}()
		}
		wg.Wait()

		stored, err := dir.Load("carol")
		require.NoError(t, err)
		require.Equal(t, mb.Inbox().Len(), stored.Inbox().Len(), "round %d", round)
	}
}

func TestLoadFailureSetsDocumentAside(t *testing.T) {
	dir := persist.Dir{Path: t.TempDir()}
	path := dir.FileFor("alice").Path
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := New(dir, zaptest.NewLogger(t))
	mb := s.GetOrCreate("alice")
	assert.Equal(t, 0, mb.Inbox().Len())

	b, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(b))

	mb.Inbox().AddEmail(mailbox.NewEmail("bob", "", "", "Fresh", ""))
	require.NoError(t, s.Save("alice"))

	stored, err := dir.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Inbox().Len())

	b, err = os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(b))
}
