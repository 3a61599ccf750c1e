// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package persist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"src.bluestatic.org/mailroom/pkg/mailbox"
)

func testMailbox(t *testing.T) *mailbox.Mailbox {
	t.Helper()
	ts := time.Date(2023, time.November, 2, 8, 15, 30, 123456789, time.UTC)

	mb := mailbox.New()
	mb.Inbox().AddEmail(mailbox.Email{To: "bob", Subject: "Hi", Body: "Hello there", Timestamp: ts})
	mb.Inbox().AddEmail(mailbox.Email{To: "carol", CC: "dave", BCC: "erin", Subject: "Lunch?", Body: "noon", Timestamp: ts.Add(time.Hour)})
	mb.Trash().AddEmail(mailbox.Email{To: "spam", Subject: "Win", Body: "$$$", Timestamp: ts.Add(-time.Hour)})

	work, err := mb.AddFolder("Work")
	require.NoError(t, err)
	require.NoError(t, work.SetSortPolicy(mailbox.SubjectAscending))
	work.AddEmail(mailbox.Email{To: "boss", Subject: "Report", Body: "attached\tnot really", Timestamp: ts})
	return mb
}

func TestRoundTrip(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "mailbox.json")}
	mb := testMailbox(t)

	require.NoError(t, f.Save(mb))

	loaded, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, mb.Snapshot(), loaded.Snapshot())

	work, ok := loaded.Folder("Work")
	require.True(t, ok)
	assert.Equal(t, mailbox.SubjectAscending, work.SortPolicy())
}

func TestRoundTripLiveTimestamps(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "mailbox.json")}

	mb := mailbox.New()
	mb.Inbox().AddEmail(mailbox.NewEmail("bob", "", "", "Hi", "Hello there"))
	time.Sleep(time.Millisecond)
	mb.Inbox().AddEmail(mailbox.NewEmail("carol", "", "", "Later", "again"))
	require.NoError(t, f.Save(mb))

	loaded, err := f.Load()
	require.NoError(t, err)

	want := mb.Inbox().Emails()
	got := loaded.Inbox().Emails()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp), "email %d: %v != %v", i, want[i].Timestamp, got[i].Timestamp)
		assert.Equal(t, want[i].Subject, got[i].Subject)
		assert.Equal(t, want[i].Summary(), got[i].Summary())
	}
	assert.True(t, mailbox.DateDescending.IsSorted(got))
}

func TestRoundTripEmpty(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "mailbox.json")}
	require.NoError(t, f.Save(mailbox.New()))

	loaded, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, mailbox.New().Snapshot(), loaded.Snapshot())
}

func TestLoadMissingFile(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "nope.json")}

	mb, err := f.Load()
	require.NoError(t, err)

	folders := mb.Folders()
	require.Len(t, folders, 2)
	assert.Equal(t, mailbox.InboxName, folders[0].Name())
	assert.Equal(t, mailbox.TrashName, folders[1].Name())
	assert.Equal(t, 0, folders[0].Len())
	assert.Equal(t, 0, folders[1].Len())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"garbage.json": "{not json",
		"version.json": `{"version": 99, "folders": []}`,
		"policy.json":  `{"version": 1, "folders": [{"name": "Inbox", "sortPolicy": "upsideDown"}]}`,
		"dupe.json":    `{"version": 1, "folders": [{"name": "X"}, {"name": "X"}]}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0600))

			mb, err := File{Path: path}.Load()
			assert.Nil(t, mb)

			var perr *Error
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, "load", perr.Op)
			assert.Equal(t, path, perr.Path)
		})
	}
}

func TestSaveError(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "missing-dir", "mailbox.json")}

	err := f.Save(mailbox.New())
	var perr *Error
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, "save", perr.Op)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := File{Path: filepath.Join(dir, "mailbox.json")}
	require.NoError(t, f.Save(testMailbox(t)))
	require.NoError(t, f.Save(mailbox.New()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mailbox.json", entries[0].Name())
}
