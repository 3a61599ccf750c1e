// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package persist

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"src.bluestatic.org/mailroom/pkg/mailbox"
)

func TestDirFileForStaysInDir(t *testing.T) {
	d := Dir{Path: "/srv/maildrop"}
	for _, user := range []string{"alice", "../etc/passwd", "..", ".hidden", "a/b", "ünï"} {
		p := d.FileFor(user).Path
		assert.Equal(t, d.Path, filepath.Dir(p), "user %q -> %q", user, p)
	}
}

func TestDirUsers(t *testing.T) {
	d := Dir{Path: t.TempDir()}
	users := []string{"alice", "bob smith", "../carol", "."}
	for _, u := range users {
		require.NoError(t, d.Save(u, mailbox.New()))
	}

	got, err := d.Users()
	require.NoError(t, err)
	sort.Strings(got)
	sort.Strings(users)
	assert.Equal(t, users, got)
}

func TestDirLoadSave(t *testing.T) {
	d := Dir{Path: t.TempDir()}

	mb, err := d.Load("alice")
	require.NoError(t, err)
	mb.Inbox().AddEmail(mailbox.NewEmail("bob", "", "", "Hi", "Hello"))
	require.NoError(t, d.Save("alice", mb))

	again, err := d.Load("alice")
	require.NoError(t, err)
	require.Equal(t, 1, again.Inbox().Len())
	e, err := again.Inbox().Email(0)
	require.NoError(t, err)
	assert.Equal(t, "Hi", e.Subject)
	assert.True(t, e.Timestamp.Equal(mb.Inbox().Emails()[0].Timestamp))

	other, err := d.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, 0, other.Inbox().Len())
}

func TestDirUsersMissing(t *testing.T) {
	_, err := Dir{Path: filepath.Join(t.TempDir(), "nope")}.Users()
	assert.Error(t, err)
}

func TestDirQuarantine(t *testing.T) {
	d := Dir{Path: t.TempDir()}

	path, err := d.Quarantine("nobody")
	require.NoError(t, err)
	assert.Empty(t, path)

	src := d.FileFor("alice").Path
	require.NoError(t, os.WriteFile(src, []byte("{not json"), 0600))

	path, err = d.Quarantine("alice")
	require.NoError(t, err)
	assert.Equal(t, src+".corrupt", path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(b))
	assert.NoFileExists(t, src)

	// A second bad document does not replace the first one set aside.
	require.NoError(t, os.WriteFile(src, []byte("also bad"), 0600))
	path, err = d.Quarantine("alice")
	require.NoError(t, err)
	assert.Equal(t, src+".corrupt.1", path)
	assert.FileExists(t, src+".corrupt")

	users, err := d.Users()
	require.NoError(t, err)
	assert.Empty(t, users)
}
