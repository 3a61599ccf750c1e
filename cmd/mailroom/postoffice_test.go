// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"src.bluestatic.org/mailroom/pkg/mailbox"
	"src.bluestatic.org/mailroom/pkg/mailstore"
	"src.bluestatic.org/mailroom/pkg/persist"
)

func TestPostOfficeSavesOnClose(t *testing.T) {
	dir := persist.Dir{Path: t.TempDir()}
	po := &postOffice{
		hostname: "mail.test",
		store:    mailstore.New(dir, zap.NewNop()),
		log:      zap.NewNop(),
	}
	assert.Equal(t, "mail.test", po.Name())

	mb, err := po.OpenMailbox("alice")
	require.NoError(t, err)
	again, err := po.OpenMailbox("alice")
	require.NoError(t, err)
	assert.Same(t, mb, again)

	mb.Inbox().AddEmail(mailbox.NewEmail("bob", "", "", "Hi", "Hello there"))

	require.NoError(t, po.CloseMailbox("alice"))

	users, err := dir.Users()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)

	loaded, err := dir.Load("alice")
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Inbox().Len())
	e, err := loaded.Inbox().Email(0)
	require.NoError(t, err)
	assert.Equal(t, "Hi", e.Subject)
}

func TestPostOfficeCloseUnknownUser(t *testing.T) {
	dir := persist.Dir{Path: t.TempDir()}
	po := &postOffice{store: mailstore.New(dir, zap.NewNop()), log: zap.NewNop()}

	require.NoError(t, po.CloseMailbox("nobody"))

	users, err := dir.Users()
	require.NoError(t, err)
	assert.Empty(t, users)
}
