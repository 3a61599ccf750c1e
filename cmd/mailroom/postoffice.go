// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"go.uber.org/zap"

	"src.bluestatic.org/mailroom/pkg/mailbox"
	"src.bluestatic.org/mailroom/pkg/mailstore"
)

// postOffice hands out mailboxes from the Store and saves them when a
// session ends.
type postOffice struct {
	hostname string
	store    *mailstore.Store
	log      *zap.Logger
}

func (po *postOffice) Name() string {
	return po.hostname
}

func (po *postOffice) OpenMailbox(user string) (*mailbox.Mailbox, error) {
	po.log.Debug("Opening mailbox", zap.String("user", user))
	return po.store.GetOrCreate(user), nil
}

func (po *postOffice) CloseMailbox(user string) error {
	return po.store.Save(user)
}
