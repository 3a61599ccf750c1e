// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package mailbox holds the per-user mail data model: emails, sortable
// folders, and the Mailbox that owns them.
package mailbox

import (
	"fmt"
	"strings"
	"sync"
)

const (
	InboxName = "Inbox"
	TrashName = "Trash"
)

// Mailbox owns the permanent Inbox and Trash folders plus any user-created
// folders. All folder and email mutations in one Mailbox hold the same lock;
// distinct Mailboxes never contend.
type Mailbox struct {
	mu sync.Mutex

	// folders in creation order; names are unique.
	folders []*Folder
}

// New returns a Mailbox containing only an empty Inbox and Trash.
func New() *Mailbox {
	mb := &Mailbox{}
	mb.folders = []*Folder{
		newFolder(&mb.mu, InboxName),
		newFolder(&mb.mu, TrashName),
	}
	return mb
}

// IsProtected reports whether the named folder is permanent.
func IsProtected(name string) bool {
	return name == InboxName || name == TrashName
}

func (mb *Mailbox) Inbox() *Folder {
	f, _ := mb.Folder(InboxName)
	return f
}

func (mb *Mailbox) Trash() *Folder {
	f, _ := mb.Folder(TrashName)
	return f
}

// Folder looks up a folder by exact name.
func (mb *Mailbox) Folder(name string) (*Folder, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	f := mb.folderLocked(name)
	return f, f != nil
}

// Folders returns the mailbox's folders in creation order.
func (mb *Mailbox) Folders() []*Folder {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return append([]*Folder(nil), mb.folders...)
}

// AddFolder creates a new empty folder.
func (mb *Mailbox) AddFolder(name string) (*Folder, error) {
	if err := validateFolderName(name); err != nil {
		return nil, err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.folderLocked(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateFolder, name)
	}
	f := newFolder(&mb.mu, name)
	mb.folders = append(mb.folders, f)
	return f, nil
}

// RemoveFolder deletes a user-created folder and the emails in it.
func (mb *Mailbox) RemoveFolder(name string) error {
	if IsProtected(name) {
		return fmt.Errorf("%w: %s", ErrProtectedFolder, name)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i, f := range mb.folders {
		if f.name == name {
			mb.folders = append(mb.folders[:i], mb.folders[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: folder %s", ErrNotFound, name)
}

// MoveEmail removes the email at the 0-based index of folder `from` and adds
// it to folder `to` as a single mutation.
func (mb *Mailbox) MoveEmail(from string, index int, to string) (Email, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	src := mb.folderLocked(from)
	if src == nil {
		return Email{}, fmt.Errorf("%w: folder %s", ErrNotFound, from)
	}
	dst := mb.folderLocked(to)
	if dst == nil {
		return Email{}, fmt.Errorf("%w: folder %s", ErrNotFound, to)
	}

	e, err := src.removeEmailLocked(index)
	if err != nil {
		return Email{}, err
	}
	dst.addEmailLocked(e)
	return e, nil
}

func (mb *Mailbox) folderLocked(name string) *Folder {
	for _, f := range mb.folders {
		if f.name == name {
			return f
		}
	}
	return nil
}

func validateFolderName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidFolderName, name)
	}
	return nil
}
