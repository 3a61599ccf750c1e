// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package mailbox

import (
	"fmt"
	"sync"
)

// Folder is a named, ordered collection of emails. Every Folder belongs to
// exactly one Mailbox and shares that Mailbox's lock, so mutations of any
// folder in a mailbox are serialized with each other.
type Folder struct {
	mu *sync.Mutex

	name   string
	emails []Email
	policy SortPolicy
}

func newFolder(mu *sync.Mutex, name string) *Folder {
	return &Folder{
		mu:     mu,
		name:   name,
		policy: DefaultSortPolicy,
	}
}

func (f *Folder) Name() string {
	return f.name
}

// AddEmail appends e and re-sorts the folder.
func (f *Folder) AddEmail(e Email) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addEmailLocked(e)
}

// RemoveEmail removes and returns the email at the 0-based index.
func (f *Folder) RemoveEmail(index int) (Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeEmailLocked(index)
}

// Email returns a copy of the email at the 0-based index.
func (f *Folder) Email(index int) (Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.emails) {
		return Email{}, f.indexError(index)
	}
	return f.emails[index], nil
}

// Emails returns a copy of the folder contents in current sort order.
func (f *Folder) Emails() []Email {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Email(nil), f.emails...)
}

func (f *Folder) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emails)
}

func (f *Folder) SortPolicy() SortPolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.policy
}

// SetSortPolicy changes the folder's policy and re-sorts immediately. An
// unknown policy is rejected and leaves the folder untouched.
func (f *Folder) SetSortPolicy(p SortPolicy) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSortPolicy, int(p))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policy = p
	f.policy.sort(f.emails)
	return nil
}

func (f *Folder) addEmailLocked(e Email) {
	f.emails = append(f.emails, e)
	f.policy.sort(f.emails)
}

func (f *Folder) removeEmailLocked(index int) (Email, error) {
	if index < 0 || index >= len(f.emails) {
		return Email{}, f.indexError(index)
	}
	e := f.emails[index]
	f.emails = append(f.emails[:index], f.emails[index+1:]...)
	return e, nil
}

func (f *Folder) indexError(index int) error {
	return fmt.Errorf("%w: %s has no email at index %d", ErrNotFound, f.name, index)
}
