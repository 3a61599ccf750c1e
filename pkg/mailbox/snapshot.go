// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package mailbox

import "fmt"

// FolderState is the serializable form of one Folder.
type FolderState struct {
	Name       string     `json:"name"`
	SortPolicy SortPolicy `json:"sortPolicy"`
	Emails     []Email    `json:"emails"`
}

// Snapshot captures every folder, in creation order, under a single hold of
// the mailbox lock.
func (mb *Mailbox) Snapshot() []FolderState {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	states := make([]FolderState, 0, len(mb.folders))
	for _, f := range mb.folders {
		states = append(states, FolderState{
			Name:       f.name,
			SortPolicy: f.policy,
			Emails:     append([]Email{}, f.emails...),
		})
	}
	return states
}

// Restore builds a Mailbox from snapshotted folder states. Inbox and Trash
// are created even when absent from states.
func Restore(states []FolderState) (*Mailbox, error) {
	mb := New()
	seen := make(map[string]bool, len(states))
	for _, st := range states {
		if seen[st.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFolder, st.Name)
		}
		seen[st.Name] = true

		f, ok := mb.Folder(st.Name)
		if !ok {
			var err error
			if f, err = mb.AddFolder(st.Name); err != nil {
				return nil, err
			}
		}

		if err := f.SetSortPolicy(st.SortPolicy); err != nil {
			return nil, fmt.Errorf("folder %s: %w", st.Name, err)
		}
		mb.mu.Lock()
		f.emails = append(f.emails, st.Emails...)
		f.policy.sort(f.emails)
		mb.mu.Unlock()
	}
	return mb, nil
}
