// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package persist stores Mailboxes as JSON documents on disk.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"src.bluestatic.org/mailroom/pkg/mailbox"
)

// documentVersion is written into every document. Load rejects documents
// from a newer version.
const documentVersion = 1

type document struct {
	Version int                   `json:"version"`
	Folders []mailbox.FolderState `json:"folders"`
}

// File persists a single Mailbox at a fixed path.
type File struct {
	Path string
}

// Load reads the Mailbox at f.Path. A missing file yields a new, empty
// Mailbox and no error.
func (f File) Load() (*mailbox.Mailbox, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return mailbox.New(), nil
	} else if err != nil {
		return nil, f.err("load", err)
	}

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, f.err("load", err)
	}
	if doc.Version > documentVersion {
		return nil, f.err("load", fmt.Errorf("unsupported document version %d", doc.Version))
	}

	mb, err := mailbox.Restore(doc.Folders)
	if err != nil {
		return nil, f.err("load", err)
	}
	return mb, nil
}

// Save writes mb to f.Path. The document is written to a temporary file in
// the same directory and renamed into place, so a reader never observes a
// partial document.
func (f File) Save(mb *mailbox.Mailbox) error {
	b, err := json.MarshalIndent(document{
		Version: documentVersion,
		Folders: mb.Snapshot(),
	}, "", "  ")
	if err != nil {
		return f.err("save", err)
	}

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return f.err("save", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return f.err("save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return f.err("save", err)
	}
	if err := tmp.Close(); err != nil {
		return f.err("save", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return f.err("save", err)
	}
	return nil
}

func (f File) err(op string, err error) error {
	return &Error{Op: op, Path: f.Path, Err: err}
}
