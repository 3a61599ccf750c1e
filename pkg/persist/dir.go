// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"src.bluestatic.org/mailroom/pkg/mailbox"
)

const (
	docExt     = ".json"
	corruptExt = ".corrupt"
)

// Dir keeps one mailbox document per username under Path.
type Dir struct {
	Path string
}

// FileFor returns the document location for user. Usernames are path-escaped
// so that any name maps to a single file inside the directory.
func (d Dir) FileFor(user string) File {
	name := url.PathEscape(user)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return File{Path: filepath.Join(d.Path, name+docExt)}
}

func (d Dir) Load(user string) (*mailbox.Mailbox, error) {
	return d.FileFor(user).Load()
}

func (d Dir) Save(user string, mb *mailbox.Mailbox) error {
	return d.FileFor(user).Save(mb)
}

// Users lists the usernames that have a stored document.
func (d Dir) Users() ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, &Error{Op: "list", Path: d.Path, Err: err}
	}

	var users []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
			continue
		}
		user, err := url.PathUnescape(strings.TrimSuffix(name, docExt))
		if err != nil {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// Quarantine renames user's document out of the way, to
// <document>.corrupt or <document>.corrupt.N if that is taken, and returns
// the new path. A missing document is not an error and returns "".
func (d Dir) Quarantine(user string) (string, error) {
	src := d.FileFor(user).Path
	if _, err := os.Lstat(src); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", &Error{Op: "quarantine", Path: src, Err: err}
	}

	dst := src + corruptExt
	for i := 1; ; i++ {
		if _, err := os.Lstat(dst); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dst = fmt.Sprintf("%s%s.%d", src, corruptExt, i)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", &Error{Op: "quarantine", Path: src, Err: err}
	}
	return dst, nil
}
