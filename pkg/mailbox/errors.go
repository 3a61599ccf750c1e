// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package mailbox

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateFolder   = errors.New("folder already exists")
	ErrProtectedFolder   = errors.New("folder cannot be removed")
	ErrInvalidFolderName = errors.New("invalid folder name")
	ErrInvalidSortPolicy = errors.New("invalid sort policy")
)
