// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package mailproto

const commandList = "COMPOSE, INBOX, VIEW <index>, DELETE <index>, SORT <policy>, FOLDERS, MKFOLDER <name>, RMFOLDER <name>, QUIT"

const (
	msgGreeting        = "Welcome to the Email Server %s. Please log in with: LOGIN <username>"
	msgLoggedIn        = "Logged in as %s"
	msgCommands        = "Commands: " + commandList
	msgLoginUsage      = "Invalid login command. Usage: LOGIN <username>"
	msgLoginFirst      = "Please log in first with: LOGIN <username>"
	msgAlreadyLoggedIn = "Already logged in as %s"
	msgMailboxError    = "Unable to open mailbox: %s"
	msgUnknownCommand  = "Unknown command. Available commands: " + commandList
	msgOK              = "OK"
	msgGoodbye         = "Goodbye!"
	msgIdleTimeout     = "Idle timeout, closing connection."
	msgShutdown        = "Server shutting down."

	msgInboxEmpty   = "Inbox is empty."
	msgIndexUsage   = "Usage: %s <index>"
	msgIndexFormat  = "Invalid index format."
	msgInvalidIndex = "Invalid email index."
	msgMovedToTrash = "Email moved to Trash."

	msgComposeStart   = "Composing a new email."
	msgPromptTo       = "Enter recipient (TO):"
	msgPromptCC       = "Enter CC (optional):"
	msgPromptBCC      = "Enter BCC (optional):"
	msgPromptSubject  = "Enter subject:"
	msgPromptBody     = "Enter body:"
	msgComposeDone    = "Email composed and added to Inbox."
	msgSortUsage      = "Usage: SORT <dateAsc|dateDesc|subjectAsc|subjectDesc>"
	msgSortUnknown    = "Unknown sort policy: %s"
	msgSorted         = "Inbox sorted by %s."
	msgFolderUsage    = "Usage: %s <name>"
	msgFolderListing  = "%s (%d)"
	msgFolderCreated  = "Folder %s created."
	msgFolderRemoved  = "Folder %s removed."
	msgFolderExists   = "Folder %s already exists."
	msgFolderProtect  = "Folder %s cannot be removed."
	msgFolderNotFound = "No such folder: %s"
	msgFolderInvalid  = "Invalid folder name."
)
