// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package mailbox

import (
	"fmt"
	"time"
)

// SummaryTimeFormat is the timestamp layout used in folder listings.
const SummaryTimeFormat = "03:04 PM 01/02/2006"

// Email is a single composed message. It is a value type: folders store and
// hand out copies, so an Email never changes after NewEmail returns it.
type Email struct {
	To        string    `json:"to"`
	CC        string    `json:"cc"`
	BCC       string    `json:"bcc"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEmail creates an Email stamped with the current time.
func NewEmail(to, cc, bcc, subject, body string) Email {
	return Email{
		To:        to,
		CC:        cc,
		BCC:       bcc,
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now().Round(0),
	}
}

// Summary renders the one-line listing form, `[<time>] <subject>`.
func (e Email) Summary() string {
	return fmt.Sprintf("[%s] %s", e.Timestamp.Format(SummaryTimeFormat), e.Subject)
}
