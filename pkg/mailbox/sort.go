// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package mailbox

import (
	"fmt"
	"slices"
	"strings"
)

// SortPolicy selects the order in which a Folder presents its emails.
type SortPolicy int

const (
	DateDescending SortPolicy = iota
	DateAscending
	SubjectAscending
	SubjectDescending
)

// DefaultSortPolicy is the policy of a newly created Folder.
const DefaultSortPolicy = DateDescending

var sortPolicyNames = map[SortPolicy]string{
	DateAscending:     "dateAsc",
	DateDescending:    "dateDesc",
	SubjectAscending:  "subjectAsc",
	SubjectDescending: "subjectDesc",
}

// SortPolicies returns every valid policy, in a stable order.
func SortPolicies() []SortPolicy {
	return []SortPolicy{DateAscending, DateDescending, SubjectAscending, SubjectDescending}
}

func (p SortPolicy) Valid() bool {
	_, ok := sortPolicyNames[p]
	return ok
}

func (p SortPolicy) String() string {
	if name, ok := sortPolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("SortPolicy(%d)", int(p))
}

// ParseSortPolicy maps a policy name, compared case-insensitively, to its
// SortPolicy. Unknown names are rejected with ErrInvalidSortPolicy.
func ParseSortPolicy(s string) (SortPolicy, error) {
	for p, name := range sortPolicyNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSortPolicy, s)
}

func (p SortPolicy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSortPolicy, int(p))
	}
	return []byte(p.String()), nil
}

func (p *SortPolicy) UnmarshalText(b []byte) error {
	parsed, err := ParseSortPolicy(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p SortPolicy) compare(a, b Email) int {
	switch p {
	case DateAscending:
		return a.Timestamp.Compare(b.Timestamp)
	case DateDescending:
		return b.Timestamp.Compare(a.Timestamp)
	case SubjectAscending:
		return strings.Compare(a.Subject, b.Subject)
	case SubjectDescending:
		return strings.Compare(b.Subject, a.Subject)
	}
	panic("unreachable: unvalidated sort policy " + p.String())
}

func (p SortPolicy) sort(emails []Email) {
	slices.SortStableFunc(emails, p.compare)
}

// IsSorted reports whether emails are in the order p defines.
func (p SortPolicy) IsSorted(emails []Email) bool {
	return slices.IsSortedFunc(emails, p.compare)
}
