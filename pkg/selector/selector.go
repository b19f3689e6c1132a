// Package selector models the composite "accountId|calendarId" calendar keys sent by
// clients and turns them into the list of calendars to read per account.
package selector

import (
	"strings"
)

const (
	separator = "|"
	// PrimaryCalendar is used for every account when the client selected nothing.
	PrimaryCalendar = "primary"
)

// Selector identifies one calendar under one linked account. It is comparable, so two
// selectors are equal when both halves are.
type Selector struct {
	AccountId  string
	CalendarId string
}

func New(accountId, calendarId string) Selector {
	return Selector{AccountId: accountId, CalendarId: calendarId}
}

// Parse reads the wire form "accountId|calendarId". Only the first two segments are
// used; ids containing "|" are not escaped on the wire and cannot round-trip.
func Parse(raw string) (Selector, bool) {
	parts := strings.SplitN(raw, separator, 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Selector{}, false
	}
	return New(parts[0], parts[1]), true
}

func (s Selector) String() string {
	return s.AccountId + separator + s.CalendarId
}

// SplitParam splits the comma-separated calendarIds query parameter, trimming blanks.
func SplitParam(param string) []string {
	result := make([]string, 0)
	for _, part := range strings.Split(param, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseList groups well-formed selectors by account, keeping first-seen order per account.
// Malformed entries and repeats of an already seen selector are dropped.
func ParseList(raw []string) map[string][]string {
	byAccount := make(map[string][]string)
	seen := make(map[Selector]struct{}, len(raw))
	for _, r := range raw {
		s, ok := Parse(r)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		byAccount[s.AccountId] = append(byAccount[s.AccountId], s.CalendarId)
	}
	return byAccount
}

// Plan returns the calendars to read for the given accounts, in account order. With an
// empty mapping each account gets its primary calendar; otherwise accounts missing from
// the mapping get none.
func Plan(byAccount map[string][]string, accountIds []string) []Selector {
	plan := make([]Selector, 0, len(accountIds))
	for _, accountId := range accountIds {
		if len(byAccount) == 0 {
			plan = append(plan, New(accountId, PrimaryCalendar))
			continue
		}
		for _, calendarId := range byAccount[accountId] {
			plan = append(plan, New(accountId, calendarId))
		}
	}
	return plan
}
