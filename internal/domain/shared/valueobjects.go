// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// CompetitorID
// ═══════════════════════════════════════════════════════════════════════════

// CompetitorID is the unique identifier of a rating-bearing competitor
// (a player or a team). Stored as a UUID string.
type CompetitorID string

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks that the ID is a well-formed UUID.
func (c CompetitorID) IsValid() bool {
	return uuidRegex.MatchString(string(c))
}

// String returns the string representation.
func (c CompetitorID) String() string {
	return string(c)
}

// IsEmpty returns true if the ID is empty.
func (c CompetitorID) IsEmpty() bool {
	return c == ""
}

// NewCompetitorID validates and creates a CompetitorID.
func NewCompetitorID(id string) (CompetitorID, error) {
	cid := CompetitorID(strings.TrimSpace(id))
	if !cid.IsValid() {
		return "", ErrInvalidID
	}
	return cid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// EventID
// ═══════════════════════════════════════════════════════════════════════════

// EventID identifies a finalized competitive event (match, tournament, league
// fixture). Together with a CompetitorID it forms the idempotency key for
// outcome application.
type EventID string

// IsValid checks that the event ID is non-empty and of reasonable length.
func (e EventID) IsValid() bool {
	s := string(e)
	return len(s) >= 1 && len(s) <= 64
}

// String returns the string representation.
func (e EventID) String() string {
	return string(e)
}

// NewEventID validates and creates an EventID.
func NewEventID(id string) (EventID, error) {
	eid := EventID(strings.TrimSpace(id))
	if !eid.IsValid() {
		return "", ErrInvalidID
	}
	return eid, nil
}
