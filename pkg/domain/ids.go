package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "sixd/pkg/domain-errors"
)

// AccountID identifies a registered person.
type AccountID uuid.UUID

// EventID identifies an audit/outbox event.
type EventID uuid.UUID

// NewAccountID returns a fresh random account ID.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewEventID returns a fresh random event ID.
func NewEventID() EventID { return EventID(uuid.New()) }

func (a AccountID) String() string { return uuid.UUID(a).String() }
func (a AccountID) IsNil() bool    { return uuid.UUID(a) == uuid.Nil }

func (e EventID) String() string { return uuid.UUID(e).String() }
func (e EventID) IsNil() bool    { return uuid.UUID(e) == uuid.Nil }

// ParseAccountID parses an account ID at a trust boundary.
// Empty, malformed and nil UUIDs are rejected with CodeInvalidInput.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account ID")
	return AccountID(u), err
}

// ParseEventID parses an event ID at a trust boundary.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event ID")
	return EventID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}
