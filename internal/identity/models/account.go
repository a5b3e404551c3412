package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
)

const (
	MinDisplayNameLength = 3
	MaxDisplayNameLength = 100
)

// Account is a phone-verified person known to the registry. ExternalRef is
// the identity provider's subject and never changes.
type Account struct {
	ID          id.AccountID
	ExternalRef string
	PhoneNumber string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile carries the optional self-declared fields supplied at login.
type Profile struct {
	DisplayName string
}

// NormalizeDisplayName trims and length-checks a display name.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < MinDisplayNameLength || n > MaxDisplayNameLength {
		return "", dErrors.New(dErrors.CodeValidation, "display name must be between 3 and 100 characters")
	}
	return name, nil
}

// NewAccount builds an account, enforcing construction invariants.
func NewAccount(accountID id.AccountID, externalRef, phone, displayName string, now time.Time) (*Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account id is required")
	}
	if strings.TrimSpace(externalRef) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "external identity reference is required")
	}
	if strings.TrimSpace(phone) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "phone number is required")
	}
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	return &Account{
		ID:          accountID,
		ExternalRef: externalRef,
		PhoneNumber: phone,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Rename applies a new display name. It reports whether anything changed.
func (a *Account) Rename(displayName string, now time.Time) (bool, error) {
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return false, err
	}
	if name == a.DisplayName {
		return false, nil
	}
	a.DisplayName = name
	a.UpdatedAt = now
	return true, nil
}
