package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"sixd/internal/geo/codec"
	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
)

// CooldownDays is the number of calendar days an address must stay in place
// before it can be updated.
const CooldownDays = 30

const maxLabelLength = 100

// AddressData is what a resident submits: a point plus free-text labels.
// The 6D code is always derived server-side from Point.
type AddressData struct {
	Point        id.Coordinate
	Region       string
	City         string
	District     string
	Neighborhood string
}

// Normalize trims labels and checks their length. Region, city and district
// are required; neighborhood is optional. It does not check the point.
func (d AddressData) Normalize() (AddressData, error) {
	labels := []*string{&d.Region, &d.City, &d.District, &d.Neighborhood}
	for _, l := range labels {
		*l = strings.TrimSpace(*l)
		if utf8.RuneCountInString(*l) > maxLabelLength {
			return AddressData{}, dErrors.New(dErrors.CodeValidation, "address labels must be at most 100 characters")
		}
	}
	if d.Region == "" || d.City == "" || d.District == "" {
		return AddressData{}, dErrors.New(dErrors.CodeValidation, "region, city and district are required")
	}
	return d, nil
}

// AddressRecord is an account's current address.
type AddressRecord struct {
	AccountID      id.AccountID
	Code           string
	LocalitySuffix string
	Region         string
	City           string
	District       string
	Neighborhood   string
	Point          id.Coordinate
	RegisteredAt   time.Time
}

// NewRecord builds the record for data with its derived code.
func NewRecord(accountID id.AccountID, data AddressData, code codec.Code, now time.Time) *AddressRecord {
	return &AddressRecord{
		AccountID:      accountID,
		Code:           code.String(),
		LocalitySuffix: code.LocalitySuffix,
		Region:         data.Region,
		City:           data.City,
		District:       data.District,
		Neighborhood:   data.Neighborhood,
		Point:          data.Point,
		RegisteredAt:   now,
	}
}

// NextEligibleAt is the first instant an update is allowed. Calendar days are
// counted in UTC so the boundary does not move with the server's zone.
func (r *AddressRecord) NextEligibleAt() time.Time {
	return r.RegisteredAt.UTC().AddDate(0, 0, CooldownDays)
}

// CanUpdate reports whether the cooldown has elapsed at now.
func (r *AddressRecord) CanUpdate(now time.Time) bool {
	return !now.Before(r.NextEligibleAt())
}

// Archive snapshots the record as superseded at now.
func (r *AddressRecord) Archive(now time.Time) HistoryEntry {
	return HistoryEntry{AddressRecord: *r, ArchivedAt: now}
}

// HistoryEntry is an immutable superseded address.
type HistoryEntry struct {
	AddressRecord
	ArchivedAt time.Time
}

// ProfileView is the account profile joined with its current address.
// Address is nil until the account registers one.
type ProfileView struct {
	AccountID   id.AccountID
	PhoneNumber string
	DisplayName string
	CreatedAt   time.Time
	Address     *AddressRecord
}

// RegistrationComplete reports whether the account has an address.
func (v *ProfileView) RegistrationComplete() bool {
	return v.Address != nil
}

// CodePreview is the derived code for a point plus its visualization boxes.
type CodePreview struct {
	Code      codec.Code
	Boxes     [3]codec.TierBox
	Supported bool
}

// CooldownError rejects an update attempted before NextEligibleAt.
type CooldownError struct {
	NextEligibleAt time.Time
}

func (e *CooldownError) Error() string {
	return "address can only be updated once every 30 days; next update available at " +
		e.NextEligibleAt.UTC().Format(time.RFC3339)
}

// Unwrap exposes the coded error so dErrors.HasCode and HTTP mapping work.
func (e *CooldownError) Unwrap() error {
	return dErrors.New(dErrors.CodeUpdateCooldown, e.Error())
}

// ErrorDetails adds the retry instant to the HTTP error body.
func (e *CooldownError) ErrorDetails() map[string]string {
	return map[string]string{
		"next_update_available": e.NextEligibleAt.UTC().Format(time.RFC3339),
	}
}
