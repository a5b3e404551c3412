package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sixd/internal/geo/codec"
	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
)

func record(t0 time.Time) *AddressRecord {
	code, _ := codec.Derive(id.Coordinate{Lat: 2.0469, Lng: 45.3182})
	return NewRecord(id.NewAccountID(), AddressData{Point: id.Coordinate{Lat: 2.0469, Lng: 45.3182}}, code, t0)
}

func TestNewRecordUsesDerivedCode(t *testing.T) {
	r := record(time.Now())
	assert.Equal(t, "41-68-92", r.Code)
	assert.Equal(t, "03", r.LocalitySuffix)
}

func TestCooldownBoundary(t *testing.T) {
	t0 := time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC)
	r := record(t0)

	assert.Equal(t, t0.AddDate(0, 0, 30), r.NextEligibleAt())
	assert.False(t, r.CanUpdate(t0.AddDate(0, 0, 29)))
	assert.False(t, r.CanUpdate(t0.AddDate(0, 0, 30).Add(-time.Nanosecond)))
	assert.True(t, r.CanUpdate(t0.AddDate(0, 0, 30)))
	assert.True(t, r.CanUpdate(t0.AddDate(0, 0, 45)))
}

func TestCooldownCountsCalendarDaysInUTC(t *testing.T) {
	mogadishu := time.FixedZone("EAT", 3*60*60)
	t0 := time.Date(2026, 3, 1, 1, 0, 0, 0, mogadishu)
	r := record(t0)
	assert.True(t, r.NextEligibleAt().Equal(t0.AddDate(0, 0, 30)))
	assert.Equal(t, time.UTC, r.NextEligibleAt().Location())
}

func TestArchiveSnapshotsRecord(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := record(t0)
	archivedAt := t0.AddDate(0, 0, 31)

	entry := r.Archive(archivedAt)
	r.Code = "00-00-00"

	assert.Equal(t, "41-68-92", entry.Code)
	assert.Equal(t, t0, entry.RegisteredAt)
	assert.Equal(t, archivedAt, entry.ArchivedAt)
}

func TestCooldownError(t *testing.T) {
	next := time.Date(2026, 2, 14, 14, 30, 0, 0, time.UTC)
	var err error = &CooldownError{NextEligibleAt: next}

	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpdateCooldown))
	assert.Equal(t, "2026-02-14T14:30:00Z", err.(*CooldownError).ErrorDetails()["next_update_available"])

	var ce *CooldownError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, next, ce.NextEligibleAt)
}

func TestNormalizeLabels(t *testing.T) {
	d, err := AddressData{Region: "  Banaadir ", City: "Mogadishu", District: " Hodan"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "Banaadir", d.Region)
	assert.Equal(t, "Hodan", d.District)
	assert.Empty(t, d.Neighborhood)

	for name, data := range map[string]AddressData{
		"region":   {City: "Mogadishu", District: "Hodan"},
		"city":     {Region: "Banaadir", City: "  ", District: "Hodan"},
		"district": {Region: "Banaadir", City: "Mogadishu"},
	} {
		_, err := data.Normalize()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "missing %s", name)
	}

	_, err = AddressData{Neighborhood: strings.Repeat("x", 101)}.Normalize()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
