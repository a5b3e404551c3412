package handler

import (
	"time"

	"sixd/internal/address/models"
	"sixd/internal/geo/codec"
)

// AddressResponse is the JSON form of a current address.
type AddressResponse struct {
	Code                string    `json:"code"`
	LocalitySuffix      string    `json:"locality_suffix"`
	Region              string    `json:"region"`
	City                string    `json:"city"`
	District            string    `json:"district"`
	Neighborhood        string    `json:"neighborhood"`
	Lat                 float64   `json:"lat"`
	Lng                 float64   `json:"lng"`
	RegisteredAt        time.Time `json:"registered_at"`
	NextUpdateAvailable time.Time `json:"next_update_available"`
}

// HistoryEntryResponse is one superseded address.
type HistoryEntryResponse struct {
	Code           string    `json:"code"`
	LocalitySuffix string    `json:"locality_suffix"`
	Region         string    `json:"region"`
	City           string    `json:"city"`
	District       string    `json:"district"`
	Neighborhood   string    `json:"neighborhood"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	RegisteredAt   time.Time `json:"registered_at"`
	ArchivedAt     time.Time `json:"archived_at"`
}

type HistoryResponse struct {
	Entries []HistoryEntryResponse `json:"entries"`
}

// ProfileResponse is GET /v1/me and the profile part of auth responses.
type ProfileResponse struct {
	AccountID            string           `json:"account_id"`
	PhoneNumber          string           `json:"phone_number"`
	DisplayName          string           `json:"display_name"`
	CreatedAt            time.Time        `json:"created_at"`
	RegistrationComplete bool             `json:"registration_complete"`
	Address              *AddressResponse `json:"address"`
}

// PreviewResponse is POST /v1/codes/derive.
type PreviewResponse struct {
	Code           string          `json:"code"`
	Tier1          string          `json:"tier1"`
	Tier2          string          `json:"tier2"`
	Tier3          string          `json:"tier3"`
	LocalitySuffix string          `json:"locality_suffix"`
	Supported      bool            `json:"supported"`
	Boxes          []codec.TierBox `json:"boxes"`
}

// RegionCheckResponse is POST /v1/regions/check.
type RegionCheckResponse struct {
	Supported bool   `json:"supported"`
	Reason    string `json:"reason,omitempty"`
}

func FromRecord(r *models.AddressRecord) *AddressResponse {
	if r == nil {
		return nil
	}
	return &AddressResponse{
		Code:                r.Code,
		LocalitySuffix:      r.LocalitySuffix,
		Region:              r.Region,
		City:                r.City,
		District:            r.District,
		Neighborhood:        r.Neighborhood,
		Lat:                 r.Point.Lat,
		Lng:                 r.Point.Lng,
		RegisteredAt:        r.RegisteredAt.UTC(),
		NextUpdateAvailable: r.NextEligibleAt(),
	}
}

// FromView converts a profile view for the wire.
func FromView(v *models.ProfileView) *ProfileResponse {
	return &ProfileResponse{
		AccountID:            v.AccountID.String(),
		PhoneNumber:          v.PhoneNumber,
		DisplayName:          v.DisplayName,
		CreatedAt:            v.CreatedAt.UTC(),
		RegistrationComplete: v.RegistrationComplete(),
		Address:              FromRecord(v.Address),
	}
}

func FromHistory(entries []models.HistoryEntry) *HistoryResponse {
	out := &HistoryResponse{Entries: make([]HistoryEntryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, HistoryEntryResponse{
			Code:           e.Code,
			LocalitySuffix: e.LocalitySuffix,
			Region:         e.Region,
			City:           e.City,
			District:       e.District,
			Neighborhood:   e.Neighborhood,
			Lat:            e.Point.Lat,
			Lng:            e.Point.Lng,
			RegisteredAt:   e.RegisteredAt.UTC(),
			ArchivedAt:     e.ArchivedAt.UTC(),
		})
	}
	return out
}

func FromPreview(p *models.CodePreview) *PreviewResponse {
	return &PreviewResponse{
		Code:           p.Code.String(),
		Tier1:          p.Code.Tier1,
		Tier2:          p.Code.Tier2,
		Tier3:          p.Code.Tier3,
		LocalitySuffix: p.Code.LocalitySuffix,
		Supported:      p.Supported,
		Boxes:          p.Boxes[:],
	}
}
