package cache

import (
	"time"

	"github.com/google/uuid"

	"sixd/internal/address/models"
	id "sixd/pkg/domain"
)

// viewEntry is the JSON shape stored in Redis. It is versioned by key prefix;
// change the prefix when the shape changes.
type viewEntry struct {
	AccountID   uuid.UUID    `json:"account_id"`
	PhoneNumber string       `json:"phone_number"`
	DisplayName string       `json:"display_name"`
	CreatedAt   time.Time    `json:"created_at"`
	Address     *recordEntry `json:"address,omitempty"`
}

type recordEntry struct {
	Code           string    `json:"code"`
	LocalitySuffix string    `json:"locality_suffix"`
	Region         string    `json:"region"`
	City           string    `json:"city"`
	District       string    `json:"district"`
	Neighborhood   string    `json:"neighborhood"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	RegisteredAt   time.Time `json:"registered_at"`
}

func fromView(v *models.ProfileView) viewEntry {
	e := viewEntry{
		AccountID:   uuid.UUID(v.AccountID),
		PhoneNumber: v.PhoneNumber,
		DisplayName: v.DisplayName,
		CreatedAt:   v.CreatedAt,
	}
	if r := v.Address; r != nil {
		e.Address = &recordEntry{
			Code:           r.Code,
			LocalitySuffix: r.LocalitySuffix,
			Region:         r.Region,
			City:           r.City,
			District:       r.District,
			Neighborhood:   r.Neighborhood,
			Lat:            r.Point.Lat,
			Lng:            r.Point.Lng,
			RegisteredAt:   r.RegisteredAt,
		}
	}
	return e
}

func (e viewEntry) toView() *models.ProfileView {
	accountID := id.AccountID(e.AccountID)
	v := &models.ProfileView{
		AccountID:   accountID,
		PhoneNumber: e.PhoneNumber,
		DisplayName: e.DisplayName,
		CreatedAt:   e.CreatedAt,
	}
	if r := e.Address; r != nil {
		v.Address = &models.AddressRecord{
			AccountID:      accountID,
			Code:           r.Code,
			LocalitySuffix: r.LocalitySuffix,
			Region:         r.Region,
			City:           r.City,
			District:       r.District,
			Neighborhood:   r.Neighborhood,
			Point:          id.Coordinate{Lat: r.Lat, Lng: r.Lng},
			RegisteredAt:   r.RegisteredAt,
		}
	}
	return v
}
