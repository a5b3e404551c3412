package handler

import (
	"strings"

	"sixd/internal/address/models"
	"sixd/internal/geo/codec"
	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
)

// CoordinateRequest is the body of the pre-auth code and region tools.
type CoordinateRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`

	parsed id.Coordinate
}

// Validate implements httputil.Validatable.
func (r *CoordinateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	c, err := parseCoordinate(r.Lat, r.Lng)
	if err != nil {
		return err
	}
	r.parsed = c
	return nil
}

// Coordinate returns the validated point.
func (r *CoordinateRequest) Coordinate() id.Coordinate {
	return r.parsed
}

// AddressRequest is the body of POST and PUT /v1/me/address.
//
// Code is optional. The stored code is always derived from lat/lng; a
// supplied code is only checked against that derivation.
type AddressRequest struct {
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	Code         string   `json:"code,omitempty"`
	Region       string   `json:"region"`
	City         string   `json:"city"`
	District     string   `json:"district"`
	Neighborhood string   `json:"neighborhood"`

	parsed models.AddressData
}

// Validate implements httputil.Validatable.
func (r *AddressRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	data, err := r.toData()
	if err != nil {
		return err
	}
	r.parsed = data
	return nil
}

// Data returns the validated address.
func (r *AddressRequest) Data() models.AddressData {
	return r.parsed
}

func (r *AddressRequest) toData() (models.AddressData, error) {
	c, err := parseCoordinate(r.Lat, r.Lng)
	if err != nil {
		return models.AddressData{}, err
	}

	if raw := strings.TrimSpace(r.Code); raw != "" {
		derived, err := codec.Derive(c)
		if err != nil {
			return models.AddressData{}, err
		}
		claimed, err := codec.Parse(raw, derived.LocalitySuffix)
		if err != nil {
			return models.AddressData{}, err
		}
		if claimed != derived {
			return models.AddressData{}, dErrors.New(dErrors.CodeValidation, "code does not match the submitted coordinates")
		}
	}

	return models.AddressData{
		Point:        c,
		Region:       r.Region,
		City:         r.City,
		District:     r.District,
		Neighborhood: r.Neighborhood,
	}.Normalize()
}

// ParseAddress validates an address embedded in another request body.
func ParseAddress(r *AddressRequest) (models.AddressData, error) {
	if r == nil {
		return models.AddressData{}, dErrors.New(dErrors.CodeValidation, "address is required")
	}
	if err := r.Validate(); err != nil {
		return models.AddressData{}, err
	}
	return r.parsed, nil
}

func parseCoordinate(lat, lng *float64) (id.Coordinate, error) {
	if lat == nil || lng == nil {
		return id.Coordinate{}, dErrors.New(dErrors.CodeValidation, "lat and lng are required")
	}
	c := id.Coordinate{Lat: *lat, Lng: *lng}
	if err := c.Validate(); err != nil {
		return id.Coordinate{}, err
	}
	return c, nil
}
