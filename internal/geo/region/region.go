// Package region decides whether a coordinate lies in the supported country.
//
// The check is two-stage: the coordinate must fall inside the country's
// bounding rectangle and outside every named exclusion zone. Zones carve out
// water that the rectangle covers. Rectangles are a known approximation and
// accept some border points; the bounds are configuration, not constants.
package region

import (
	"fmt"

	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
)

// Rect is an axis-aligned lat/lng rectangle, edges included.
type Rect struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

// Contains reports whether c lies in r, edges included.
func (r Rect) Contains(c id.Coordinate) bool {
	return c.Lat >= r.MinLat && c.Lat <= r.MaxLat && c.Lng >= r.MinLng && c.Lng <= r.MaxLng
}

func (r Rect) validate() error {
	if r.MinLat >= r.MaxLat || r.MinLng >= r.MaxLng {
		return fmt.Errorf("rectangle min must be below max: %+v", r)
	}
	if err := (id.Coordinate{Lat: r.MinLat, Lng: r.MinLng}).Validate(); err != nil {
		return err
	}
	return (id.Coordinate{Lat: r.MaxLat, Lng: r.MaxLng}).Validate()
}

// Zone is a named exclusion rectangle inside the envelope.
type Zone struct {
	Name string `yaml:"name"`
	Rect `yaml:",inline"`
}

// Bounds describes one supported country.
type Bounds struct {
	Country    string `yaml:"country"`
	Envelope   Rect   `yaml:"envelope"`
	Exclusions []Zone `yaml:"exclusions"`
}

// Validate checks that every rectangle is well formed.
func (b Bounds) Validate() error {
	if err := b.Envelope.validate(); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	for _, z := range b.Exclusions {
		if z.Name == "" {
			return fmt.Errorf("exclusion zone requires a name")
		}
		if err := z.validate(); err != nil {
			return fmt.Errorf("exclusion %s: %w", z.Name, err)
		}
	}
	return nil
}

// SomaliaBounds is the built-in placeholder envelope for Somalia, with the
// Indian Ocean south-east of the mainland carved out.
func SomaliaBounds() Bounds {
	return Bounds{
		Country:  "SO",
		Envelope: Rect{MinLat: -1.7, MaxLat: 12.0, MinLng: 40.9, MaxLng: 51.5},
		Exclusions: []Zone{
			{Name: "indian_ocean_southeast", Rect: Rect{MinLat: -1.7, MaxLat: 4.0, MinLng: 47.5, MaxLng: 51.5}},
		},
	}
}

// Validator answers region membership for one Bounds. It holds no mutable
// state and is safe for concurrent use.
type Validator struct {
	bounds Bounds
}

// New builds a Validator after checking the bounds.
func New(b Bounds) (*Validator, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &Validator{bounds: b}, nil
}

// Default returns a Validator over SomaliaBounds.
func Default() *Validator {
	return &Validator{bounds: SomaliaBounds()}
}

// Bounds returns the configured bounds.
func (v *Validator) Bounds() Bounds {
	return v.bounds
}

// IsSupported reports whether c is inside the envelope and outside every
// exclusion zone. Invalid coordinates are never supported.
func (v *Validator) IsSupported(c id.Coordinate) bool {
	if c.Validate() != nil {
		return false
	}
	_, ok := v.classify(c)
	return ok
}

// Check returns nil for supported coordinates, CodeInvalidCoordinate for
// malformed ones and CodeUnsupportedRegion otherwise.
func (v *Validator) Check(c id.Coordinate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	zone, ok := v.classify(c)
	if ok {
		return nil
	}
	if zone != "" {
		return dErrors.New(dErrors.CodeUnsupportedRegion, "location falls in excluded area "+zone)
	}
	return dErrors.New(dErrors.CodeUnsupportedRegion, "location is outside the supported country")
}

// classify returns ok=true for supported points; otherwise the name of the
// exclusion zone hit, or "" when outside the envelope.
func (v *Validator) classify(c id.Coordinate) (string, bool) {
	if !v.bounds.Envelope.Contains(c) {
		return "", false
	}
	for _, z := range v.bounds.Exclusions {
		if z.Contains(c) {
			return z.Name, false
		}
	}
	return "", true
}
