package domain

import (
	"fmt"
	"math"

	dErrors "sixd/pkg/domain-errors"
)

// Coordinate is a WGS84 point in decimal degrees.
// Invariant (after Validate): both components finite, lat in [-90,90],
// lng in [-180,180].
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate rejects non-finite and out-of-range components with
// CodeInvalidCoordinate.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return dErrors.New(dErrors.CodeInvalidCoordinate, "coordinate must be finite")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return dErrors.New(dErrors.CodeInvalidCoordinate, "latitude must be within [-90, 90]")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return dErrors.New(dErrors.CodeInvalidCoordinate, "longitude must be within [-180, 180]")
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lng)
}
