package codec

import (
	"math"

	id "sixd/pkg/domain"
)

// Tier names one of the three nested precision levels of a code.
type Tier int

const (
	TierCoarse Tier = iota + 1 // 1e-2 degree, about 1.1 km
	TierMedium                 // 1e-3 degree, about 110 m
	TierFine                   // 1e-4 degree, about 11 m
)

func (t Tier) String() string {
	switch t {
	case TierCoarse:
		return "tier1"
	case TierMedium:
		return "tier2"
	case TierFine:
		return "tier3"
	default:
		return "unknown"
	}
}

// scale is the number of grid cells per degree for the tier.
func (t Tier) scale() float64 {
	return math.Pow10(int(t) + 1)
}

// Resolution is the tier's cell edge in degrees.
func (t Tier) Resolution() float64 {
	return 1 / t.scale()
}

// Box is an axis-aligned rectangle in decimal degrees.
type Box struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Contains reports whether c lies in the box, edges included.
func (b Box) Contains(c id.Coordinate) bool {
	return c.Lat >= b.South && c.Lat <= b.North && c.Lng >= b.West && c.Lng <= b.East
}

// TierBox is the grid cell holding a coordinate at one tier.
type TierBox struct {
	Tier       Tier    `json:"-"`
	Name       string  `json:"tier"`
	Resolution float64 `json:"resolution"`
	Box        Box     `json:"bounds"`
}

// TierBoxes returns the coarse, medium and fine cells containing c. Each
// cell's south-west corner is c floored to the tier's grid.
func TierBoxes(c id.Coordinate) ([3]TierBox, error) {
	var out [3]TierBox
	if err := c.Validate(); err != nil {
		return out, err
	}
	for i, t := range []Tier{TierCoarse, TierMedium, TierFine} {
		scale := t.scale()
		cell := t.Resolution()
		south := math.Floor(c.Lat*scale) / scale
		west := math.Floor(c.Lng*scale) / scale
		out[i] = TierBox{
			Tier:       t,
			Name:       t.String(),
			Resolution: cell,
			Box: Box{
				South: south,
				West:  west,
				North: south + cell,
				East:  west + cell,
			},
		}
	}
	return out, nil
}
