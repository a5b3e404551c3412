// Package codec turns coordinates into 6D address codes and the nested tier
// boxes drawn around them. Everything here is pure and safe for concurrent use.
//
// A code is built from the decimal digits of |lat| and |lng| at the 10^-1 ..
// 10^-4 places. It repeats every 0.1 degree, so it only distinguishes points
// within one locality; the locality suffix carries the 10^-1 digits.
package codec

import (
	"fmt"
	"math"

	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
)

// Code is a derived 6D address code.
type Code struct {
	Tier1          string `json:"tier1"`
	Tier2          string `json:"tier2"`
	Tier3          string `json:"tier3"`
	LocalitySuffix string `json:"locality_suffix"`
}

// String renders the code as "t1-t2-t3" without the suffix.
func (c Code) String() string {
	return c.Tier1 + "-" + c.Tier2 + "-" + c.Tier3
}

// Derive computes the 6D code for a coordinate.
func Derive(c id.Coordinate) (Code, error) {
	if err := c.Validate(); err != nil {
		return Code{}, err
	}
	lat, lng := math.Abs(c.Lat), math.Abs(c.Lng)
	return Code{
		Tier1:          pair(lat, lng, 2),
		Tier2:          pair(lat, lng, 3),
		Tier3:          pair(lat, lng, 4),
		LocalitySuffix: pair(lat, lng, 1),
	}, nil
}

// Parse rebuilds a Code from its string form and suffix. Parsing cannot
// recover the coordinate; the encoding is lossy.
func Parse(code, suffix string) (Code, error) {
	if len(code) != 8 || code[2] != '-' || code[5] != '-' {
		return Code{}, dErrors.New(dErrors.CodeInvalidInput, "code must look like 12-34-56")
	}
	out := Code{Tier1: code[0:2], Tier2: code[3:5], Tier3: code[6:8], LocalitySuffix: suffix}
	for _, group := range []string{out.Tier1, out.Tier2, out.Tier3, out.LocalitySuffix} {
		if !isDigitPair(group) {
			return Code{}, dErrors.New(dErrors.CodeInvalidInput, "code groups and suffix must be two digits")
		}
	}
	return out, nil
}

// digit returns floor(v * 10^place) mod 10 for v >= 0.
func digit(v float64, place int) int {
	return int(math.Floor(v*math.Pow10(place))) % 10
}

func pair(lat, lng float64, place int) string {
	return fmt.Sprintf("%d%d", digit(lat, place), digit(lng, place))
}

func isDigitPair(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}
