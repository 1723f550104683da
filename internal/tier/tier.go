// Package tier derives an account's loyalty tier from its highest-points watermark.
// It is the only place in the codebase where that mapping lives.
package tier

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is an ordered loyalty rank.
type Tier string

const (
	Bronze Tier = "bronze"
	Silver Tier = "silver"
	Gold   Tier = "gold"
)

// Watermark thresholds, inclusive.
const (
	SilverThreshold int64 = 500
	GoldThreshold   int64 = 1000
)

// ErrUnknownTier is returned by Parse for values outside Bronze/Silver/Gold.
var ErrUnknownTier = errors.New("unknown tier")

// For maps a highest-points watermark to its tier.
func For(highestPoints int64) Tier {
	switch {
	case highestPoints >= GoldThreshold:
		return Gold
	case highestPoints >= SilverThreshold:
		return Silver
	default:
		return Bronze
	}
}

// Rank orders tiers: Bronze=1 < Silver=2 < Gold=3. Unknown values rank 0.
func (t Tier) Rank() int {
	switch t {
	case Bronze:
		return 1
	case Silver:
		return 2
	case Gold:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// Meets reports whether t satisfies a reward's minimum tier. A nil minimum is always met.
func (t Tier) Meets(minimum *Tier) bool {
	if minimum == nil {
		return true
	}
	return t.Rank() >= minimum.Rank()
}

func (t Tier) String() string {
	return string(t)
}

// Parse converts a case-insensitive name into a Tier.
func Parse(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}
