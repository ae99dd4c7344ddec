// Package pricing re-prices riders and constructors after races close,
// based on how many participants selected them.
package pricing

// Tier is a popularity bucket
type Tier string

const (
	TierDominant     Tier = "dominant"
	TierVeryPopular  Tier = "very_popular"
	TierPopular      Tier = "popular"
	TierDifferential Tier = "differential"
	TierUnpopular    Tier = "unpopular"
	// TierFrozen marks riders with an active condition; their price does not move.
	TierFrozen Tier = "frozen"
)

// Popularity thresholds in percent; a tier applies strictly above its threshold.
const (
	DominantThreshold    = 75
	VeryPopularThreshold = 50
	PopularThreshold     = 25
)

// Price units
const (
	DominantIncrease    int64 = 30
	VeryPopularIncrease int64 = 20
	PopularIncrease     int64 = 10
	DecreaseStep        int64 = 10
)

// Percentage returns the share of qualifying participants that selected an entity
func Percentage(selections, qualifying int) float64 {
	if qualifying == 0 {
		return 0
	}
	return float64(selections) / float64(qualifying) * 100
}

// RiderTier buckets a rider. Comparisons use integers. A share of exactly
// 75 percent is popular, not very popular: the very popular band is open at
// both ends.
func RiderTier(selections, qualifying int) Tier {
	switch {
	case above(selections, qualifying, DominantThreshold):
		return TierDominant
	case above(selections, qualifying, VeryPopularThreshold) && !equal(selections, qualifying, DominantThreshold):
		return TierVeryPopular
	case above(selections, qualifying, PopularThreshold):
		return TierPopular
	case selections > 0 && qualifying > 0:
		return TierDifferential
	default:
		return TierUnpopular
	}
}

// ConstructorTier buckets a constructor. There is no differential tier:
// anything picked but not popular keeps its price.
func ConstructorTier(selections, qualifying int) Tier {
	t := RiderTier(selections, qualifying)
	if t == TierDifferential {
		return ""
	}
	return t
}

// Increase returns the price increase of a tier
func (t Tier) Increase() int64 {
	switch t {
	case TierDominant:
		return DominantIncrease
	case TierVeryPopular:
		return VeryPopularIncrease
	case TierPopular:
		return PopularIncrease
	default:
		return 0
	}
}

func above(selections, qualifying, threshold int) bool {
	if qualifying == 0 {
		return false
	}
	return selections*100 > threshold*qualifying
}

func equal(selections, qualifying, threshold int) bool {
	return qualifying > 0 && selections*100 == threshold*qualifying
}
