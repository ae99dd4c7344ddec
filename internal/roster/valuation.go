package roster

import (
	"sort"

	"github.com/paddock-market/internal/domain"
)

// Valuate derives the display price of every constructor from its two most
// expensive affiliated riders. The stored constructor price is left as is.
func Valuate(constructors []domain.Constructor, riders []domain.Rider) []domain.ConstructorListing {
	out := make([]domain.ConstructorListing, 0, len(constructors))
	for _, c := range constructors {
		affiliated := AffiliatedRiders(c, riders)
		out = append(out, domain.ConstructorListing{
			Constructor:           c,
			EffectivePrice:        topPairAverage(affiliated, c.Price, func(r domain.Rider) int64 { return r.Price }),
			EffectiveInitialPrice: topPairAverage(affiliated, c.InitialPrice, func(r domain.Rider) int64 { return r.InitialPrice }),
		})
	}
	return out
}

// topPairAverage averages the two highest values. A single rider yields its
// own value; no riders yields the fallback.
func topPairAverage(riders []domain.Rider, fallback int64, value func(domain.Rider) int64) float64 {
	if len(riders) == 0 {
		return float64(fallback)
	}
	prices := make([]int64, len(riders))
	for i, r := range riders {
		prices[i] = value(r)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] > prices[j] })
	if len(prices) == 1 {
		return float64(prices[0])
	}
	return float64(prices[0]+prices[1]) / 2
}
