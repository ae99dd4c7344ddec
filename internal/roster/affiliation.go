package roster

import (
	"strings"

	"github.com/paddock-market/internal/domain"
)

// MatchByID reports whether the rider references the constructor by id.
// The second result is false when the rider carries no constructor id.
func MatchByID(r domain.Rider, c domain.Constructor) (matched, applicable bool) {
	if r.ConstructorID == nil {
		return false, false
	}
	return *r.ConstructorID == c.ID, true
}

// MatchByName compares the rider's team name with the constructor name,
// ignoring case and surrounding whitespace.
func MatchByName(r domain.Rider, c domain.Constructor) bool {
	team := strings.TrimSpace(r.TeamName)
	if team == "" {
		return false
	}
	return strings.EqualFold(team, strings.TrimSpace(c.Name))
}

// Affiliated applies the id match when the rider has a constructor id and
// falls back to the team name otherwise.
func Affiliated(r domain.Rider, c domain.Constructor) bool {
	if matched, ok := MatchByID(r, c); ok {
		return matched
	}
	return MatchByName(r, c)
}

// AffiliatedRiders returns the riders currently affiliated with the constructor
func AffiliatedRiders(c domain.Constructor, riders []domain.Rider) []domain.Rider {
	var out []domain.Rider
	for _, r := range riders {
		if Affiliated(r, c) {
			out = append(out, r)
		}
	}
	return out
}
