package domain

import "time"

// RiderCondition marks a rider that cannot race
type RiderCondition string

const (
	ConditionNone        RiderCondition = ""
	ConditionInjured     RiderCondition = "injured"
	ConditionUnavailable RiderCondition = "unavailable"
)

// Rider is a competitor (rider or driver depending on the sport)
type Rider struct {
	ID            int64          `json:"id"`
	Sport         Sport          `json:"sport"`
	Name          string         `json:"name"`
	TeamName      string         `json:"team_name"`
	ConstructorID *int64         `json:"constructor_id,omitempty"`
	BasePrice     int64          `json:"base_price"`
	Price         int64          `json:"price"`
	InitialPrice  int64          `json:"initial_price"`
	Condition     RiderCondition `json:"condition,omitempty"`
}

// Unavailable reports whether the rider carries an active condition
func (r Rider) Unavailable() bool {
	return r.Condition != ConditionNone
}

// Constructor is a team entity
type Constructor struct {
	ID           int64  `json:"id"`
	Sport        Sport  `json:"sport"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	InitialPrice int64  `json:"initial_price"`
}

// ConstructorListing is a constructor together with its derived valuation.
// EffectivePrice is a display value and never replaces Price.
type ConstructorListing struct {
	Constructor
	EffectivePrice        float64 `json:"effective_price"`
	EffectiveInitialPrice float64 `json:"effective_initial_price"`
}

// Race is a round of the championship
type Race struct {
	ID            int64     `json:"id"`
	Sport         Sport     `json:"sport"`
	Round         int       `json:"round"`
	Name          string    `json:"name"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	PriceAdjusted bool      `json:"price_adjusted"`
}

// Closed reports whether the race start lies before now
func (r Race) Closed(now time.Time) bool {
	return r.ScheduledAt.Before(now)
}

// RiderRoundPoints holds the raw points of a rider for one race
type RiderRoundPoints struct {
	RaceID  int64   `json:"race_id"`
	RiderID int64   `json:"rider_id"`
	Total   float64 `json:"total"`
	Main    float64 `json:"main"`
	Sprint  float64 `json:"sprint"`
}

// PriceChange is a single entry of a price update batch
type PriceChange struct {
	ID       int64 `json:"id"`
	OldPrice int64 `json:"old_price"`
	NewPrice int64 `json:"new_price"`
}

// Delta returns the signed price movement
func (c PriceChange) Delta() int64 {
	return c.NewPrice - c.OldPrice
}
