package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TeamSubmission is a roster submitted by a participant for a race
type TeamSubmission struct {
	RaceID        int64   `json:"race_id" validate:"required,gt=0"`
	RiderIDs      []int64 `json:"rider_ids" validate:"required,min=1,unique,dive,gt=0"`
	ConstructorID int64   `json:"constructor_id" validate:"required,gt=0"`
}

// Validate checks the structural rules of the submission
func (s *TeamSubmission) Validate() error {
	return validate.Struct(s)
}

// PointsValue is a points figure entered by hand. It accepts JSON numbers
// and strings; anything that does not parse becomes zero.
type PointsValue float64

// UnmarshalJSON implements json.Unmarshaler
func (p *PointsValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*p = 0
			return nil
		}
		*p = ParsePoints(s)
		return nil
	}
	*p = ParsePoints(string(data))
	return nil
}

// ParsePoints coerces free-form numeric input to a finite float, zero on failure
func ParsePoints(s string) PointsValue {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return PointsValue(v)
}

// PointsInput is one row of admin points entry or of a bulk import
type PointsInput struct {
	RiderID int64       `json:"rider_id" validate:"required,gt=0"`
	Main    PointsValue `json:"main"`
	Sprint  PointsValue `json:"sprint"`
}

// ToRoundPoints converts the input to a stored record; total is main plus sprint
func (in PointsInput) ToRoundPoints(raceID int64) RiderRoundPoints {
	return RiderRoundPoints{
		RaceID:  raceID,
		RiderID: in.RiderID,
		Main:    float64(in.Main),
		Sprint:  float64(in.Sprint),
		Total:   float64(in.Main) + float64(in.Sprint),
	}
}

// PointsImport is a batch of points for one race, as published on the import topic
type PointsImport struct {
	Sport  Sport         `json:"sport" validate:"required"`
	RaceID int64         `json:"race_id" validate:"required,gt=0"`
	Points []PointsInput `json:"points" validate:"required,min=1,dive"`
}

// Validate checks the structural rules of the import
func (p *PointsImport) Validate() error {
	return validate.Struct(p)
}

// CreateRaceRequest represents a request to add a race to the calendar
type CreateRaceRequest struct {
	Round       int       `json:"round" validate:"required,gt=0"`
	Name        string    `json:"name" validate:"required,max=128"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// Validate checks the request
func (r *CreateRaceRequest) Validate() error {
	return validate.Struct(r)
}

// CreateParticipantRequest represents a request to register a participant
type CreateParticipantRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// Validate checks the request
func (r *CreateParticipantRequest) Validate() error {
	return validate.Struct(r)
}

// RiderPatch is an admin edit of a rider. Nil fields are left untouched.
// ClearConstructor drops the constructor id so the rider is affiliated by
// team name again.
type RiderPatch struct {
	Price            *int64          `json:"price,omitempty" validate:"omitempty,gte=0"`
	Condition        *RiderCondition `json:"condition,omitempty" validate:"omitempty,oneof=injured unavailable none"`
	TeamName         *string         `json:"team_name,omitempty"`
	ConstructorID    *int64          `json:"constructor_id,omitempty" validate:"omitempty,gt=0"`
	ClearConstructor bool            `json:"clear_constructor,omitempty" validate:"excluded_with=ConstructorID"`
}

// Validate checks the patch
func (p *RiderPatch) Validate() error {
	return validate.Struct(p)
}

// Apply returns a copy of the rider with the patch applied
func (p RiderPatch) Apply(r Rider) Rider {
	if p.Price != nil {
		r.Price = *p.Price
	}
	if p.Condition != nil {
		if *p.Condition == "none" {
			r.Condition = ConditionNone
		} else {
			r.Condition = *p.Condition
		}
	}
	if p.TeamName != nil {
		r.TeamName = *p.TeamName
	}
	if p.ConstructorID != nil {
		id := *p.ConstructorID
		r.ConstructorID = &id
	}
	if p.ClearConstructor {
		r.ConstructorID = nil
	}
	return r
}
