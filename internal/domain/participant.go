package domain

import "time"

// Participant is a fantasy league member
type Participant struct {
	ID        int64     `json:"id"`
	Sport     Sport     `json:"sport"`
	Name      string    `json:"name"`
	RiderIDs  []int64   `json:"rider_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TeamSnapshot is an immutable roster submission for one race
type TeamSnapshot struct {
	ID            int64     `json:"id"`
	Sport         Sport     `json:"sport"`
	ParticipantID int64     `json:"participant_id"`
	RaceID        int64     `json:"race_id"`
	RiderIDs      []int64   `json:"rider_ids"`
	ConstructorID *int64    `json:"constructor_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
