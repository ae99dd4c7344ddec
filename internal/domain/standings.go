package domain

import "time"

// GeneralView names the season-wide standings
const GeneralView = "general"

// StandingsEntry represents a single entry in the standings
type StandingsEntry struct {
	Rank          int64   `json:"rank"`
	ParticipantID int64   `json:"participant_id"`
	Name          string  `json:"name,omitempty"`
	Score         float64 `json:"score"`
	Points        int64   `json:"points"`
}

// NotificationKind classifies messages pushed to live clients
type NotificationKind string

const (
	NotificationPriceUpdate NotificationKind = "price_update"
	NotificationStandings   NotificationKind = "standings_update"
	NotificationCritical    NotificationKind = "critical_error"
)

// Notification is a non-blocking message for connected clients
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Sport     Sport            `json:"sport"`
	Message   string           `json:"message,omitempty"`
	Data      interface{}      `json:"data,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
