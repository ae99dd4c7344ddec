package domain

import "strings"

// Sport identifies the championship a catalog belongs to
type Sport string

const (
	SportMotoGP Sport = "motogp"
	SportF1     Sport = "f1"
)

// ParseSport normalizes a sport identifier taken from a URL or a message
func ParseSport(s string) (Sport, error) {
	switch Sport(strings.ToLower(strings.TrimSpace(s))) {
	case SportMotoGP:
		return SportMotoGP, nil
	case SportF1:
		return SportF1, nil
	default:
		return "", ErrUnknownSport
	}
}

// Actor is the caller identity handed explicitly to privileged operations
type Actor struct {
	ID    string `json:"id"`
	Admin bool   `json:"admin"`
}

// SystemActor is used by background jobs that run with administrative rights
var SystemActor = Actor{ID: "system", Admin: true}
