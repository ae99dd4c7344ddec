package handler

import (
	"net/http"
	"strconv"

	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/service"
)

// GetTeam returns the current roster of a participant
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	participantID, err := idParam(r, "participantID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	team, err := h.services.Scoring.CurrentTeam(r.Context(), sportFrom(r), participantID)
	if err != nil {
		h.writeServiceError(w, err, "get team")
		return
	}
	h.writeSuccess(w, team)
}

// SubmitTeam records a roster for an upcoming race
func (h *Handler) SubmitTeam(w http.ResponseWriter, r *http.Request) {
	participantID, err := idParam(r, "participantID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var sub domain.TeamSubmission
	if err := decode(r, &sub); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	snapshot, err := h.services.Teams.SubmitTeam(r.Context(), sportFrom(r), participantID, sub)
	if err != nil {
		h.writeServiceError(w, err, "submit team")
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    snapshot,
	})
}

// GetRaceScore returns the score breakdown of a participant for one race
func (h *Handler) GetRaceScore(w http.ResponseWriter, r *http.Request) {
	participantID, err := idParam(r, "participantID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	raceID, err := idParam(r, "raceID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	breakdown, err := h.services.Scoring.RaceScore(r.Context(), sportFrom(r), participantID, raceID)
	if err != nil {
		h.writeServiceError(w, err, "compute race score")
		return
	}
	h.writeSuccess(w, breakdown)
}

// GetGeneralScore returns the season score of a participant
func (h *Handler) GetGeneralScore(w http.ResponseWriter, r *http.Request) {
	participantID, err := idParam(r, "participantID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	general, err := h.services.Scoring.GeneralScore(r.Context(), sportFrom(r), participantID)
	if err != nil {
		h.writeServiceError(w, err, "compute general score")
		return
	}
	h.writeSuccess(w, general)
}

// GetStandings returns ranked participants. ?race=<id> selects one race,
// otherwise the season table is returned.
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	view, err := service.ParseView(r.URL.Query().Get("race"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.services.Scoring.Standings(r.Context(), sportFrom(r), view, limit)
	if err != nil {
		h.writeServiceError(w, err, "compute standings")
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"view":    view,
		"entries": entries,
	})
}
