package handler

import (
	"net/http"
	"time"

	"github.com/paddock-market/internal/domain"
)

// CreateParticipant registers a participant
func (h *Handler) CreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateParticipantRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	participant, err := h.services.Catalog.CreateParticipant(r.Context(), actorFrom(r), sportFrom(r), req)
	if err != nil {
		h.writeServiceError(w, err, "create participant")
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    participant,
	})
}

// CreateRace adds a race to the calendar
func (h *Handler) CreateRace(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRaceRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	race, err := h.services.Catalog.CreateRace(r.Context(), actorFrom(r), sportFrom(r), req)
	if err != nil {
		h.writeServiceError(w, err, "create race")
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    race,
	})
}

// RescheduleRace corrects the start time of a race
func (h *Handler) RescheduleRace(w http.ResponseWriter, r *http.Request) {
	raceID, err := idParam(r, "raceID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.services.Catalog.RescheduleRace(r.Context(), actorFrom(r), sportFrom(r), raceID, req.ScheduledAt); err != nil {
		h.writeServiceError(w, err, "reschedule race")
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"race_id":      raceID,
		"scheduled_at": req.ScheduledAt.UTC(),
	})
}

// ImportPoints stores the rider points of a race
func (h *Handler) ImportPoints(w http.ResponseWriter, r *http.Request) {
	raceID, err := idParam(r, "raceID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Points []domain.PointsInput `json:"points"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	stored, err := h.services.Catalog.ImportPoints(r.Context(), actorFrom(r), domain.PointsImport{
		Sport:  sportFrom(r),
		RaceID: raceID,
		Points: req.Points,
	})
	if err != nil {
		h.writeServiceError(w, err, "import points")
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"race_id":  raceID,
		"received": len(req.Points),
		"stored":   stored,
	})
}

// UpdateRider applies an admin patch to a rider
func (h *Handler) UpdateRider(w http.ResponseWriter, r *http.Request) {
	riderID, err := idParam(r, "riderID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var patch domain.RiderPatch
	if err := decode(r, &patch); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	rider, err := h.services.Catalog.UpdateRider(r.Context(), actorFrom(r), sportFrom(r), riderID, patch)
	if err != nil {
		h.writeServiceError(w, err, "update rider")
		return
	}
	h.writeSuccess(w, rider)
}

// PendingRaces lists closed races still waiting for a price adjustment
func (h *Handler) PendingRaces(w http.ResponseWriter, r *http.Request) {
	races, err := h.services.Market.PendingRaces(r.Context(), sportFrom(r))
	if err != nil {
		h.writeServiceError(w, err, "list pending races")
		return
	}
	h.writeSuccess(w, races)
}

// RunPriceAdjustment triggers a price adjustment run and returns its report
func (h *Handler) RunPriceAdjustment(w http.ResponseWriter, r *http.Request) {
	run, err := h.services.Market.RunPriceAdjustment(r.Context(), actorFrom(r), sportFrom(r))
	if err != nil {
		h.writeServiceError(w, err, "run price adjustment")
		return
	}
	h.writeSuccess(w, run)
}
