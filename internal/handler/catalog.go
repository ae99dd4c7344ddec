package handler

import "net/http"

// ListRiders returns the riders of a sport
func (h *Handler) ListRiders(w http.ResponseWriter, r *http.Request) {
	riders, err := h.services.Catalog.Riders(r.Context(), sportFrom(r))
	if err != nil {
		h.writeServiceError(w, err, "list riders")
		return
	}
	h.writeSuccess(w, riders)
}

// ListConstructors returns the constructors of a sport with derived prices
func (h *Handler) ListConstructors(w http.ResponseWriter, r *http.Request) {
	constructors, err := h.services.Catalog.Constructors(r.Context(), sportFrom(r))
	if err != nil {
		h.writeServiceError(w, err, "list constructors")
		return
	}
	h.writeSuccess(w, constructors)
}

// ListRaces returns the calendar of a sport
func (h *Handler) ListRaces(w http.ResponseWriter, r *http.Request) {
	races, err := h.services.Catalog.Races(r.Context(), sportFrom(r))
	if err != nil {
		h.writeServiceError(w, err, "list races")
		return
	}
	h.writeSuccess(w, races)
}
