package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/service"
	"github.com/paddock-market/internal/websocket"
)

// AdminTokenHeader carries the administrative token
const AdminTokenHeader = "X-Admin-Token"

// Services groups the application services exposed over HTTP
type Services struct {
	Catalog *service.CatalogService
	Scoring *service.ScoringService
	Teams   *service.TeamService
	Market  *service.MarketService
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the fantasy API
type Handler struct {
	services   Services
	hub        *websocket.Hub
	adminToken string
	checks     map[string]Pinger
	logger     *slog.Logger
}

// NewHandler creates a new HTTP handler. An empty admin token disables
// administrative access.
func NewHandler(services Services, hub *websocket.Hub, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		services:   services,
		hub:        hub,
		adminToken: adminToken,
		checks:     make(map[string]Pinger),
		logger:     logger,
	}
}

// AddReadinessCheck registers a dependency for /ready
func (h *Handler) AddReadinessCheck(name string, p Pinger) {
	h.checks[name] = p
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(h.actorMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws/stats", h.GetWebSocketStats)

		r.Route("/{sport}", func(r chi.Router) {
			r.Use(h.sportMiddleware)

			r.Get("/riders", h.ListRiders)
			r.Get("/constructors", h.ListConstructors)
			r.Get("/races", h.ListRaces)
			r.Get("/standings", h.GetStandings)

			r.Route("/participants/{participantID}", func(r chi.Router) {
				r.Get("/team", h.GetTeam)
				r.Post("/team", h.SubmitTeam)
				r.Get("/score", h.GetGeneralScore)
				r.Get("/races/{raceID}/score", h.GetRaceScore)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.adminOnly)

				r.Post("/participants", h.CreateParticipant)
				r.Post("/races", h.CreateRace)
				r.Patch("/races/{raceID}/date", h.RescheduleRace)
				r.Put("/races/{raceID}/points", h.ImportPoints)
				r.Patch("/riders/{riderID}", h.UpdateRider)
				r.Get("/price-adjustments/pending", h.PendingRaces)
				r.Post("/price-adjustments", h.RunPriceAdjustment)
			})
		})
	})

	return r
}

type contextKey string

const (
	actorKey contextKey = "actor"
	sportKey contextKey = "sport"
)

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, "+AdminTokenHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// actorMiddleware resolves the caller from the admin token header
func (h *Handler) actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{ID: "anonymous"}
		token := r.Header.Get(AdminTokenHeader)
		if h.adminToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1 {
			actor = domain.Actor{ID: "admin", Admin: true}
		}
		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r).Admin {
			h.writeError(w, http.StatusForbidden, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) sportMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sport, err := domain.ParseSport(chi.URLParam(r, "sport"))
		if err != nil {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		ctx := context.WithValue(r.Context(), sportKey, sport)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := r.Context().Value(actorKey).(domain.Actor)
	return actor
}

func sportFrom(r *http.Request) domain.Sport {
	sport, _ := r.Context().Value(sportKey).(domain.Sport)
	return sport
}

// idParam reads a positive integer URL parameter
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidRequest
	}
	return id, nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error to a status code
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrInvalidRoster), errors.Is(err, domain.ErrOverBudget):
		h.writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, domain.ErrRaceLocked), errors.Is(err, domain.ErrRunInProgress):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrPersistence):
		h.logger.Error("failed to "+action, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrPersistence)
	default:
		h.logger.Error("failed to "+action, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// decode reads a JSON body
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWs(w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
		"motogp":            h.hub.GetSubscriberCount(domain.SportMotoGP),
		"f1":                h.hub.GetSubscriberCount(domain.SportF1),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports readiness once every registered dependency answers
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ready"}
	ready := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		status["status"] = "not_ready"
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{Success: false, Data: status})
		return
	}
	h.writeSuccess(w, status)
}
