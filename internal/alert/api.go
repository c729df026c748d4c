package alert

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	clinicauth "github.com/EdwardMor3h/topico-enfermeria/internal/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Handler provides HTTP handlers for the alert module
type Handler struct {
	repo *Repository
}

// NewHandler creates a new alert handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the alert routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireCapability(clinicauth.CapAlertRead))

	r.Get("/", h.List)
	r.Post("/{alertID}/ack", h.Acknowledge)

	return r
}

// List lists alerts
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListAlertsFilter{
		OnlyUnacked: r.URL.Query().Get("unacked") == "true",
	}

	if v := r.URL.Query().Get("level"); v != "" {
		level := Level(v)
		filter.Level = &level
	}

	if v := r.URL.Query().Get("patient_id"); v != "" {
		id, err := types.ParseID(v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid patient_id"))
			return
		}
		filter.PatientID = &id
	}

	alerts, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  alerts,
		"total": total,
	})
}

// Acknowledge marks an alert as seen
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "alertID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid alert ID"))
		return
	}

	user := auth.GetUser(r.Context())
	by := types.ID("")
	if user != nil {
		by = user.ID
	}

	if err := h.repo.Acknowledge(r.Context(), id, by); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
