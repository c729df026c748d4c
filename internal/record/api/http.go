package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EdwardMor3h/topico-enfermeria/internal/record/domain"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Handler exposes the clinical record workflow over HTTP. All
// authorization happens inside the workflow; the handler only maps
// transport to operations.
type Handler struct {
	workflow *domain.Workflow
}

// NewHandler creates a new record handler
func NewHandler(workflow *domain.Workflow) *Handler {
	return &Handler{workflow: workflow}
}

// Routes registers the consultation and history routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/consultations", func(r chi.Router) {
		r.Get("/", h.ListConsultations)
		r.Post("/", h.CreateConsultation)

		r.Route("/{consultationID}", func(r chi.Router) {
			r.Get("/", h.GetConsultation)
			r.Put("/", h.UpdateConsultation)
			r.Delete("/", h.DeleteConsultation)
			r.Get("/history", h.GetHistoryByConsultation)
		})
	})

	r.Route("/histories", func(r chi.Router) {
		r.Get("/", h.ListHistories)

		r.Route("/{historyID}", func(r chi.Router) {
			r.Get("/", h.GetHistory)
			r.Post("/sign", h.SignHistory)
			r.Get("/export", h.ExportHistory)
		})
	})

	return r
}

func actorFrom(r *http.Request) (domain.Actor, error) {
	user := auth.GetUser(r.Context())
	if user == nil {
		return domain.Actor{}, errors.Unauthorized("authentication required")
	}
	return domain.Actor{ID: user.ID, Role: user.Role}, nil
}

// --- Consultations ---

// CreateConsultationRequest is the request body for a new consultation
type CreateConsultationRequest struct {
	PatientID types.ID `json:"patient_id"`
	Diagnosis string   `json:"diagnosis"`
	Treatment string   `json:"treatment"`
	Notes     *string  `json:"notes,omitempty"`
}

// CreateConsultation creates a consultation and its derived history
func (h *Handler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	c, history, err := h.workflow.CreateConsultation(r.Context(), actor, domain.CreateConsultationInput{
		PatientID: req.PatientID,
		Diagnosis: req.Diagnosis,
		Treatment: req.Treatment,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"consultation": c,
		"history":      history,
	})
}

// ListConsultations lists consultations
func (h *Handler) ListConsultations(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	filter := domain.ListFilter{}
	if v := r.URL.Query().Get("patient_id"); v != "" {
		id, err := types.ParseID(v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid patient_id"))
			return
		}
		filter.PatientID = &id
	}
	if v := r.URL.Query().Get("doctor_id"); v != "" {
		id, err := types.ParseID(v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid doctor_id"))
			return
		}
		filter.DoctorID = &id
	}

	consultations, total, err := h.workflow.ListConsultations(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  consultations,
		"total": total,
	})
}

// GetConsultation gets a consultation by ID
func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "consultationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid consultation ID"))
		return
	}

	c, err := h.workflow.GetConsultation(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// UpdateConsultationRequest is the request body for a revision
type UpdateConsultationRequest struct {
	Diagnosis string  `json:"diagnosis"`
	Treatment string  `json:"treatment"`
	Notes     *string `json:"notes,omitempty"`
}

// UpdateConsultation revises an unsealed consultation
func (h *Handler) UpdateConsultation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "consultationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid consultation ID"))
		return
	}

	var req UpdateConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	c, err := h.workflow.UpdateConsultation(r.Context(), actor, id, domain.UpdateConsultationInput{
		Diagnosis: req.Diagnosis,
		Treatment: req.Treatment,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// DeleteConsultation soft-deletes a consultation
func (h *Handler) DeleteConsultation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "consultationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid consultation ID"))
		return
	}

	if err := h.workflow.DeleteConsultation(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHistoryByConsultation gets the history derived from a consultation
func (h *Handler) GetHistoryByConsultation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "consultationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid consultation ID"))
		return
	}

	history, err := h.workflow.GetHistoryByConsultation(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// --- Histories ---

// ListHistories lists clinical histories
func (h *Handler) ListHistories(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	filter := domain.ListFilter{}
	if v := r.URL.Query().Get("patient_id"); v != "" {
		id, err := types.ParseID(v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid patient_id"))
			return
		}
		filter.PatientID = &id
	}
	if v := r.URL.Query().Get("signed"); v != "" {
		signed := v == "true"
		filter.Signed = &signed
	}

	histories, total, err := h.workflow.ListHistories(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  histories,
		"total": total,
	})
}

// GetHistory gets a clinical history by ID
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "historyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid history ID"))
		return
	}

	history, err := h.workflow.GetHistory(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// SignHistoryRequest is the request body for sealing a history
type SignHistoryRequest struct {
	Signature string `json:"signature"`
}

// SignHistory seals a clinical history
func (h *Handler) SignHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "historyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid history ID"))
		return
	}

	var req SignHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	history, err := h.workflow.SignClinicalHistory(r.Context(), actor, id, req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// ExportHistory returns a signed history for external rendering
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "historyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid history ID"))
		return
	}

	export, err := h.workflow.ExportHistory(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, export)
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
