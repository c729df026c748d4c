package patient

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	clinicauth "github.com/EdwardMor3h/topico-enfermeria/internal/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/events"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Handler provides HTTP handlers for the patient module
type Handler struct {
	repo *Repository
	bus  events.EventBus
}

// NewHandler creates a new patient handler
func NewHandler(repo *Repository, bus events.EventBus) *Handler {
	return &Handler{repo: repo, bus: bus}
}

// Routes registers the patient routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(auth.RequireCapability(clinicauth.CapPatientRead)).Get("/", h.List)
	r.With(auth.RequireCapability(clinicauth.CapPatientWrite)).Post("/", h.Create)

	r.Route("/{patientID}", func(r chi.Router) {
		r.With(auth.RequireCapability(clinicauth.CapPatientRead)).Get("/", h.Get)
		r.With(auth.RequireCapability(clinicauth.CapPatientWrite)).Put("/", h.Update)
		r.With(auth.RequireCapability(clinicauth.CapPatientDelete)).Delete("/", h.Delete)
	})

	return r
}

// List lists patients
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListPatientsFilter{
		Search: r.URL.Query().Get("search"),
	}

	patients, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  patients,
		"total": total,
	})
}

// Get gets a patient by ID
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// Create registers a new patient
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	details := map[string]string{}
	dni, err := types.ParseDNI(req.DNI)
	if err != nil {
		details["dni"] = err.Error()
	}
	if req.FirstName == "" {
		details["first_name"] = "first_name is required"
	}
	if req.LastName == "" {
		details["last_name"] = "last_name is required"
	}
	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		details["birth_date"] = "birth_date must be YYYY-MM-DD"
	}
	if len(details) > 0 {
		writeError(w, errors.Validation("validation failed", details))
		return
	}

	if req.Address.Country == "" {
		req.Address.Country = "PE"
	}

	p := &Patient{
		ID:        types.NewID(),
		DNI:       dni,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDate: birthDate,
		Gender:    req.Gender,
		BloodType: req.BloodType,
		Allergies: req.Allergies,
		Address:   req.Address,
		Contact:   req.Contact,
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	if h.bus != nil {
		user := auth.GetUser(r.Context())
		actorID := types.ID("")
		actorRole := ""
		if user != nil {
			actorID = user.ID
			actorRole = string(user.Role)
		}

		event := events.NewEvent("patient.created", "patient", map[string]any{
			"patient_id": p.ID,
			"dni":        p.DNI.Masked(),
		}).WithActor(actorID, actorRole)

		h.bus.Publish(r.Context(), event)
	}

	writeJSON(w, http.StatusCreated, p)
}

// Update updates a patient
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.FirstName != nil {
		p.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		p.LastName = *req.LastName
	}
	if req.BloodType != nil {
		p.BloodType = req.BloodType
	}
	if req.Allergies != nil {
		p.Allergies = req.Allergies
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.Contact != nil {
		p.Contact = *req.Contact
	}

	if err := h.repo.Update(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// Delete soft-deletes a patient
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
