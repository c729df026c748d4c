package staff

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	clinicauth "github.com/EdwardMor3h/topico-enfermeria/internal/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Handler provides HTTP handlers for the staff module
type Handler struct {
	repo *Repository
}

// NewHandler creates a new staff handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the staff routes. Staff management is admin-only.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireCapability(clinicauth.CapStaffManage))

	r.Get("/", h.List)
	r.Post("/", h.Create)

	r.Route("/{memberID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
	})

	return r
}

// List lists staff members
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListMembersFilter{
		Search: r.URL.Query().Get("search"),
	}

	if v := r.URL.Query().Get("role"); v != "" {
		role, ok := clinicauth.ParseRole(v)
		if !ok {
			writeError(w, errors.BadRequest("invalid role"))
			return
		}
		filter.Role = &role
	}

	members, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  members,
		"total": total,
	})
}

// Get gets a staff member by ID
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid staff member ID"))
		return
	}

	m, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// Create registers a new staff member
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	details := map[string]string{}
	dni, err := types.ParseDNI(req.DNI)
	if err != nil {
		details["dni"] = err.Error()
	}
	role, ok := clinicauth.ParseRole(req.Role)
	if !ok {
		details["role"] = "role must be ADMIN, DOCTOR or NURSE"
	}
	if req.Email == "" {
		details["email"] = "email is required"
	}
	if len(details) > 0 {
		writeError(w, errors.Validation("validation failed", details))
		return
	}

	m := &Member{
		ID:        types.NewID(),
		DNI:       dni,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      role,
		Specialty: req.Specialty,
		Active:    true,
	}

	if err := h.repo.Create(r.Context(), m); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// Update updates a staff member
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid staff member ID"))
		return
	}

	m, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.FirstName != nil {
		m.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		m.LastName = *req.LastName
	}
	if req.Email != nil {
		m.Email = *req.Email
	}
	if req.Specialty != nil {
		m.Specialty = req.Specialty
	}
	if req.SignaturePath != nil {
		m.SignaturePath = req.SignaturePath
	}
	if req.Active != nil {
		m.Active = *req.Active
	}

	if err := h.repo.Update(r.Context(), m); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
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
