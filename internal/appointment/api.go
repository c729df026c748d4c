package appointment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EdwardMor3h/topico-enfermeria/internal/alert"
	clinicauth "github.com/EdwardMor3h/topico-enfermeria/internal/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/events"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/metrics"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Handler provides HTTP handlers for the appointment module
type Handler struct {
	repo   *Repository
	alerts alert.Notifier
	bus    events.EventBus
}

// NewHandler creates a new appointment handler
func NewHandler(repo *Repository, alerts alert.Notifier, bus events.EventBus) *Handler {
	return &Handler{repo: repo, alerts: alerts, bus: bus}
}

// Routes registers the appointment routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(auth.RequireCapability(clinicauth.CapAppointmentRead)).Get("/", h.List)
	r.With(auth.RequireCapability(clinicauth.CapAppointmentRead)).Get("/today", h.Today)
	r.With(auth.RequireCapability(clinicauth.CapAppointmentWrite)).Post("/", h.Create)

	r.Route("/{appointmentID}", func(r chi.Router) {
		r.With(auth.RequireCapability(clinicauth.CapAppointmentRead)).Get("/", h.Get)
		r.With(auth.RequireCapability(clinicauth.CapAppointmentWrite)).Put("/", h.Update)
		r.With(auth.RequireCapability(clinicauth.CapAppointmentStatus)).Patch("/status", h.UpdateStatus)

		r.With(auth.RequireCapability(clinicauth.CapVitalsWrite)).Post("/vitals", h.RecordVitals)
		r.With(auth.RequireCapability(clinicauth.CapVitalsWrite)).Put("/vitals", h.UpdateVitals)
		r.With(auth.RequireCapability(clinicauth.CapAppointmentRead)).Get("/vitals", h.GetVitals)
	})

	return r
}

// List lists appointments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListAppointmentsFilter{}

	if v := r.URL.Query().Get("patient_id"); v != "" {
		id, err := types.ParseID(v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid patient_id"))
			return
		}
		filter.PatientID = &id
	}

	if v := r.URL.Query().Get("staff_id"); v != "" {
		id, err := types.ParseID(v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid staff_id"))
			return
		}
		filter.StaffID = &id
	}

	if v := r.URL.Query().Get("status"); v != "" {
		status := Status(v)
		filter.Status = &status
	}

	appointments, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  appointments,
		"total": total,
	})
}

// Today lists today's appointments
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	appointments, total, err := h.repo.List(r.Context(), ListAppointmentsFilter{
		From: &from,
		To:   &to,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  appointments,
		"total": total,
	})
}

// Get gets an appointment by ID
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// Create schedules a new appointment
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	details := map[string]string{}
	if req.PatientID.IsZero() {
		details["patient_id"] = "patient_id is required"
	}
	if req.StaffID.IsZero() {
		details["staff_id"] = "staff_id is required"
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		details["scheduled_at"] = "scheduled_at must be RFC 3339"
	}
	if len(details) > 0 {
		writeError(w, errors.Validation("validation failed", details))
		return
	}

	a := &Appointment{
		ID:          types.NewID(),
		PatientID:   req.PatientID,
		StaffID:     req.StaffID,
		ScheduledAt: scheduledAt.UTC(),
		Reason:      req.Reason,
		Status:      StatusScheduled,
	}

	if err := h.repo.Create(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}

	if h.bus != nil {
		user := auth.GetUser(r.Context())
		event := events.NewEvent("appointment.created", "appointment", map[string]any{
			"appointment_id": a.ID,
			"patient_id":     a.PatientID,
			"scheduled_at":   a.ScheduledAt,
		})
		if user != nil {
			event = event.WithActor(user.ID, string(user.Role))
		}
		h.bus.Publish(r.Context(), event)
	}

	writeJSON(w, http.StatusCreated, a)
}

// Update reschedules an appointment. Only SCHEDULED appointments can
// move.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"scheduled_at": "scheduled_at must be RFC 3339",
		}))
		return
	}

	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	a.ScheduledAt = scheduledAt.UTC()
	a.Reason = req.Reason

	if err := h.repo.Update(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// UpdateStatus transitions an appointment between lifecycle states
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	from := a.Status

	switch req.Status {
	case StatusAttended:
		err = a.MarkAttended()
	case StatusCancelled:
		err = a.Cancel()
	default:
		err = fmt.Errorf("unknown target status %s", req.Status)
	}
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), id, a.Status); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordAppointmentStatusChange(string(from), string(a.Status))

	if h.bus != nil {
		user := auth.GetUser(r.Context())
		event := events.NewEvent("appointment.status.changed", "appointment", map[string]any{
			"appointment_id": a.ID,
			"from":           from,
			"to":             a.Status,
		})
		if user != nil {
			event = event.WithActor(user.ID, string(user.Role))
		}
		h.bus.Publish(r.Context(), event)
	}

	writeJSON(w, http.StatusOK, a)
}

// RecordVitals records vital signs for a scheduled appointment
func (h *Handler) RecordVitals(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !a.CanRecordVitals() {
		writeError(w, errors.BadRequest(fmt.Sprintf("cannot record vitals for appointment in status %s", a.Status)))
		return
	}

	var req RecordVitalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	user := auth.GetUser(r.Context())
	recordedBy := types.ID("")
	if user != nil {
		recordedBy = user.ID
	}

	v := &VitalSigns{
		ID:               types.NewID(),
		AppointmentID:    id,
		BloodPressure:    req.BloodPressure,
		HeartRate:        req.HeartRate,
		RespiratoryRate:  req.RespiratoryRate,
		Temperature:      req.Temperature,
		Weight:           req.Weight,
		Height:           req.Height,
		OxygenSaturation: req.OxygenSaturation,
		Observations:     req.Observations,
		RecordedBy:       recordedBy,
	}

	if err := h.repo.RecordVitals(r.Context(), v); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordVitalsTaken()

	if h.alerts != nil {
		switch {
		case v.Critical():
			h.alerts.Notify(r.Context(), alert.LevelCritical, &a.PatientID, "vitals",
				fmt.Sprintf("critical vital signs recorded for appointment %s", a.ID))
		case v.Abnormal():
			h.alerts.Notify(r.Context(), alert.LevelWarning, &a.PatientID, "vitals",
				fmt.Sprintf("abnormal vital signs recorded for appointment %s", a.ID))
		}
	}

	writeJSON(w, http.StatusCreated, v)
}

// UpdateVitals corrects previously recorded vital signs while the
// appointment is still SCHEDULED.
func (h *Handler) UpdateVitals(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !a.CanRecordVitals() {
		writeError(w, errors.BadRequest(fmt.Sprintf("cannot update vitals for appointment in status %s", a.Status)))
		return
	}

	var req RecordVitalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	user := auth.GetUser(r.Context())
	recordedBy := types.ID("")
	if user != nil {
		recordedBy = user.ID
	}

	v := &VitalSigns{
		AppointmentID:    id,
		BloodPressure:    req.BloodPressure,
		HeartRate:        req.HeartRate,
		RespiratoryRate:  req.RespiratoryRate,
		Temperature:      req.Temperature,
		Weight:           req.Weight,
		Height:           req.Height,
		OxygenSaturation: req.OxygenSaturation,
		Observations:     req.Observations,
		RecordedBy:       recordedBy,
	}

	if err := h.repo.UpdateVitals(r.Context(), v); err != nil {
		writeError(w, err)
		return
	}

	if h.alerts != nil {
		switch {
		case v.Critical():
			h.alerts.Notify(r.Context(), alert.LevelCritical, &a.PatientID, "vitals",
				fmt.Sprintf("critical vital signs recorded for appointment %s", a.ID))
		case v.Abnormal():
			h.alerts.Notify(r.Context(), alert.LevelWarning, &a.PatientID, "vitals",
				fmt.Sprintf("abnormal vital signs recorded for appointment %s", a.ID))
		}
	}

	updated, err := h.repo.GetVitals(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// GetVitals retrieves vital signs for an appointment
func (h *Handler) GetVitals(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	v, err := h.repo.GetVitals(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
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
