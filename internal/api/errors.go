package api

import (
	"errors"
	"net/http"

	"github.com/clinivo/consult-scheduling/internal/appointment"
	"github.com/clinivo/consult-scheduling/internal/patient"
	"github.com/clinivo/consult-scheduling/internal/slot"
	"github.com/clinivo/consult-scheduling/internal/visit"
)

// handleDomainError maps every core error kind to the caller-facing status
// and code the contracts promise. Anything unknown is a 500.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slot.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, slot.ErrOverlap):
		writeError(w, http.StatusConflict, "overlap", err.Error())
	case errors.Is(err, slot.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", "practitioner schedule is being edited, retry")
	case errors.Is(err, slot.ErrSlotLocked):
		writeError(w, http.StatusConflict, "slot_locked", err.Error())
	case errors.Is(err, slot.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is already claimed or does not exist, re-fetch availability")
	case errors.Is(err, slot.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, visit.ErrAttachmentNotFound):
		writeError(w, http.StatusNotFound, "attachment_not_found", err.Error())
	case errors.Is(err, visit.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, patient.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, patient.ErrEmailRequired), errors.Is(err, patient.ErrNameRequired):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, visit.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
