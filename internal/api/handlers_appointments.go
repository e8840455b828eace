package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinivo/consult-scheduling/internal/appointment"
	"github.com/clinivo/consult-scheduling/internal/patient"
)

// AppointmentService is the slice of the booking engine and lifecycle the
// HTTP layer uses.
type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.BookingResult, error)
	Confirm(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
}

func bookAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		ident := patient.Identity{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
		}
		if req.PatientID != "" {
			pid, err := uuid.Parse(req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			ident.PatientID = &pid
		}

		result, err := svc.Book(r.Context(), appointment.BookRequest{
			SlotID:   slotID,
			Patient:  ident,
			Reason:   req.Reason,
			Symptoms: req.Symptoms,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{
			AppointmentResponse: toAppointmentResponse(result.Appointment),
			GeneratedPassword:   result.GeneratedPassword,
		})
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 20)
		offset := queryInt(r, "offset", 0)

		var (
			appts []appointment.Appointment
			err   error
		)

		switch {
		case r.URL.Query().Get("patient_id") != "":
			pid, parseErr := uuid.Parse(r.URL.Query().Get("patient_id"))
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			appts, err = svc.ListByPatient(r.Context(), pid, limit, offset)
		case r.URL.Query().Get("practitioner_id") != "":
			prid, parseErr := uuid.Parse(r.URL.Query().Get("practitioner_id"))
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			appts, err = svc.ListByPractitioner(r.Context(), prid, limit, offset)
		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "patient_id or practitioner_id is required")
			return
		}
		if err != nil {
			handleDomainError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// updateStatusHandler drives the confirmed/cancelled transitions. Completion
// is deliberately absent: it only happens through visit record creation, so
// asking for it here is an invalid transition.
func updateStatusHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var appt *appointment.Appointment
		switch appointment.Status(req.Status) {
		case appointment.StatusConfirmed:
			appt, err = svc.Confirm(r.Context(), id)
		case appointment.StatusCancelled:
			appt, err = svc.Cancel(r.Context(), id, req.Reason)
		case appointment.StatusCompleted:
			writeError(w, http.StatusConflict, "invalid_transition", "completion happens through visit record creation")
			return
		default:
			writeError(w, http.StatusBadRequest, "validation_error", "status must be confirmed or cancelled")
			return
		}
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
