package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinivo/consult-scheduling/internal/appointment"
	"github.com/clinivo/consult-scheduling/internal/slot"
	"github.com/clinivo/consult-scheduling/internal/visit"
)

type CreateSlotRequest struct {
	PractitionerID string `json:"practitioner_id"`
	Date           string `json:"date"`  // 2006-01-02
	Start          string `json:"start"` // 15:04
	End            string `json:"end"`   // 15:04
}

type SlotResponse struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Date           string    `json:"date"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	Claimed        bool      `json:"claimed"`
}

type SlotListResponse struct {
	Slots []SlotResponse `json:"slots"`
	Next  string         `json:"next,omitempty"`
}

func toSlotResponse(s slot.TimeSlot) SlotResponse {
	return SlotResponse{
		ID:             s.ID,
		PractitionerID: s.PractitionerID,
		Date:           s.Date.Format("2006-01-02"),
		Start:          s.StartTime.Format("15:04"),
		End:            s.EndTime.Format("15:04"),
		Claimed:        s.Claimed,
	}
}

type BookAppointmentRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Reason    string `json:"reason"`
	Symptoms  string `json:"symptoms"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	SlotID         uuid.UUID `json:"slot_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	Symptoms       string    `json:"symptoms,omitempty"`
	CancelReason   string    `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type BookingResponse struct {
	AppointmentResponse
	// GeneratedPassword is present only when a patient account was created as
	// part of this booking.
	GeneratedPassword string `json:"generated_password,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:             a.ID,
		SlotID:         a.SlotID,
		PractitionerID: a.PractitionerID,
		PatientID:      a.PatientID,
		Status:         string(a.Status),
		Reason:         a.Reason,
		Symptoms:       a.Symptoms,
		CreatedAt:      a.CreatedAt,
	}
	if a.CancelReason != nil {
		resp.CancelReason = *a.CancelReason
	}
	return resp
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type VisitRecordResponse struct {
	ID            uuid.UUID                `json:"id"`
	AppointmentID uuid.UUID                `json:"appointment_id"`
	Diagnosis     string                   `json:"diagnosis"`
	Symptoms      string                   `json:"symptoms"`
	Vitals        visit.VitalSigns         `json:"vital_signs"`
	Prescription  []visit.PrescriptionItem `json:"prescription"`
	DoctorNotes   string                   `json:"doctor_notes"`
	PatientAdvice string                   `json:"patient_advice"`
	LabReports    []visit.LabReport        `json:"lab_reports"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

func toVisitRecordResponse(r *visit.VisitRecord) VisitRecordResponse {
	resp := VisitRecordResponse{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		Diagnosis:     r.Diagnosis,
		Symptoms:      r.Symptoms,
		Vitals:        r.Vitals,
		Prescription:  r.Prescription,
		DoctorNotes:   r.DoctorNotes,
		PatientAdvice: r.PatientAdvice,
		LabReports:    r.LabReports,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if resp.Prescription == nil {
		resp.Prescription = []visit.PrescriptionItem{}
	}
	if resp.LabReports == nil {
		resp.LabReports = []visit.LabReport{}
	}
	return resp
}
