package visit

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

type VitalSigns struct {
	BP          string `json:"bp"`
	Weight      string `json:"weight"`
	Temperature string `json:"temperature"`
	SpO2        string `json:"spo2"`
	HeartRate   string `json:"heart_rate"`
}

type PrescriptionItem struct {
	MedicineName string `json:"medicine_name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type LabReport struct {
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
}

// VisitRecord is the clinical documentation of a completed appointment. It
// exists if and only if the appointment's status is completed.
type VisitRecord struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Diagnosis     string
	Symptoms      string
	Vitals        VitalSigns
	Prescription  []PrescriptionItem
	DoctorNotes   string
	PatientAdvice string
	LabReports    []LabReport
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ClinicalData is the mutable part of a record as submitted by the
// practitioner.
type ClinicalData struct {
	Diagnosis     string
	Symptoms      string
	Vitals        VitalSigns
	Prescription  []PrescriptionItem
	DoctorNotes   string
	PatientAdvice string
}

// Upload is one incoming lab report file.
type Upload struct {
	OriginalName string
	ContentType  string
	Data         io.Reader
}

// FilterPrescription drops lines without a medicine name; the persisted list
// is always the filtered one.
func FilterPrescription(items []PrescriptionItem) []PrescriptionItem {
	out := items[:0:0]
	for _, it := range items {
		if strings.TrimSpace(it.MedicineName) == "" {
			continue
		}
		out = append(out, it)
	}
	return out
}
