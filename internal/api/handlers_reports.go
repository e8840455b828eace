package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinivo/consult-scheduling/internal/visit"
)

const maxMultipartMemory = 32 << 20

// VisitService is the slice of the visit record manager the HTTP layer uses.
type VisitService interface {
	CreateRecord(ctx context.Context, appointmentID uuid.UUID, data visit.ClinicalData, uploads []visit.Upload) (*visit.VisitRecord, error)
	UpdateRecord(ctx context.Context, recordID uuid.UUID, data visit.ClinicalData, uploads []visit.Upload, removedURLs []string) (*visit.VisitRecord, error)
	GetRecord(ctx context.Context, appointmentID uuid.UUID) (*visit.VisitRecord, error)
}

func createRecordHandler(svc VisitService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "expected multipart form data")
			return
		}
		defer cleanupMultipart(r)

		appointmentID, err := uuid.Parse(r.FormValue("appointment_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}

		data, ok := parseClinicalData(w, r)
		if !ok {
			return
		}

		uploads, closeFiles, ok := openUploads(w, r)
		if !ok {
			return
		}
		defer closeFiles()

		rec, err := svc.CreateRecord(r.Context(), appointmentID, data, uploads)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toVisitRecordResponse(rec))
	}
}

func updateRecordHandler(svc VisitService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "expected multipart form data")
			return
		}
		defer cleanupMultipart(r)

		recordID, err := uuid.Parse(r.FormValue("record_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_record_id", "record_id must be a valid UUID")
			return
		}

		data, ok := parseClinicalData(w, r)
		if !ok {
			return
		}

		var removed []string
		if raw := r.FormValue("deleted_lab_reports"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &removed); err != nil {
				writeError(w, http.StatusBadRequest, "validation_error", "deleted_lab_reports must be a JSON array of URLs")
				return
			}
		}

		uploads, closeFiles, ok := openUploads(w, r)
		if !ok {
			return
		}
		defer closeFiles()

		rec, err := svc.UpdateRecord(r.Context(), recordID, data, uploads, removed)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitRecordResponse(rec))
	}
}

func getRecordHandler(svc VisitService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointmentID must be a valid UUID")
			return
		}

		rec, err := svc.GetRecord(r.Context(), appointmentID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitRecordResponse(rec))
	}
}

func parseClinicalData(w http.ResponseWriter, r *http.Request) (visit.ClinicalData, bool) {
	data := visit.ClinicalData{
		Diagnosis: r.FormValue("diagnosis"),
		Symptoms:  r.FormValue("symptoms"),
		Vitals: visit.VitalSigns{
			BP:          r.FormValue("bp"),
			Weight:      r.FormValue("weight"),
			Temperature: r.FormValue("temperature"),
			SpO2:        r.FormValue("spo2"),
			HeartRate:   r.FormValue("heart_rate"),
		},
		DoctorNotes:   r.FormValue("doctor_notes"),
		PatientAdvice: r.FormValue("patient_advice"),
	}

	if raw := r.FormValue("prescription"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &data.Prescription); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "prescription must be a JSON array")
			return visit.ClinicalData{}, false
		}
	}

	return data, true
}

// openUploads opens every lab_reports file part. The returned closer must be
// deferred by the caller; the readers stay valid until then.
func openUploads(w http.ResponseWriter, r *http.Request) ([]visit.Upload, func(), bool) {
	if r.MultipartForm == nil {
		return nil, func() {}, true
	}

	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	var uploads []visit.Upload
	for _, hdr := range r.MultipartForm.File["lab_reports"] {
		f, err := hdr.Open()
		if err != nil {
			closeAll()
			writeError(w, http.StatusBadRequest, "validation_error", "could not read uploaded file "+hdr.Filename)
			return nil, nil, false
		}
		closers = append(closers, f.Close)
		uploads = append(uploads, visit.Upload{
			OriginalName: hdr.Filename,
			ContentType:  hdr.Header.Get("Content-Type"),
			Data:         f,
		})
	}

	return uploads, closeAll, true
}

func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
