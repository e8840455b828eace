package visit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinivo/consult-scheduling/internal/db"
)

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const recordColumns = `id, appointment_id, diagnosis, symptoms, bp, weight, temperature, spo2, heart_rate, doctor_notes, patient_advice, created_at, updated_at`

func scanRecord(row pgx.Row) (*VisitRecord, error) {
	var r VisitRecord

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.Diagnosis,
		&r.Symptoms,
		&r.Vitals.BP,
		&r.Vitals.Weight,
		&r.Vitals.Temperature,
		&r.Vitals.SpO2,
		&r.Vitals.HeartRate,
		&r.DoctorNotes,
		&r.PatientAdvice,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &r, nil
}

func (r *PgRepository) Insert(ctx context.Context, q db.DBTX, rec *VisitRecord) error {
	if q == nil {
		q = r.pool
	}

	row := q.QueryRow(ctx, `
		INSERT INTO visit_records (id, appointment_id, diagnosis, symptoms, bp, weight, temperature, spo2, heart_rate, doctor_notes, patient_advice, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+recordColumns+`
	`, rec.ID, rec.AppointmentID, rec.Diagnosis, rec.Symptoms,
		rec.Vitals.BP, rec.Vitals.Weight, rec.Vitals.Temperature, rec.Vitals.SpO2, rec.Vitals.HeartRate,
		rec.DoctorNotes, rec.PatientAdvice)

	created, err := scanRecord(row)
	if err != nil {
		return err
	}

	prescription := rec.Prescription
	labReports := rec.LabReports
	*rec = *created
	rec.Prescription = prescription
	rec.LabReports = labReports

	if err := r.insertPrescription(ctx, q, rec.ID, rec.Prescription); err != nil {
		return err
	}
	return r.AddLabReports(ctx, q, rec.ID, rec.LabReports)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*VisitRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM visit_records
		WHERE id = $1
	`, id)
	return r.hydrate(ctx, row)
}

func (r *PgRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*VisitRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM visit_records
		WHERE appointment_id = $1
	`, appointmentID)
	return r.hydrate(ctx, row)
}

func (r *PgRepository) hydrate(ctx context.Context, row pgx.Row) (*VisitRecord, error) {
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT medicine_name, dosage, frequency, duration, instructions
		FROM prescription_items
		WHERE record_id = $1
		ORDER BY position
	`, rec.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.MedicineName, &it.Dosage, &it.Frequency, &it.Duration, &it.Instructions); err != nil {
			return nil, err
		}
		rec.Prescription = append(rec.Prescription, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	labRows, err := r.pool.Query(ctx, `
		SELECT url, original_name
		FROM lab_reports
		WHERE record_id = $1
		ORDER BY created_at, url
	`, rec.ID)
	if err != nil {
		return nil, err
	}
	defer labRows.Close()

	for labRows.Next() {
		var lr LabReport
		if err := labRows.Scan(&lr.URL, &lr.OriginalName); err != nil {
			return nil, err
		}
		rec.LabReports = append(rec.LabReports, lr)
	}
	if err := labRows.Err(); err != nil {
		return nil, err
	}

	return rec, nil
}

// UpdateClinical rewrites the record's scalar fields and swaps the whole
// prescription sequence, keeping submission order.
func (r *PgRepository) UpdateClinical(ctx context.Context, q db.DBTX, id uuid.UUID, data ClinicalData) error {
	if q == nil {
		q = r.pool
	}

	tag, err := q.Exec(ctx, `
		UPDATE visit_records
		SET diagnosis = $2,
		    symptoms = $3,
		    bp = $4,
		    weight = $5,
		    temperature = $6,
		    spo2 = $7,
		    heart_rate = $8,
		    doctor_notes = $9,
		    patient_advice = $10,
		    updated_at = now()
		WHERE id = $1
	`, id, data.Diagnosis, data.Symptoms,
		data.Vitals.BP, data.Vitals.Weight, data.Vitals.Temperature, data.Vitals.SpO2, data.Vitals.HeartRate,
		data.DoctorNotes, data.PatientAdvice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	if _, err := q.Exec(ctx, `DELETE FROM prescription_items WHERE record_id = $1`, id); err != nil {
		return err
	}
	return r.insertPrescription(ctx, q, id, data.Prescription)
}

func (r *PgRepository) insertPrescription(ctx context.Context, q db.DBTX, recordID uuid.UUID, items []PrescriptionItem) error {
	for i, it := range items {
		_, err := q.Exec(ctx, `
			INSERT INTO prescription_items (record_id, position, medicine_name, dosage, frequency, duration, instructions)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, recordID, i, it.MedicineName, it.Dosage, it.Frequency, it.Duration, it.Instructions)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PgRepository) AddLabReports(ctx context.Context, q db.DBTX, recordID uuid.UUID, reports []LabReport) error {
	if q == nil {
		q = r.pool
	}
	for _, lr := range reports {
		_, err := q.Exec(ctx, `
			INSERT INTO lab_reports (record_id, url, original_name, created_at)
			VALUES ($1, $2, $3, now())
		`, recordID, lr.URL, lr.OriginalName)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PgRepository) RemoveLabReports(ctx context.Context, q db.DBTX, recordID uuid.UUID, urls []string) error {
	if q == nil {
		q = r.pool
	}
	for _, url := range urls {
		tag, err := q.Exec(ctx, `
			DELETE FROM lab_reports
			WHERE record_id = $1 AND url = $2
		`, recordID, url)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrAttachmentNotFound
		}
	}
	return nil
}
