package visit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinivo/consult-scheduling/internal/appointment"
	"github.com/clinivo/consult-scheduling/internal/db"
	"github.com/clinivo/consult-scheduling/internal/metrics"
)

// Lifecycle is what the manager needs from the appointment service:
// completion happens inside the record transaction, notification after it.
type Lifecycle interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	CompleteInTx(ctx context.Context, q db.DBTX, id uuid.UUID) (*appointment.Appointment, error)
	NotifyCompleted(ctx context.Context, a *appointment.Appointment)
}

// AttachmentStore persists lab report files outside the database.
type AttachmentStore interface {
	Save(ctx context.Context, appointmentID uuid.UUID, up Upload) (string, error)
	Delete(ctx context.Context, url string) error
}

type Manager struct {
	db      db.Pool
	repo    Repository
	appts   Lifecycle
	store   AttachmentStore
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewManager(pool db.Pool, repo Repository, appts Lifecycle, store AttachmentStore, m *metrics.Metrics, log zerolog.Logger) *Manager {
	return &Manager{
		db:      pool,
		repo:    repo,
		appts:   appts,
		store:   store,
		metrics: m,
		log:     log.With().Str("component", "visit").Logger(),
	}
}

// CreateRecord stores the attachments, creates the record and completes the
// appointment. The record insert and the completion share one transaction:
// a completed appointment without a record, or the reverse, is never
// observable. Attachments are stored first and compensated away if the
// transaction fails.
func (m *Manager) CreateRecord(ctx context.Context, appointmentID uuid.UUID, data ClinicalData, uploads []Upload) (*VisitRecord, error) {
	appt, err := m.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appointment.CanTransition(appt.Status, appointment.StatusCompleted) {
		return nil, fmt.Errorf("%w: record creation requires a scheduled or confirmed appointment, got %s",
			appointment.ErrInvalidTransition, appt.Status)
	}

	data.Prescription = FilterPrescription(data.Prescription)

	stored, err := m.saveUploads(ctx, appointmentID, uploads)
	if err != nil {
		return nil, err
	}

	rec := &VisitRecord{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		Diagnosis:     data.Diagnosis,
		Symptoms:      data.Symptoms,
		Vitals:        data.Vitals,
		Prescription:  data.Prescription,
		DoctorNotes:   data.DoctorNotes,
		PatientAdvice: data.PatientAdvice,
		LabReports:    stored,
	}

	var completed *appointment.Appointment

	err = func() error {
		tx, err := m.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		if err := m.repo.Insert(ctx, tx, rec); err != nil {
			return fmt.Errorf("insert visit record: %w", err)
		}
		completed, err = m.appts.CompleteInTx(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	}()
	if err != nil {
		m.discardUploads(ctx, stored)
		return nil, err
	}

	m.appts.NotifyCompleted(ctx, completed)

	m.log.Info().
		Str("record_id", rec.ID.String()).
		Str("appointment_id", appointmentID.String()).
		Int("lab_reports", len(stored)).
		Msg("visit record created")

	return rec, nil
}

// UpdateRecord revises the clinical data of a completed visit and reconciles
// the attachment set: result = (existing \ removedURLs) ∪ storedNew. Removed
// files are deleted from storage only after the update commits, so a failed
// commit leaves the original files intact.
func (m *Manager) UpdateRecord(ctx context.Context, recordID uuid.UUID, data ClinicalData, uploads []Upload, removedURLs []string) (*VisitRecord, error) {
	rec, err := m.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	appt, err := m.appts.GetByID(ctx, rec.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != appointment.StatusCompleted {
		return nil, fmt.Errorf("%w: record updates require a completed appointment, got %s",
			appointment.ErrInvalidTransition, appt.Status)
	}

	existing := make(map[string]bool, len(rec.LabReports))
	for _, lr := range rec.LabReports {
		existing[lr.URL] = true
	}
	for _, url := range removedURLs {
		if !existing[url] {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, url)
		}
	}

	data.Prescription = FilterPrescription(data.Prescription)

	stored, err := m.saveUploads(ctx, rec.AppointmentID, uploads)
	if err != nil {
		return nil, err
	}

	err = func() error {
		tx, err := m.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		if err := m.repo.UpdateClinical(ctx, tx, recordID, data); err != nil {
			return fmt.Errorf("update visit record: %w", err)
		}
		if len(removedURLs) > 0 {
			if err := m.repo.RemoveLabReports(ctx, tx, recordID, removedURLs); err != nil {
				return err
			}
		}
		if len(stored) > 0 {
			if err := m.repo.AddLabReports(ctx, tx, recordID, stored); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	}()
	if err != nil {
		m.discardUploads(ctx, stored)
		return nil, err
	}

	// The update is durable; now the removed files may go.
	for _, url := range removedURLs {
		if err := m.store.Delete(ctx, url); err != nil {
			m.metrics.ObserveAttachment("delete", "error")
			m.log.Warn().Err(err).Str("url", url).Msg("delete removed lab report")
			continue
		}
		m.metrics.ObserveAttachment("delete", "ok")
	}

	updated, err := m.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("record_id", recordID.String()).
		Int("added", len(stored)).
		Int("removed", len(removedURLs)).
		Msg("visit record updated")

	return updated, nil
}

// GetRecord returns the record for an appointment. ErrRecordNotFound is a
// legitimate answer before completion.
func (m *Manager) GetRecord(ctx context.Context, appointmentID uuid.UUID) (*VisitRecord, error) {
	return m.repo.GetByAppointment(ctx, appointmentID)
}

func (m *Manager) saveUploads(ctx context.Context, appointmentID uuid.UUID, uploads []Upload) ([]LabReport, error) {
	var stored []LabReport
	for _, up := range uploads {
		url, err := m.store.Save(ctx, appointmentID, up)
		if err != nil {
			m.metrics.ObserveAttachment("save", "error")
			m.discardUploads(ctx, stored)
			return nil, err
		}
		m.metrics.ObserveAttachment("save", "ok")
		stored = append(stored, LabReport{URL: url, OriginalName: up.OriginalName})
	}
	return stored, nil
}

// discardUploads removes files stored for a unit of work that did not
// commit. Best effort: an orphaned object is preferable to a record that
// references a missing one.
func (m *Manager) discardUploads(ctx context.Context, stored []LabReport) {
	for _, lr := range stored {
		if err := m.store.Delete(ctx, lr.URL); err != nil {
			m.log.Warn().Err(err).Str("url", lr.URL).Msg("discard stored lab report")
		}
	}
}
