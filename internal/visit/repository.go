package visit

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinivo/consult-scheduling/internal/db"
)

var (
	ErrRecordNotFound     = errors.New("visit record not found")
	ErrAttachmentNotFound = errors.New("attachment not found on record")
)

// Repository contains all DB interactions needed by the manager. Everything
// that is part of the create/update unit of work takes a db.DBTX.
type Repository interface {
	Insert(ctx context.Context, q db.DBTX, rec *VisitRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*VisitRecord, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*VisitRecord, error)

	// UpdateClinical rewrites the scalar fields and replaces the prescription
	// sequence in place.
	UpdateClinical(ctx context.Context, q db.DBTX, id uuid.UUID, data ClinicalData) error

	AddLabReports(ctx context.Context, q db.DBTX, recordID uuid.UUID, reports []LabReport) error
	RemoveLabReports(ctx context.Context, q db.DBTX, recordID uuid.UUID, urls []string) error
}
