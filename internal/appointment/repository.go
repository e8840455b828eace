package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinivo/consult-scheduling/internal/db"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// Repository contains all DB interactions needed by the service. Methods that
// participate in the booking or cancellation transaction take a db.DBTX.
type Repository interface {
	Insert(ctx context.Context, q db.DBTX, a *Appointment) error
	GetByID(ctx context.Context, q db.DBTX, id uuid.UUID) (*Appointment, error)

	// UpdateStatus is the compare-and-set transition: the row moves to `to`
	// only while its current status is one of `from`. cancelReason is stored
	// when non-nil. ErrAppointmentNotFound means no row matched.
	UpdateStatus(ctx context.Context, q db.DBTX, id uuid.UUID, from []Status, to Status, cancelReason *string) (*Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Appointment, error)

	InsertEvent(ctx context.Context, q db.DBTX, ev EventLog) error
}
