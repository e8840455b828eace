package slot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinivo/consult-scheduling/internal/db"
)

var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrInvalidRange    = errors.New("slot start must be before end")
	ErrOverlap         = errors.New("slot overlaps an existing window")
	ErrScheduleBusy    = errors.New("practitioner schedule is being edited, retry")
	ErrSlotLocked      = errors.New("slot is claimed and cannot be deleted")
	ErrSlotUnavailable = errors.New("slot is already claimed or does not exist")
	ErrSlotNotClaimed  = errors.New("slot is not claimed")
)

// Repository contains all DB interactions needed by the slot service.
//
// Claim and Release are internal transitions: Claim is called only by the
// booking engine and Release only by the appointment lifecycle, both inside
// their own transactions, which is why they take an explicit db.DBTX.
type Repository interface {
	Insert(ctx context.Context, s *TimeSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q ListQuery) ([]TimeSlot, error)
	HasOverlap(ctx context.Context, practitionerID uuid.UUID, date time.Time, start, end time.Time) (bool, error)

	Claim(ctx context.Context, q db.DBTX, id uuid.UUID) (*TimeSlot, error)
	Release(ctx context.Context, q db.DBTX, id uuid.UUID) error
}
