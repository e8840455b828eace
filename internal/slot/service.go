package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/clinivo/consult-scheduling/internal/redis"
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log.With().Str("component", "slot").Logger(),
	}
}

// CreateSlot publishes a new availability window. The overlap check and the
// insert run under a per practitioner/day lock so two concurrent creates
// cannot both pass the check.
func (s *Service) CreateSlot(ctx context.Context, practitionerID uuid.UUID, date, start, end time.Time) (*TimeSlot, error) {
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}

	created := &TimeSlot{
		ID:             uuid.New(),
		PractitionerID: practitionerID,
		Date:           date,
		StartTime:      start,
		EndTime:        end,
	}

	lockKey := fmt.Sprintf("slots:%s:%s", practitionerID, date.Format("2006-01-02"))
	err := s.locker.WithLock(ctx, lockKey, func(lockCtx context.Context) error {
		overlap, err := s.repo.HasOverlap(lockCtx, practitionerID, date, start, end)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if overlap {
			return ErrOverlap
		}

		if err := s.repo.Insert(lockCtx, created); err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Someone else is editing this practitioner's day right now.
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.log.Info().
		Str("slot_id", created.ID.String()).
		Str("practitioner_id", practitionerID.String()).
		Time("start", start).
		Msg("slot created")

	return created, nil
}

// DeleteSlot removes an unclaimed slot. ErrSlotLocked protects live
// appointments from being orphaned.
func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("slot_id", id.String()).Msg("slot deleted")
	return nil
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return s.repo.GetByID(ctx, id)
}

// ListSlots returns one page ordered by (date, start_time) and the cursor to
// resume from, or the zero time when the listing is exhausted.
func (s *Service) ListSlots(ctx context.Context, q ListQuery) ([]TimeSlot, time.Time, error) {
	slots, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("list slots: %w", err)
	}

	var next time.Time
	if q.Limit > 0 && len(slots) == q.Limit {
		next = slots[len(slots)-1].StartTime
	}
	return slots, next, nil
}
