package slot

import (
	"context"
	"errors"
	"strconv"
	"time"

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

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot

	err := row.Scan(
		&s.ID,
		&s.PractitionerID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Claimed,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *PgRepository) Insert(ctx context.Context, s *TimeSlot) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO time_slots (id, practitioner_id, slot_date, start_time, end_time, claimed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, now(), now())
		RETURNING id, practitioner_id, slot_date, start_time, end_time, claimed, created_at, updated_at
	`, s.ID, s.PractitionerID, s.Date, s.StartTime, s.EndTime)

	created, err := scanSlot(row)
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, practitioner_id, slot_date, start_time, end_time, claimed, created_at, updated_at
		FROM time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

// Delete removes a slot only while it is unclaimed. A claimed slot is the
// backing of a live appointment and reports ErrSlotLocked instead.
func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM time_slots
		WHERE id = $1 AND claimed = false
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var claimed bool
	err = r.pool.QueryRow(ctx, `
		SELECT claimed FROM time_slots WHERE id = $1
	`, id).Scan(&claimed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSlotNotFound
		}
		return err
	}
	if claimed {
		return ErrSlotLocked
	}
	// Raced with another delete.
	return ErrSlotNotFound
}

func (r *PgRepository) List(ctx context.Context, q ListQuery) ([]TimeSlot, error) {
	sql := `
		SELECT id, practitioner_id, slot_date, start_time, end_time, claimed, created_at, updated_at
		FROM time_slots
		WHERE practitioner_id = $1`
	args := []any{q.PractitionerID}

	if q.Date != nil {
		args = append(args, *q.Date)
		sql += ` AND slot_date = $2`
	}
	if q.After != nil {
		args = append(args, *q.After)
		sql += ` AND start_time > $` + itoa(len(args))
	}
	sql += ` ORDER BY slot_date, start_time`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += ` LIMIT $` + itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// HasOverlap checks the new half-open window [start,end) against every
// existing slot of the practitioner on that day, claimed or not.
func (r *PgRepository) HasOverlap(ctx context.Context, practitionerID uuid.UUID, date time.Time, start, end time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM time_slots
			WHERE practitioner_id = $1
			  AND slot_date = $2
			  AND start_time < $4
			  AND end_time > $3
		)
	`, practitionerID, date, start, end).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Claim flips claimed false -> true as a single compare-and-set. The first
// caller wins; everyone else sees ErrSlotUnavailable.
func (r *PgRepository) Claim(ctx context.Context, q db.DBTX, id uuid.UUID) (*TimeSlot, error) {
	row := q.QueryRow(ctx, `
		UPDATE time_slots
		SET claimed = true,
		    updated_at = now()
		WHERE id = $1
		  AND claimed = false
		RETURNING id, practitioner_id, slot_date, start_time, end_time, claimed, created_at, updated_at
	`, id)

	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	return s, nil
}

// Release clears the claim, making the slot bookable again.
func (r *PgRepository) Release(ctx context.Context, q db.DBTX, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE time_slots
		SET claimed = false,
		    updated_at = now()
		WHERE id = $1
		  AND claimed = true
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotClaimed
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
