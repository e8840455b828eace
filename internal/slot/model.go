package slot

import (
	"time"

	"github.com/google/uuid"
)

// TimeSlot is a single bookable window owned by a practitioner. Start and end
// are full instants; Date carries the calendar day they fall on. A claimed
// slot is immutable except for the release path driven by cancellation.
type TimeSlot struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	Date           time.Time
	StartTime      time.Time
	EndTime        time.Time
	Claimed        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ListQuery narrows and pages a slot listing. After is an exclusive keyset
// cursor on start_time, so a listing can be restarted from where it left off.
type ListQuery struct {
	PractitionerID uuid.UUID
	Date           *time.Time
	After          *time.Time
	Limit          int
}
