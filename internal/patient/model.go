package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *Patient) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Identity is how a booking caller names the patient: either an existing
// account id, or enough contact detail to create one just in time.
type Identity struct {
	PatientID *uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
}
