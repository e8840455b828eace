package patient

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailRequired = errors.New("patient email is required")
	ErrNameRequired  = errors.New("patient first name is required")
)

// Resolution is the outcome of resolving a booking identity. Password is the
// generated plaintext credential, set only when an account was created just
// in time; it is handed to the caller once and never stored.
type Resolution struct {
	Patient  *Patient
	Created  bool
	Password string
}

type Resolver struct {
	repo Repository
	log  zerolog.Logger
}

func NewResolver(repo Repository, log zerolog.Logger) *Resolver {
	return &Resolver{
		repo: repo,
		log:  log.With().Str("component", "patient").Logger(),
	}
}

// Resolve finds the patient account a booking refers to, creating one when
// the email is unknown.
func (r *Resolver) Resolve(ctx context.Context, ident Identity) (*Resolution, error) {
	if ident.PatientID != nil {
		p, err := r.repo.GetByID(ctx, *ident.PatientID)
		if err != nil {
			return nil, err
		}
		return &Resolution{Patient: p}, nil
	}

	email := strings.TrimSpace(ident.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	existing, err := r.repo.GetByEmail(ctx, email)
	if err == nil {
		return &Resolution{Patient: existing}, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, fmt.Errorf("lookup patient by email: %w", err)
	}

	if strings.TrimSpace(ident.FirstName) == "" {
		return nil, ErrNameRequired
	}

	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("generate credentials: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash credentials: %w", err)
	}

	p := &Patient{
		ID:           uuid.New(),
		FirstName:    strings.TrimSpace(ident.FirstName),
		LastName:     strings.TrimSpace(ident.LastName),
		Email:        email,
		Phone:        strings.TrimSpace(ident.Phone),
		PasswordHash: string(hash),
	}
	if err := r.repo.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient account: %w", err)
	}

	r.log.Info().
		Str("patient_id", p.ID.String()).
		Msg("patient account created just in time")

	return &Resolution{Patient: p, Created: true, Password: password}, nil
}

func (r *Resolver) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.repo.GetByID(ctx, id)
}

func generatePassword() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
