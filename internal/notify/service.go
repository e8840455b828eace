package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AppointmentNote carries what the templates need about a transition.
type AppointmentNote struct {
	AppointmentID uuid.UUID
	PatientEmail  string
	PatientName   string
	Date          time.Time
	TimeRange     string
	Reason        string
	CancelReason  string
}

// AccountNote announces a just-in-time patient account with its one-time
// generated password.
type AccountNote struct {
	Email    string
	Name     string
	Password string
}

// Service renders and dispatches lifecycle notifications. Each method is
// invoked once per transition, after the transition has committed; failures
// are logged and never propagated back into the booking path.
type Service struct {
	email EmailSender
	log   zerolog.Logger
}

func NewService(email EmailSender, log zerolog.Logger) *Service {
	return &Service{
		email: email,
		log:   log.With().Str("component", "notify").Logger(),
	}
}

func (s *Service) AppointmentBooked(ctx context.Context, n AppointmentNote) {
	s.deliver(ctx, "booked", n.AppointmentID, EmailMessage{
		To:      n.PatientEmail,
		Subject: "Your consultation is scheduled",
		TextBody: fmt.Sprintf(
			"Hello %s,\n\nYour consultation on %s (%s) has been scheduled.\nReason: %s\n\nYou will receive a confirmation shortly.",
			n.PatientName, n.Date.Format("Monday, 2 January 2006"), n.TimeRange, n.Reason),
	})
}

func (s *Service) AppointmentConfirmed(ctx context.Context, n AppointmentNote) {
	s.deliver(ctx, "confirmed", n.AppointmentID, EmailMessage{
		To:      n.PatientEmail,
		Subject: "Your consultation is confirmed",
		TextBody: fmt.Sprintf(
			"Hello %s,\n\nYour consultation on %s (%s) is confirmed.",
			n.PatientName, n.Date.Format("Monday, 2 January 2006"), n.TimeRange),
	})
}

func (s *Service) AppointmentCancelled(ctx context.Context, n AppointmentNote) {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour consultation on %s (%s) has been cancelled.",
		n.PatientName, n.Date.Format("Monday, 2 January 2006"), n.TimeRange)
	if n.CancelReason != "" {
		body += "\nReason: " + n.CancelReason
	}
	s.deliver(ctx, "cancelled", n.AppointmentID, EmailMessage{
		To:       n.PatientEmail,
		Subject:  "Your consultation was cancelled",
		TextBody: body,
	})
}

func (s *Service) VisitCompleted(ctx context.Context, n AppointmentNote) {
	s.deliver(ctx, "completed", n.AppointmentID, EmailMessage{
		To:      n.PatientEmail,
		Subject: "Your visit summary is available",
		TextBody: fmt.Sprintf(
			"Hello %s,\n\nYour consultation on %s has been completed and the visit record is now available.",
			n.PatientName, n.Date.Format("Monday, 2 January 2006")),
	})
}

func (s *Service) AccountCreated(ctx context.Context, n AccountNote) {
	s.deliver(ctx, "account_created", uuid.Nil, EmailMessage{
		To:      n.Email,
		Subject: "Your patient account",
		TextBody: fmt.Sprintf(
			"Hello %s,\n\nAn account was created for you while booking your consultation.\nLogin: %s\nTemporary password: %s\n\nPlease change it after your first sign-in.",
			n.Name, n.Email, n.Password),
	})
}

func (s *Service) deliver(ctx context.Context, kind string, appointmentID uuid.UUID, msg EmailMessage) {
	if s.email == nil {
		s.log.Debug().Str("event", kind).Msg("email sender not configured, skipping")
		return
	}
	if msg.To == "" {
		s.log.Warn().Str("event", kind).Msg("no recipient address, skipping")
		return
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.log.Error().Err(err).
			Str("event", kind).
			Str("appointment_id", appointmentID.String()).
			Msg("notification delivery failed")
	}
}
