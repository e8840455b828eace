package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(ctx context.Context, msg EmailMessage) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func sampleNote() AppointmentNote {
	return AppointmentNote{
		AppointmentID: uuid.New(),
		PatientEmail:  "asha@example.com",
		PatientName:   "Asha Rao",
		Date:          time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		TimeRange:     "09:00-09:30",
		Reason:        "knee pain",
	}
}

func TestAppointmentBooked(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, zerolog.Nop())

	svc.AppointmentBooked(context.Background(), sampleNote())

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "asha@example.com", msg.To)
	assert.Equal(t, "Your consultation is scheduled", msg.Subject)
	assert.Contains(t, msg.TextBody, "Asha Rao")
	assert.Contains(t, msg.TextBody, "Monday, 14 September 2026")
	assert.Contains(t, msg.TextBody, "09:00-09:30")
	assert.Contains(t, msg.TextBody, "knee pain")
}

func TestAppointmentCancelledIncludesReason(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, zerolog.Nop())

	n := sampleNote()
	n.CancelReason = "practitioner unavailable"
	svc.AppointmentCancelled(context.Background(), n)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].TextBody, "practitioner unavailable")

	n.CancelReason = ""
	svc.AppointmentCancelled(context.Background(), n)
	require.Len(t, sender.sent, 2)
	assert.NotContains(t, sender.sent[1].TextBody, "Reason:")
}

func TestAccountCreatedCarriesOneTimePassword(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, zerolog.Nop())

	svc.AccountCreated(context.Background(), AccountNote{
		Email:    "dev@example.com",
		Name:     "Dev Mehta",
		Password: "s3cret-once",
	})

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].TextBody, "s3cret-once")
}

func TestDeliverSkipsWithoutSender(t *testing.T) {
	svc := NewService(nil, zerolog.Nop())

	// Must not panic; delivery is simply skipped.
	svc.AppointmentBooked(context.Background(), sampleNote())
	svc.AccountCreated(context.Background(), AccountNote{Email: "x@example.com"})
}

func TestDeliverSkipsEmptyRecipient(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, zerolog.Nop())

	n := sampleNote()
	n.PatientEmail = ""
	svc.AppointmentConfirmed(context.Background(), n)

	assert.Empty(t, sender.sent)
}

func TestDeliverSwallowsSendErrors(t *testing.T) {
	sender := &captureSender{err: errors.New("ses throttled")}
	svc := NewService(sender, zerolog.Nop())

	// Errors are logged, never propagated into the booking path.
	svc.VisitCompleted(context.Background(), sampleNote())
	require.Len(t, sender.sent, 1)
}
