package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinivo/consult-scheduling/internal/db"
	"github.com/clinivo/consult-scheduling/internal/metrics"
	"github.com/clinivo/consult-scheduling/internal/notify"
	"github.com/clinivo/consult-scheduling/internal/patient"
	redisclient "github.com/clinivo/consult-scheduling/internal/redis"
	"github.com/clinivo/consult-scheduling/internal/slot"
)

// SlotStore is the slice of the slot repository the booking engine and the
// lifecycle are allowed to touch: claim on booking, release on cancellation.
type SlotStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*slot.TimeSlot, error)
	Claim(ctx context.Context, q db.DBTX, id uuid.UUID) (*slot.TimeSlot, error)
	Release(ctx context.Context, q db.DBTX, id uuid.UUID) error
}

// Patients resolves booking identities and looks up accounts for
// notification rendering.
type Patients interface {
	Resolve(ctx context.Context, ident patient.Identity) (*patient.Resolution, error)
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Notifier consumes lifecycle events. Invoked at most once per transition,
// after commit.
type Notifier interface {
	AppointmentBooked(ctx context.Context, n notify.AppointmentNote)
	AppointmentConfirmed(ctx context.Context, n notify.AppointmentNote)
	AppointmentCancelled(ctx context.Context, n notify.AppointmentNote)
	VisitCompleted(ctx context.Context, n notify.AppointmentNote)
	AccountCreated(ctx context.Context, n notify.AccountNote)
}

type Service struct {
	db       db.Pool
	repo     Repository
	slots    SlotStore
	patients Patients
	locker   redisclient.Locker
	notifier Notifier
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewService(pool db.Pool, repo Repository, slots SlotStore, patients Patients, locker redisclient.Locker, notifier Notifier, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		db:       pool,
		repo:     repo,
		slots:    slots,
		patients: patients,
		locker:   locker,
		notifier: notifier,
		metrics:  m,
		log:      log.With().Str("component", "appointment").Logger(),
	}
}

type BookRequest struct {
	SlotID   uuid.UUID
	Patient  patient.Identity
	Reason   string
	Symptoms string
}

type BookingResult struct {
	Appointment *Appointment
	Slot        *slot.TimeSlot
	Patient     *patient.Patient
	// GeneratedPassword is set only when the patient account was created just
	// in time as part of this booking.
	GeneratedPassword string
}

// Book claims the slot and creates the appointment as one atomic unit. A per
// slot Redis lock serializes concurrent attempts; the conditional UPDATE on
// claimed is the authoritative compare-and-set. Losers get
// slot.ErrSlotUnavailable and must re-query availability, never retry
// silently.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookingResult, error) {
	start := time.Now()

	res, err := s.patients.Resolve(ctx, req.Patient)
	if err != nil {
		return nil, err
	}
	if res.Created {
		// The account outlives a lost claim and the one-time password cannot
		// be resurfaced later, so credentials go out before the claim.
		s.announceAccount(ctx, res)
	}

	var (
		booked      *Appointment
		claimedSlot *slot.TimeSlot
	)

	err = s.locker.WithLock(ctx, "slot:"+req.SlotID.String(), func(lockCtx context.Context) error {
		tx, err := s.db.Begin(lockCtx)
		if err != nil {
			return fmt.Errorf("begin booking tx: %w", err)
		}
		defer tx.Rollback(lockCtx) //nolint:errcheck

		claimedSlot, err = s.slots.Claim(lockCtx, tx, req.SlotID)
		if err != nil {
			return err
		}

		booked = &Appointment{
			ID:             uuid.New(),
			SlotID:         claimedSlot.ID,
			PractitionerID: claimedSlot.PractitionerID,
			PatientID:      res.Patient.ID,
			Reason:         req.Reason,
			Symptoms:       req.Symptoms,
			Status:         StatusScheduled,
		}
		if err := s.repo.Insert(lockCtx, tx, booked); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		s.insertEvent(lockCtx, tx, booked.ID, EventAppointmentBooked, map[string]any{
			"slot_id":    claimedSlot.ID.String(),
			"patient_id": res.Patient.ID.String(),
		})

		return tx.Commit(lockCtx)
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			err = slot.ErrSlotUnavailable
		}
		result := "error"
		if errors.Is(err, slot.ErrSlotUnavailable) {
			result = "conflict"
		}
		s.metrics.ObserveBooking(result, time.Since(start).Seconds())
		return nil, err
	}

	s.metrics.ObserveBooking("success", time.Since(start).Seconds())

	s.notifier.AppointmentBooked(ctx, s.note(booked, claimedSlot, res.Patient))

	s.log.Info().
		Str("appointment_id", booked.ID.String()).
		Str("slot_id", claimedSlot.ID.String()).
		Str("patient_id", res.Patient.ID.String()).
		Msg("appointment booked")

	return &BookingResult{
		Appointment:       booked,
		Slot:              claimedSlot,
		Patient:           res.Patient,
		GeneratedPassword: res.Password,
	}, nil
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusConfirmed) {
		s.metrics.ObserveTransition("confirmed", "invalid")
		return nil, fmt.Errorf("%w: %s -> confirmed", ErrInvalidTransition, appt.Status)
	}

	updated, err := s.repo.UpdateStatus(ctx, nil, id, []Status{StatusScheduled}, StatusConfirmed, nil)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Raced with another transition.
			s.metrics.ObserveTransition("confirmed", "invalid")
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.metrics.ObserveTransition("confirmed", "ok")
	s.insertEvent(ctx, nil, updated.ID, EventAppointmentConfirmed, map[string]any{})
	s.notifyTransition(ctx, updated, s.notifier.AppointmentConfirmed)

	return updated, nil
}

// Cancel ends a scheduled or confirmed appointment and releases its slot in
// the same transaction, so the slot becomes bookable again exactly when the
// cancellation is visible.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		s.metrics.ObserveTransition("cancelled", "invalid")
		return nil, fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, appt.Status)
	}

	var updated *Appointment

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	updated, err = s.repo.UpdateStatus(ctx, tx, id, []Status{StatusScheduled, StatusConfirmed}, StatusCancelled, &reason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.metrics.ObserveTransition("cancelled", "invalid")
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if err := s.slots.Release(ctx, tx, appt.SlotID); err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}

	s.insertEvent(ctx, tx, updated.ID, EventAppointmentCancelled, map[string]any{
		"reason": reason,
	})

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}

	s.metrics.ObserveTransition("cancelled", "ok")
	s.notifyTransition(ctx, updated, s.notifier.AppointmentCancelled)

	s.log.Info().
		Str("appointment_id", updated.ID.String()).
		Str("slot_id", appt.SlotID.String()).
		Msg("appointment cancelled, slot released")

	return updated, nil
}

// CompleteInTx marks the appointment completed inside a caller-owned
// transaction. It exists for the visit record manager, which bundles the
// record insert and the completion into one commit so neither can be
// observed without the other. There is no standalone Complete.
func (s *Service) CompleteInTx(ctx context.Context, q db.DBTX, id uuid.UUID) (*Appointment, error) {
	updated, err := s.repo.UpdateStatus(ctx, q, id, []Status{StatusScheduled, StatusConfirmed}, StatusCompleted, nil)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			if _, getErr := s.repo.GetByID(ctx, q, id); getErr == nil {
				s.metrics.ObserveTransition("completed", "invalid")
				return nil, ErrInvalidTransition
			}
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.insertEvent(ctx, q, updated.ID, EventAppointmentCompleted, map[string]any{})
	s.metrics.ObserveTransition("completed", "ok")
	return updated, nil
}

// NotifyCompleted dispatches the completed-visit notification. The visit
// record manager calls it once its transaction has committed.
func (s *Service) NotifyCompleted(ctx context.Context, a *Appointment) {
	s.notifyTransition(ctx, a, s.notifier.VisitCompleted)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, nil, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByPractitioner(ctx, practitionerID, limit, offset)
}

func (s *Service) note(a *Appointment, sl *slot.TimeSlot, p *patient.Patient) notify.AppointmentNote {
	n := notify.AppointmentNote{
		AppointmentID: a.ID,
		Reason:        a.Reason,
	}
	if a.CancelReason != nil {
		n.CancelReason = *a.CancelReason
	}
	if sl != nil {
		n.Date = sl.Date
		n.TimeRange = sl.StartTime.Format("15:04") + "-" + sl.EndTime.Format("15:04")
	}
	if p != nil {
		n.PatientEmail = p.Email
		n.PatientName = p.FullName()
	}
	return n
}

func (s *Service) notifyTransition(ctx context.Context, a *Appointment, fn func(context.Context, notify.AppointmentNote)) {
	sl, err := s.slots.GetByID(ctx, a.SlotID)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("load slot for notification")
		sl = nil
	}
	p, err := s.patients.GetByID(ctx, a.PatientID)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("load patient for notification")
		p = nil
	}
	fn(ctx, s.note(a, sl, p))
}

// announceAccount records and emails just-in-time credentials. There is no
// appointment to attach the event to yet, so it is logged without one.
func (s *Service) announceAccount(ctx context.Context, res *patient.Resolution) {
	data, err := json.Marshal(map[string]any{
		"patient_id": res.Patient.ID.String(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("event", EventPatientAccountJIT).Msg("marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: EventPatientAccountJIT,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if err := s.repo.InsertEvent(ctx, nil, ev); err != nil {
		s.log.Warn().Err(err).
			Str("event", EventPatientAccountJIT).
			Str("patient_id", res.Patient.ID.String()).
			Msg("insert event log")
	}

	s.notifier.AccountCreated(ctx, notify.AccountNote{
		Email:    res.Patient.Email,
		Name:     res.Patient.FullName(),
		Password: res.Password,
	})
}

func (s *Service) insertEvent(ctx context.Context, q db.DBTX, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, q, ev); err != nil {
		s.log.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
