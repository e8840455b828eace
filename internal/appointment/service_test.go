package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinivo/consult-scheduling/internal/db"
	"github.com/clinivo/consult-scheduling/internal/metrics"
	"github.com/clinivo/consult-scheduling/internal/notify"
	"github.com/clinivo/consult-scheduling/internal/patient"
	redisclient "github.com/clinivo/consult-scheduling/internal/redis"
	"github.com/clinivo/consult-scheduling/internal/slot"
)

type fakeSlots struct {
	slot     *slot.TimeSlot
	claimErr error
	claimed  []uuid.UUID
	released []uuid.UUID
}

func (f *fakeSlots) GetByID(ctx context.Context, id uuid.UUID) (*slot.TimeSlot, error) {
	if f.slot == nil || f.slot.ID != id {
		return nil, slot.ErrSlotNotFound
	}
	cp := *f.slot
	return &cp, nil
}

func (f *fakeSlots) Claim(ctx context.Context, q db.DBTX, id uuid.UUID) (*slot.TimeSlot, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	f.claimed = append(f.claimed, id)
	cp := *f.slot
	cp.Claimed = true
	return &cp, nil
}

func (f *fakeSlots) Release(ctx context.Context, q db.DBTX, id uuid.UUID) error {
	f.released = append(f.released, id)
	return nil
}

type fakeRepo struct {
	appts    map[uuid.UUID]*Appointment
	inserted []*Appointment
	events   []EventLog
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (f *fakeRepo) Insert(ctx context.Context, q db.DBTX, a *Appointment) error {
	cp := *a
	f.appts[a.ID] = &cp
	f.inserted = append(f.inserted, &cp)
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, q db.DBTX, id uuid.UUID) (*Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, q db.DBTX, id uuid.UUID, from []Status, to Status, cancelReason *string) (*Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	match := false
	for _, st := range from {
		if a.Status == st {
			match = true
		}
	}
	if !match {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	if cancelReason != nil {
		a.CancelReason = cancelReason
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return nil, nil
}

func (f *fakeRepo) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return nil, nil
}

func (f *fakeRepo) InsertEvent(ctx context.Context, q db.DBTX, ev EventLog) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeRepo) eventTypes() []string {
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fakePatients struct {
	res *patient.Resolution
	err error
}

func (f *fakePatients) Resolve(ctx context.Context, ident patient.Identity) (*patient.Resolution, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func (f *fakePatients) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	if f.res != nil && f.res.Patient.ID == id {
		return f.res.Patient, nil
	}
	return nil, patient.ErrPatientNotFound
}

type fakeNotifier struct {
	booked    []notify.AppointmentNote
	confirmed []notify.AppointmentNote
	cancelled []notify.AppointmentNote
	completed []notify.AppointmentNote
	accounts  []notify.AccountNote
}

func (f *fakeNotifier) AppointmentBooked(ctx context.Context, n notify.AppointmentNote) {
	f.booked = append(f.booked, n)
}

func (f *fakeNotifier) AppointmentConfirmed(ctx context.Context, n notify.AppointmentNote) {
	f.confirmed = append(f.confirmed, n)
}

func (f *fakeNotifier) AppointmentCancelled(ctx context.Context, n notify.AppointmentNote) {
	f.cancelled = append(f.cancelled, n)
}

func (f *fakeNotifier) VisitCompleted(ctx context.Context, n notify.AppointmentNote) {
	f.completed = append(f.completed, n)
}

func (f *fakeNotifier) AccountCreated(ctx context.Context, n notify.AccountNote) {
	f.accounts = append(f.accounts, n)
}

type nopLocker struct {
	err error
}

func (l nopLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

func testSlot() *slot.TimeSlot {
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	return &slot.TimeSlot{
		ID:             uuid.New(),
		PractitionerID: uuid.New(),
		Date:           day,
		StartTime:      day.Add(9 * time.Hour),
		EndTime:        day.Add(9*time.Hour + 30*time.Minute),
	}
}

func testPatient() *patient.Patient {
	return &patient.Patient{
		ID:        uuid.New(),
		FirstName: "Asha",
		LastName:  "Rao",
		Email:     "asha@example.com",
	}
}

type serviceFixture struct {
	svc      *Service
	mock     pgxmock.PgxPoolIface
	repo     *fakeRepo
	slots    *fakeSlots
	patients *fakePatients
	notifier *fakeNotifier
}

func newServiceFixture(t *testing.T, locker redisclient.Locker) *serviceFixture {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	f := &serviceFixture{
		mock:     mock,
		repo:     newFakeRepo(),
		slots:    &fakeSlots{slot: testSlot()},
		patients: &fakePatients{res: &patient.Resolution{Patient: testPatient()}},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(mock, f.repo, f.slots, f.patients, locker, f.notifier,
		metrics.New(prometheus.NewRegistry()), zerolog.Nop())
	return f
}

func TestBookClaimsSlotAndCreatesAppointment(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.Book(context.Background(), BookRequest{
		SlotID:  f.slots.slot.ID,
		Patient: patient.Identity{PatientID: &f.patients.res.Patient.ID},
		Reason:  "knee pain",
	})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, StatusScheduled, res.Appointment.Status)
	assert.Equal(t, f.slots.slot.ID, res.Appointment.SlotID)
	assert.Equal(t, f.slots.slot.PractitionerID, res.Appointment.PractitionerID)
	assert.Equal(t, f.patients.res.Patient.ID, res.Appointment.PatientID)
	assert.Equal(t, []uuid.UUID{f.slots.slot.ID}, f.slots.claimed)
	assert.Empty(t, res.GeneratedPassword)

	require.Len(t, f.notifier.booked, 1)
	assert.Equal(t, "asha@example.com", f.notifier.booked[0].PatientEmail)
	assert.Empty(t, f.notifier.accounts)
	assert.Contains(t, f.repo.eventTypes(), EventAppointmentBooked)
}

func TestBookSlotUnavailable(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})
	f.slots.claimErr = slot.ErrSlotUnavailable

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Book(context.Background(), BookRequest{
		SlotID:  f.slots.slot.ID,
		Patient: patient.Identity{PatientID: &f.patients.res.Patient.ID},
	})
	assert.ErrorIs(t, err, slot.ErrSlotUnavailable)
	assert.Empty(t, f.repo.inserted)
	assert.Empty(t, f.notifier.booked)
}

func TestBookLockContentionMapsToSlotUnavailable(t *testing.T) {
	f := newServiceFixture(t, nopLocker{err: redisclient.ErrLockNotAcquired})

	_, err := f.svc.Book(context.Background(), BookRequest{
		SlotID:  f.slots.slot.ID,
		Patient: patient.Identity{PatientID: &f.patients.res.Patient.ID},
	})
	assert.ErrorIs(t, err, slot.ErrSlotUnavailable)
	assert.Empty(t, f.slots.claimed)
}

func TestBookCreatesAccountJustInTime(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})
	f.patients.res.Created = true
	f.patients.res.Password = "s3cret-once"

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.Book(context.Background(), BookRequest{
		SlotID: f.slots.slot.ID,
		Patient: patient.Identity{
			FirstName: "Asha",
			Email:     "asha@example.com",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "s3cret-once", res.GeneratedPassword)
	require.Len(t, f.notifier.accounts, 1)
	assert.Equal(t, "s3cret-once", f.notifier.accounts[0].Password)
	assert.Contains(t, f.repo.eventTypes(), EventPatientAccountJIT)
}

func TestBookSurfacesCredentialsWhenClaimLost(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})
	f.patients.res.Created = true
	f.patients.res.Password = "one-time-secret"
	f.slots.claimErr = slot.ErrSlotUnavailable

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Book(context.Background(), BookRequest{
		SlotID: f.slots.slot.ID,
		Patient: patient.Identity{
			FirstName: "Asha",
			Email:     "asha@example.com",
		},
	})
	assert.ErrorIs(t, err, slot.ErrSlotUnavailable)

	// The account was created regardless, so the one shot at delivering the
	// password must still happen.
	require.Len(t, f.notifier.accounts, 1)
	assert.Equal(t, "one-time-secret", f.notifier.accounts[0].Password)
	assert.Contains(t, f.repo.eventTypes(), EventPatientAccountJIT)
	assert.NotContains(t, f.repo.eventTypes(), EventAppointmentBooked)
	assert.Empty(t, f.notifier.booked)
}

func TestConfirmScheduledAppointment(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})
	appt := &Appointment{
		ID:        uuid.New(),
		SlotID:    f.slots.slot.ID,
		PatientID: f.patients.res.Patient.ID,
		Status:    StatusScheduled,
	}
	f.repo.appts[appt.ID] = appt

	updated, err := f.svc.Confirm(context.Background(), appt.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, updated.Status)
	require.Len(t, f.notifier.confirmed, 1)
	assert.Equal(t, "asha@example.com", f.notifier.confirmed[0].PatientEmail)
	assert.Contains(t, f.repo.eventTypes(), EventAppointmentConfirmed)
}

func TestConfirmRejectsTerminalStates(t *testing.T) {
	for _, status := range []Status{StatusCancelled, StatusCompleted, StatusConfirmed} {
		f := newServiceFixture(t, nopLocker{})
		appt := &Appointment{ID: uuid.New(), Status: status}
		f.repo.appts[appt.ID] = appt

		_, err := f.svc.Confirm(context.Background(), appt.ID)
		assert.ErrorIsf(t, err, ErrInvalidTransition, "from %s", status)
	}
}

func TestConfirmUnknownAppointment(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})

	_, err := f.svc.Confirm(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelReleasesSlotInSameTransaction(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})
	appt := &Appointment{
		ID:        uuid.New(),
		SlotID:    f.slots.slot.ID,
		PatientID: f.patients.res.Patient.ID,
		Status:    StatusConfirmed,
	}
	f.repo.appts[appt.ID] = appt

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	updated, err := f.svc.Cancel(context.Background(), appt.ID, "patient request")
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, StatusCancelled, updated.Status)
	require.NotNil(t, updated.CancelReason)
	assert.Equal(t, "patient request", *updated.CancelReason)
	assert.Equal(t, []uuid.UUID{f.slots.slot.ID}, f.slots.released)
	require.Len(t, f.notifier.cancelled, 1)
	assert.Equal(t, "patient request", f.notifier.cancelled[0].CancelReason)
}

func TestCancelRejectsCompleted(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})
	appt := &Appointment{ID: uuid.New(), Status: StatusCompleted}
	f.repo.appts[appt.ID] = appt

	_, err := f.svc.Cancel(context.Background(), appt.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.slots.released)
}

func TestCompleteInTx(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})
	appt := &Appointment{ID: uuid.New(), Status: StatusConfirmed}
	f.repo.appts[appt.ID] = appt

	updated, err := f.svc.CompleteInTx(context.Background(), nil, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.Contains(t, f.repo.eventTypes(), EventAppointmentCompleted)
}

func TestCompleteInTxDistinguishesInvalidFromMissing(t *testing.T) {
	f := newServiceFixture(t, nopLocker{})
	appt := &Appointment{ID: uuid.New(), Status: StatusCompleted}
	f.repo.appts[appt.ID] = appt

	_, err := f.svc.CompleteInTx(context.Background(), nil, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.CompleteInTx(context.Background(), nil, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
