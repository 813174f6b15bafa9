package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/hospital-scheduling/internal/clock"
	"github.com/carebridge/hospital-scheduling/internal/config"
)

// Monday, 08:00 UTC.
var testNow = time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		AdvanceBookingDays: 90,
		CancelThreshold:    2 * time.Hour,
		SlotDuration:       30 * time.Minute,
		BusinessHoursStart: 9,
		BusinessHoursEnd:   17,
	}
}

type noopLocker struct{}

func (noopLocker) WithSlotLock(ctx context.Context, doctorID uuid.UUID, startAt time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingNotifier struct {
	sent []struct {
		UserID  uuid.UUID
		Message string
		Kind    string
	}
}

func (n *recordingNotifier) Notify(ctx context.Context, userID uuid.UUID, message, kind string) {
	n.sent = append(n.sent, struct {
		UserID  uuid.UUID
		Message string
		Kind    string
	}{userID, message, kind})
}

func (n *recordingNotifier) sentTo(userID uuid.UUID) int {
	count := 0
	for _, s := range n.sent {
		if s.UserID == userID {
			count++
		}
	}
	return count
}

func newTestService(repo *fakeRepo) (*Service, *recordingNotifier, *clock.Fixed) {
	clk := &clock.Fixed{T: testNow}
	notifier := &recordingNotifier{}
	svc := NewService(repo, noopLocker{}, notifier, clk, testConfig())
	return svc, notifier, clk
}

func TestOpenSlotsFullDay(t *testing.T) {
	repo := newFakeRepo(testNow)
	svc, _, _ := newTestService(repo)

	doctorID := repo.addDoctor("Cardiology")
	repo.addAvailability(doctorID, time.Tuesday, 9*60, 17*60)

	tuesday := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	slots, err := svc.OpenSlots(context.Background(), doctorID, tuesday)
	require.NoError(t, err)

	// 9:00 through 16:30 on the half-hour grid.
	require.Len(t, slots, 16)
	assert.Equal(t, tuesday.Add(9*time.Hour), slots[0])
	assert.Equal(t, tuesday.Add(16*time.Hour+30*time.Minute), slots[len(slots)-1])
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].After(slots[i-1]), "slots must be ascending")
	}
}

func TestOpenSlotsExcludesBooked(t *testing.T) {
	repo := newFakeRepo(testNow)
	svc, _, _ := newTestService(repo)

	doctorID := repo.addDoctor("Cardiology")
	repo.addAvailability(doctorID, time.Tuesday, 9*60, 17*60)

	tuesday := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	booked := tuesday.Add(10 * time.Hour)
	apptID := uuid.New()
	require.NoError(t, repo.CreateSlot(context.Background(), TimeSlot{
		ID:            uuid.New(),
		DoctorID:      doctorID,
		StartAt:       booked,
		EndAt:         booked.Add(30 * time.Minute),
		IsBooked:      true,
		AppointmentID: &apptID,
	}))

	slots, err := svc.OpenSlots(context.Background(), doctorID, tuesday)
	require.NoError(t, err)

	require.Len(t, slots, 15)
	assert.NotContains(t, slots, booked)
}

func TestOpenSlotsExcludesPartialFinalSlot(t *testing.T) {
	repo := newFakeRepo(testNow)
	svc, _, _ := newTestService(repo)

	doctorID := repo.addDoctor("Cardiology")
	// 45-minute window only fits one 30-minute slot.
	repo.addAvailability(doctorID, time.Tuesday, 9*60, 9*60+45)

	tuesday := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	slots, err := svc.OpenSlots(context.Background(), doctorID, tuesday)
	require.NoError(t, err)

	require.Len(t, slots, 1)
	assert.Equal(t, tuesday.Add(9*time.Hour), slots[0])
}

func TestOpenSlotsNoWindow(t *testing.T) {
	repo := newFakeRepo(testNow)
	svc, _, _ := newTestService(repo)

	doctorID := repo.addDoctor("Cardiology")
	repo.addAvailability(doctorID, time.Tuesday, 9*60, 17*60)

	// Wednesday has no window at all.
	wednesday := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)
	slots, err := svc.OpenSlots(context.Background(), doctorID, wednesday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestOpenSlotsInactiveWindow(t *testing.T) {
	repo := newFakeRepo(testNow)
	svc, _, _ := newTestService(repo)

	doctorID := repo.addDoctor("Cardiology")
	repo.addAvailability(doctorID, time.Tuesday, 9*60, 17*60)
	repo.availability[doctorID][time.Tuesday].IsActive = false

	tuesday := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	slots, err := svc.OpenSlots(context.Background(), doctorID, tuesday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestValidateSlotRequestPrecedence(t *testing.T) {
	repo := newFakeRepo(testNow)
	svc, _, _ := newTestService(repo)

	doctorID := repo.addDoctor("Cardiology")
	repo.addAvailability(doctorID, time.Tuesday, 9*60, 17*60)

	tuesday10 := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	t.Run("past date", func(t *testing.T) {
		err := svc.ValidateSlotRequest(context.Background(), doctorID, testNow.AddDate(0, 0, -1))
		assert.ErrorIs(t, err, ErrPastDate)
	})

	t.Run("too far ahead", func(t *testing.T) {
		err := svc.ValidateSlotRequest(context.Background(), doctorID, testNow.AddDate(0, 0, 91))
		assert.ErrorIs(t, err, ErrTooFarAhead)
	})

	t.Run("horizon boundary is bookable", func(t *testing.T) {
		// Day 90 lands on a Sunday with no window; the horizon check
		// itself must pass, so the rejection is the availability one.
		err := svc.ValidateSlotRequest(context.Background(), doctorID, testNow.AddDate(0, 0, 90))
		assert.ErrorIs(t, err, ErrDoctorNotAvailable)
	})

	t.Run("no window that weekday", func(t *testing.T) {
		wednesday := time.Date(2026, 9, 9, 10, 0, 0, 0, time.UTC)
		err := svc.ValidateSlotRequest(context.Background(), doctorID, wednesday)
		assert.ErrorIs(t, err, ErrDoctorNotAvailable)
	})

	t.Run("outside working hours", func(t *testing.T) {
		before := time.Date(2026, 9, 8, 8, 30, 0, 0, time.UTC)
		err := svc.ValidateSlotRequest(context.Background(), doctorID, before)
		assert.ErrorIs(t, err, ErrOutsideWorkingHours)

		// End of window is exclusive.
		atEnd := time.Date(2026, 9, 8, 17, 0, 0, 0, time.UTC)
		err = svc.ValidateSlotRequest(context.Background(), doctorID, atEnd)
		assert.ErrorIs(t, err, ErrOutsideWorkingHours)
	})

	t.Run("slot already booked", func(t *testing.T) {
		apptID := uuid.New()
		require.NoError(t, repo.CreateSlot(context.Background(), TimeSlot{
			ID: uuid.New(), DoctorID: doctorID, StartAt: tuesday10,
			EndAt: tuesday10.Add(30 * time.Minute), IsBooked: true, AppointmentID: &apptID,
		}))

		err := svc.ValidateSlotRequest(context.Background(), doctorID, tuesday10)
		assert.ErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("doctor busy without slot row", func(t *testing.T) {
		at := time.Date(2026, 9, 8, 11, 0, 0, 0, time.UTC)
		patientID := repo.addPatient()
		appt, err := repo.CreatePendingAppointment(context.Background(), patientID, "checkup", nil)
		require.NoError(t, err)
		_, err = repo.MarkScheduled(context.Background(), appt.ID, doctorID, at, nil, uuid.New())
		require.NoError(t, err)

		err = svc.ValidateSlotRequest(context.Background(), doctorID, at)
		assert.ErrorIs(t, err, ErrDoctorBusy)
	})

	t.Run("valid slot", func(t *testing.T) {
		at := time.Date(2026, 9, 8, 14, 0, 0, 0, time.UTC)
		err := svc.ValidateSlotRequest(context.Background(), doctorID, at)
		assert.NoError(t, err)
	})
}

func TestValidatePatientAvailability(t *testing.T) {
	repo := newFakeRepo(testNow)
	svc, _, _ := newTestService(repo)

	doctorID := repo.addDoctor("Cardiology")
	patientID := repo.addPatient()

	at := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	require.NoError(t, svc.ValidatePatientAvailability(context.Background(), patientID, at))

	appt, err := repo.CreatePendingAppointment(context.Background(), patientID, "checkup", nil)
	require.NoError(t, err)
	_, err = repo.MarkScheduled(context.Background(), appt.ID, doctorID, at, nil, uuid.New())
	require.NoError(t, err)

	err = svc.ValidatePatientAvailability(context.Background(), patientID, at)
	assert.ErrorIs(t, err, ErrPatientBusy)

	// A cancelled appointment no longer blocks the patient.
	_, err = repo.MarkCancelled(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.NoError(t, svc.ValidatePatientAvailability(context.Background(), patientID, at))
}

func TestReleaseSlotIdempotent(t *testing.T) {
	repo := newFakeRepo(testNow)
	svc, _, _ := newTestService(repo)

	doctorID := repo.addDoctor("Cardiology")
	patientID := repo.addPatient()
	at := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	appt, err := repo.CreatePendingAppointment(context.Background(), patientID, "checkup", nil)
	require.NoError(t, err)
	scheduled, err := repo.MarkScheduled(context.Background(), appt.ID, doctorID, at, nil, uuid.New())
	require.NoError(t, err)
	_, err = svc.commitSlot(context.Background(), repo, doctorID, at, appt.ID)
	require.NoError(t, err)

	freed, err := svc.releaseSlot(context.Background(), repo, scheduled)
	require.NoError(t, err)
	assert.True(t, freed)

	// Second release finds nothing and is not an error.
	freed, err = svc.releaseSlot(context.Background(), repo, scheduled)
	require.NoError(t, err)
	assert.False(t, freed)
}

func TestCommitSlotDuplicateMapsToSlotTaken(t *testing.T) {
	repo := newFakeRepo(testNow)
	svc, _, _ := newTestService(repo)

	doctorID := repo.addDoctor("Cardiology")
	at := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	_, err := svc.commitSlot(context.Background(), repo, doctorID, at, uuid.New())
	require.NoError(t, err)

	_, err = svc.commitSlot(context.Background(), repo, doctorID, at, uuid.New())
	assert.ErrorIs(t, err, ErrSlotTaken)
}
