package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot rejection reasons, in validation precedence order. They are returned
// as values so callers can show the exact reason to the end user.
var (
	ErrPastDate            = errors.New("cannot book appointments for past dates")
	ErrTooFarAhead         = errors.New("cannot book appointments that far in advance")
	ErrDoctorNotAvailable  = errors.New("doctor is not available on this day")
	ErrOutsideWorkingHours = errors.New("selected time is outside doctor's working hours")
	ErrSlotTaken           = errors.New("this time slot is already booked")
	ErrDoctorBusy          = errors.New("doctor already has an appointment at this time")
	ErrPatientBusy         = errors.New("patient already has an appointment at this time")
)

// OpenSlots computes the bookable slot start times for a doctor on a date:
// the weekday availability window walked in slot-duration steps, minus the
// starts of already-booked time slots. A slot that would run past the end of
// the window is not offered. Results are ascending and recomputed on every
// call, so concurrent bookings can change them between calls.
func (s *Service) OpenSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]time.Time, error) {
	return s.openSlots(ctx, s.repo, doctorID, date)
}

func (s *Service) openSlots(ctx context.Context, r Repository, doctorID uuid.UUID, date time.Time) ([]time.Time, error) {
	day := dateOf(date)

	av, err := r.GetAvailability(ctx, doctorID, day.Weekday())
	if err != nil {
		if errors.Is(err, ErrAvailabilityNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load availability: %w", err)
	}
	if !av.IsActive {
		return nil, nil
	}

	slotMinutes := int(s.cfg.SlotDuration / time.Minute)

	var all []time.Time
	for m := av.StartMinute; m+slotMinutes <= av.EndMinute; m += slotMinutes {
		all = append(all, day.Add(time.Duration(m)*time.Minute))
	}
	if len(all) == 0 {
		return nil, nil
	}

	booked, err := r.ListBookedSlots(ctx, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}

	taken := make(map[time.Time]struct{}, len(booked))
	for _, slot := range booked {
		taken[slot.StartAt.UTC()] = struct{}{}
	}

	open := all[:0]
	for _, start := range all {
		if _, ok := taken[start]; !ok {
			open = append(open, start)
		}
	}
	return open, nil
}

// ValidateSlotRequest checks a requested (doctor, start time) against the
// booking rules. The first failing rule wins; nil means the slot may be
// committed. Passing validation does not reserve anything: commitSlot must
// run in the same locked transaction, and the booked-slot unique index is
// the final arbiter.
func (s *Service) ValidateSlotRequest(ctx context.Context, doctorID uuid.UUID, startAt time.Time) error {
	return s.validateSlotRequest(ctx, s.repo, doctorID, startAt)
}

func (s *Service) validateSlotRequest(ctx context.Context, r Repository, doctorID uuid.UUID, startAt time.Time) error {
	startAt = startAt.UTC()
	day := dateOf(startAt)
	today := dateOf(s.clock.Now())

	if day.Before(today) {
		return ErrPastDate
	}
	if day.After(today.AddDate(0, 0, s.cfg.AdvanceBookingDays)) {
		return ErrTooFarAhead
	}

	av, err := r.GetAvailability(ctx, doctorID, day.Weekday())
	if err != nil {
		if errors.Is(err, ErrAvailabilityNotFound) {
			return ErrDoctorNotAvailable
		}
		return fmt.Errorf("load availability: %w", err)
	}
	if !av.IsActive {
		return ErrDoctorNotAvailable
	}
	if !av.Contains(minuteOfDay(startAt)) {
		return ErrOutsideWorkingHours
	}

	_, err = r.GetBookedSlot(ctx, doctorID, startAt)
	if err == nil {
		return ErrSlotTaken
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return fmt.Errorf("check booked slot: %w", err)
	}

	// Redundant check via the appointment table. The time slot is the
	// authoritative occupancy record, but an appointment row pointing at
	// this time with no matching slot would otherwise slip through.
	_, err = r.FindActiveDoctorAppointment(ctx, doctorID, startAt)
	if err == nil {
		return ErrDoctorBusy
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("check doctor appointments: %w", err)
	}

	return nil
}

// ValidatePatientAvailability rejects when the patient already holds a
// non-cancelled appointment at that exact time, with any doctor.
func (s *Service) ValidatePatientAvailability(ctx context.Context, patientID uuid.UUID, startAt time.Time) error {
	return s.validatePatientAvailability(ctx, s.repo, patientID, startAt, uuid.Nil)
}

// exclude names an appointment whose own booking is not a conflict, so a
// reschedule can keep the time while changing the doctor.
func (s *Service) validatePatientAvailability(ctx context.Context, r Repository, patientID uuid.UUID, startAt time.Time, exclude uuid.UUID) error {
	other, err := r.FindActivePatientAppointment(ctx, patientID, startAt.UTC())
	if err == nil {
		if other.ID == exclude {
			return nil
		}
		return ErrPatientBusy
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("check patient appointments: %w", err)
	}
	return nil
}

// commitSlot inserts the booked time slot for an appointment. The caller
// must have validated the request in the same transaction; a duplicate-key
// insert is reported as ErrSlotTaken, the same rejection a losing racer
// would have seen from the pre-check.
func (s *Service) commitSlot(ctx context.Context, r Repository, doctorID uuid.UUID, startAt time.Time, appointmentID uuid.UUID) (*TimeSlot, error) {
	slot := TimeSlot{
		ID:            uuid.New(),
		DoctorID:      doctorID,
		StartAt:       startAt.UTC(),
		EndAt:         startAt.UTC().Add(s.cfg.SlotDuration),
		IsBooked:      true,
		AppointmentID: &appointmentID,
	}

	if err := r.CreateSlot(ctx, slot); err != nil {
		if errors.Is(err, ErrDuplicateSlot) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("commit slot: %w", err)
	}
	return &slot, nil
}

// releaseSlot deletes the time slot owned by an appointment. Idempotent:
// releasing an appointment that holds no slot reports false, never an error.
func (s *Service) releaseSlot(ctx context.Context, r Repository, appt *Appointment) (bool, error) {
	if appt.DoctorID == nil || appt.ScheduledAt == nil {
		return false, nil
	}
	freed, err := r.DeleteSlot(ctx, *appt.DoctorID, appt.ScheduledAt.UTC(), appt.ID)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return freed, nil
}
