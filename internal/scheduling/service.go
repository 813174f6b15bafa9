package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hospital-scheduling/internal/clock"
	"github.com/carebridge/hospital-scheduling/internal/config"
	redisclient "github.com/carebridge/hospital-scheduling/internal/redis"
)

var (
	ErrUnauthorized      = errors.New("you do not have permission to modify this appointment")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrAlreadyProcessed  = errors.New("appointment has already been processed")
	ErrAlreadyCancelled  = errors.New("appointment is already cancelled")
	ErrCancelCompleted   = errors.New("cannot cancel a completed appointment")
	ErrCancelWindow      = errors.New("cannot cancel this close to the scheduled time")
	ErrNotScheduled      = errors.New("appointment is not scheduled")
	ErrReasonRequired    = errors.New("reason for visit is required")
	ErrInvalidWindow     = errors.New("availability window start must be before end")
)

const (
	NotificationAppointment  = "appointment"
	NotificationCancellation = "cancellation"
)

// Notifier delivers user-facing messages. Delivery is best effort: the
// lifecycle logs failures and never rolls back an appointment because a
// notification could not be written.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message, kind string)
}

// Service owns the appointment lifecycle and the slot engine. Appointment
// status is mutated only through its transition methods; time slot rows are
// written only by commitSlot and releaseSlot.
type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	clock    clock.Clock
	cfg      config.Config
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, clk clock.Clock, cfg config.Config) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
	}
}

// Request files a pending visit request for a patient. Doctor, time and
// room stay unset until a receptionist assigns them.
func (s *Service) Request(ctx context.Context, actor Actor, patientID uuid.UUID, reason string, preferredDate *time.Time) (*Appointment, error) {
	if actor.Role == RolePatient && actor.ID != patientID {
		return nil, ErrUnauthorized
	}
	if actor.Role == RoleDoctor {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if preferredDate != nil {
		d := dateOf(*preferredDate)
		preferredDate = &d
	}

	appt, err := s.repo.CreatePendingAppointment(ctx, patientID, strings.TrimSpace(reason), preferredDate)
	if err != nil {
		return nil, fmt.Errorf("create pending appointment: %w", err)
	}

	s.notify(ctx, patientID,
		"Your appointment request has been submitted. A receptionist will assign a doctor shortly.",
		NotificationAppointment)

	return appt, nil
}

// Assign converts a pending request into a scheduled appointment: doctor,
// time and room are attached and the time slot committed, all inside one
// transaction guarded by the per-slot lock.
func (s *Service) Assign(ctx context.Context, actor Actor, appointmentID, doctorID uuid.UUID, startAt time.Time) (*Appointment, error) {
	if !actor.IsStaff() {
		return nil, ErrUnauthorized
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusPending {
		return nil, ErrAlreadyProcessed
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	startAt = startAt.UTC().Truncate(time.Minute)

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, doctorID, startAt, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			if err := s.validateSlotRequest(lockCtx, tx, doctorID, startAt); err != nil {
				return err
			}
			if err := s.validatePatientAvailability(lockCtx, tx, appt.PatientID, startAt, uuid.Nil); err != nil {
				return err
			}

			roomID := s.claimRoom(lockCtx, tx, RoomConsultation)

			updated, err = tx.MarkScheduled(lockCtx, appointmentID, doctorID, startAt, roomID, actor.ID)
			if err != nil {
				if errors.Is(err, ErrAppointmentNotFound) {
					return ErrAlreadyProcessed
				}
				return fmt.Errorf("mark scheduled: %w", err)
			}

			if _, err := s.commitSlot(lockCtx, tx, doctorID, startAt, appointmentID); err != nil {
				return err
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.notify(ctx, updated.PatientID,
		fmt.Sprintf("Your appointment has been confirmed with Dr. %s on %s.", doctor.Name, formatWhen(startAt)),
		NotificationAppointment)
	s.notify(ctx, doctorID,
		fmt.Sprintf("New appointment assigned on %s.", formatWhen(startAt)),
		NotificationAppointment)

	return updated, nil
}

// Reschedule moves a scheduled appointment to a new doctor and/or time. The
// cancellation-window rule applies to the old slot; the old slot is released
// and the new one committed in the same transaction.
func (s *Service) Reschedule(ctx context.Context, actor Actor, appointmentID, doctorID uuid.UUID, startAt time.Time) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(actor, appt); err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled || appt.DoctorID == nil || appt.ScheduledAt == nil {
		return nil, ErrNotScheduled
	}
	if err := s.checkCancelWindow(appt); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	startAt = startAt.UTC().Truncate(time.Minute)

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, doctorID, startAt, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			if err := s.validateSlotRequest(lockCtx, tx, doctorID, startAt); err != nil {
				return err
			}
			if err := s.validatePatientAvailability(lockCtx, tx, appt.PatientID, startAt, appointmentID); err != nil {
				return err
			}

			// The update swaps on the old doctor and time, so a competing
			// reschedule that already moved this appointment misses here
			// and the whole transaction rolls back before any slot change.
			updated, err = tx.UpdateSchedule(lockCtx, appointmentID, doctorID, startAt, *appt.DoctorID, *appt.ScheduledAt)
			if err != nil {
				if errors.Is(err, ErrAppointmentNotFound) {
					return ErrNotScheduled
				}
				return fmt.Errorf("update schedule: %w", err)
			}

			if _, err := s.releaseSlot(lockCtx, tx, appt); err != nil {
				return err
			}

			if _, err := s.commitSlot(lockCtx, tx, doctorID, startAt, appointmentID); err != nil {
				return err
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.notify(ctx, updated.PatientID,
		fmt.Sprintf("Your appointment has been rescheduled to %s.", formatWhen(startAt)),
		NotificationAppointment)

	return updated, nil
}

// Complete marks a visit done. The booked time slot is left in place as a
// historical record; the room returns to the pool.
func (s *Service) Complete(ctx context.Context, actor Actor, appointmentID uuid.UUID, notes *string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleDoctor || appt.DoctorID == nil || *appt.DoctorID != actor.ID {
		return nil, ErrUnauthorized
	}
	if appt.Status != StatusScheduled {
		return nil, ErrNotScheduled
	}

	var updated *Appointment
	err = s.repo.InTx(ctx, func(tx Repository) error {
		updated, err = tx.MarkCompleted(ctx, appointmentID, notes)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrNotScheduled
			}
			return fmt.Errorf("mark completed: %w", err)
		}
		if appt.RoomID != nil {
			if err := tx.SetRoomAvailability(ctx, *appt.RoomID, true); err != nil {
				return fmt.Errorf("free room: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Cancel withdraws a pending request or cancels a scheduled appointment.
// For scheduled appointments the cancellation-window rule applies, the time
// slot is released and the room freed; all state changes commit together.
func (s *Service) Cancel(ctx context.Context, actor Actor, appointmentID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(actor, appt); err != nil {
		return nil, err
	}

	switch appt.Status {
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	case StatusCompleted:
		return nil, ErrCancelCompleted
	case StatusScheduled:
		if err := s.checkCancelWindow(appt); err != nil {
			return nil, err
		}
	}

	var updated *Appointment
	err = s.repo.InTx(ctx, func(tx Repository) error {
		if _, err := s.releaseSlot(ctx, tx, appt); err != nil {
			return err
		}
		if appt.RoomID != nil {
			if err := tx.SetRoomAvailability(ctx, *appt.RoomID, true); err != nil {
				return fmt.Errorf("free room: %w", err)
			}
		}
		updated, err = tx.MarkCancelled(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrAlreadyCancelled
			}
			return fmt.Errorf("mark cancelled: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if appt.ScheduledAt != nil {
		s.notify(ctx, appt.PatientID,
			fmt.Sprintf("Your appointment on %s has been cancelled.", formatWhen(*appt.ScheduledAt)),
			NotificationCancellation)
		if appt.DoctorID != nil {
			s.notify(ctx, *appt.DoctorID,
				fmt.Sprintf("Appointment on %s has been cancelled.", formatWhen(*appt.ScheduledAt)),
				NotificationCancellation)
		}
	} else {
		s.notify(ctx, appt.PatientID,
			"Your appointment request has been withdrawn.",
			NotificationCancellation)
	}

	return updated, nil
}

// checkCancelWindow enforces the minimum lead time for cancelling or
// rescheduling a scheduled appointment.
func (s *Service) checkCancelWindow(appt *Appointment) error {
	if appt.ScheduledAt == nil {
		return nil
	}
	if !s.clock.Now().Add(s.cfg.CancelThreshold).Before(*appt.ScheduledAt) {
		return ErrCancelWindow
	}
	return nil
}

// authorizeOwner admits the owning patient and staff. Runs before any
// business-rule check so callers can distinguish authorization failures
// from validation rejections.
func (s *Service) authorizeOwner(actor Actor, appt *Appointment) error {
	if actor.IsStaff() {
		return nil
	}
	if actor.Role == RolePatient && actor.ID == appt.PatientID {
		return nil
	}
	return ErrUnauthorized
}

// claimRoom finds a free room of the requested type and marks it occupied
// inside the caller's transaction. Room assignment is best effort: no free
// room means the appointment is scheduled without one.
func (s *Service) claimRoom(ctx context.Context, tx Repository, roomType RoomType) *uuid.UUID {
	room, err := tx.FindAvailableRoom(ctx, roomType)
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			log.Printf("find available room: %v", err)
		}
		return nil
	}
	if err := tx.SetRoomAvailability(ctx, room.ID, false); err != nil {
		log.Printf("claim room %s: %v", room.ID, err)
		return nil
	}
	return &room.ID
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, message, kind string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userID, message, kind)
}

func formatWhen(t time.Time) string {
	return t.UTC().Format("January 2, 2006 at 15:04")
}
