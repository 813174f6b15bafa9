package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Read and administrative operations around the core lifecycle: availability
// windows, rooms, doctors and appointment queries.

// SetAvailability upserts a doctor's recurring window for one weekday.
// Doctors manage their own calendar; admins may manage anyone's.
func (s *Service) SetAvailability(ctx context.Context, actor Actor, doctorID uuid.UUID, weekday time.Weekday, startMinute, endMinute int, active bool) (*Availability, error) {
	if !(actor.Role == RoleAdmin || (actor.Role == RoleDoctor && actor.ID == doctorID)) {
		return nil, ErrUnauthorized
	}
	if startMinute < 0 || endMinute > 24*60 || startMinute >= endMinute {
		return nil, ErrInvalidWindow
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	av, err := s.repo.UpsertAvailability(ctx, Availability{
		DoctorID:    doctorID,
		Weekday:     weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		IsActive:    active,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert availability: %w", err)
	}
	return av, nil
}

func (s *Service) ListAvailability(ctx context.Context, doctorID uuid.UUID) ([]Availability, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	avs, err := s.repo.ListAvailability(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return avs, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// AddRoom registers a new room. Admin only.
func (s *Service) AddRoom(ctx context.Context, actor Actor, room Room) (*Room, error) {
	if actor.Role != RoleAdmin {
		return nil, ErrUnauthorized
	}
	room.IsAvailable = true
	created, err := s.repo.CreateRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) ListRooms(ctx context.Context, actor Actor) ([]Room, error) {
	if !actor.IsStaff() {
		return nil, ErrUnauthorized
	}
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// GetAppointment returns a hydrated appointment. Patients see only their
// own; doctors only appointments assigned to them.
func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*AppointmentDetail, error) {
	det, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		owns := (actor.Role == RolePatient && actor.ID == det.PatientID) ||
			(actor.Role == RoleDoctor && det.DoctorID != nil && actor.ID == *det.DoctorID)
		if !owns {
			return nil, ErrUnauthorized
		}
	}
	return det, nil
}

func (s *Service) ListByPatient(ctx context.Context, actor Actor, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	if !actor.IsStaff() && !(actor.Role == RolePatient && actor.ID == patientID) {
		return nil, ErrUnauthorized
	}
	limit, offset = clampPage(limit, offset)
	appts, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

func (s *Service) ListByDoctor(ctx context.Context, actor Actor, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	if !actor.IsStaff() && !(actor.Role == RoleDoctor && actor.ID == doctorID) {
		return nil, ErrUnauthorized
	}
	limit, offset = clampPage(limit, offset)
	appts, err := s.repo.ListAppointmentsByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

// ListByStatus backs the receptionist queue (status=pending) and admin
// overviews.
func (s *Service) ListByStatus(ctx context.Context, actor Actor, status AppointmentStatus, limit, offset int) ([]AppointmentDetail, error) {
	if !actor.IsStaff() {
		return nil, ErrUnauthorized
	}
	limit, offset = clampPage(limit, offset)
	appts, err := s.repo.ListAppointmentsByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by status: %w", err)
	}
	return appts, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
