package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrAvailabilityNotFound = errors.New("availability window not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrSlotNotFound         = errors.New("time slot not found")

	// ErrDuplicateSlot is returned by CreateSlot when the booked-slot
	// uniqueness constraint fires.
	ErrDuplicateSlot = errors.New("booked time slot already exists")

	// ErrDuplicateRoom is returned by CreateRoom on a room number clash.
	ErrDuplicateRoom = errors.New("room number already exists")
)

// Repository contains all DB interactions needed by the scheduling service.
// InTx runs fn against a transaction-scoped Repository; every mutation a
// lifecycle transition makes must go through one InTx call so the status
// change and its slot/room side effects commit or roll back together.
type Repository interface {
	InTx(ctx context.Context, fn func(Repository) error) error

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error)

	GetAvailability(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Availability, error)
	ListAvailability(ctx context.Context, doctorID uuid.UUID) ([]Availability, error)
	UpsertAvailability(ctx context.Context, av Availability) (*Availability, error)

	// Booked time slots for one doctor within [from, to).
	ListBookedSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error)
	GetBookedSlot(ctx context.Context, doctorID uuid.UUID, startAt time.Time) (*TimeSlot, error)
	CreateSlot(ctx context.Context, slot TimeSlot) error
	// DeleteSlot removes the slot owned by the given appointment. It reports
	// whether a slot was actually deleted; absence is not an error.
	DeleteSlot(ctx context.Context, doctorID uuid.UUID, startAt time.Time, appointmentID uuid.UUID) (bool, error)

	CreatePendingAppointment(ctx context.Context, patientID uuid.UUID, reason string, preferredDate *time.Time) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)
	ListAppointmentsByStatus(ctx context.Context, status AppointmentStatus, limit, offset int) ([]AppointmentDetail, error)

	// Conflict checks against the appointment table. Cancelled rows are
	// ignored; a pending row never matches because it has no scheduled time.
	FindActiveDoctorAppointment(ctx context.Context, doctorID uuid.UUID, at time.Time) (*Appointment, error)
	FindActivePatientAppointment(ctx context.Context, patientID uuid.UUID, at time.Time) (*Appointment, error)

	// Status transitions are compare-and-swap updates keyed on the current
	// status; a vanished row means the appointment changed state concurrently.
	// UpdateSchedule additionally swaps on the previous doctor and time so
	// competing reschedules of the same appointment cannot both win.
	MarkScheduled(ctx context.Context, id, doctorID uuid.UUID, at time.Time, roomID *uuid.UUID, assignedBy uuid.UUID) (*Appointment, error)
	UpdateSchedule(ctx context.Context, id, doctorID uuid.UUID, at time.Time, prevDoctorID uuid.UUID, prevAt time.Time) (*Appointment, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, notes *string) (*Appointment, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (*Appointment, error)

	FindAvailableRoom(ctx context.Context, roomType RoomType) (*Room, error)
	SetRoomAvailability(ctx context.Context, roomID uuid.UUID, available bool) error
	CreateRoom(ctx context.Context, room Room) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}
