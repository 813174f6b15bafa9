package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// IsTerminal reports whether no further transition may leave the status.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Role string

const (
	RolePatient      Role = "patient"
	RoleDoctor       Role = "doctor"
	RoleAdmin        Role = "admin"
	RoleReceptionist Role = "receptionist"
)

// Actor is the authenticated identity attached to every mutating call.
// It comes from the external identity provider; the engine trusts it and
// only checks ownership, never credentials.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsStaff reports whether the actor may act on appointments it does not own.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleReceptionist
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID         uuid.UUID
	Name       string
	Specialty  string
	Department string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Availability is a doctor's recurring weekly working window. At most one
// window exists per (doctor, weekday); writes are upserts against that key.
// Times are minutes from midnight UTC.
type Availability struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	IsActive    bool
}

// Contains reports whether a minute-of-day falls inside the half-open
// window [StartMinute, EndMinute).
func (a Availability) Contains(minute int) bool {
	return minute >= a.StartMinute && minute < a.EndMinute
}

// TimeSlot is a committed reservation of one slot on a doctor's calendar.
// A partial unique index on (doctor_id, start_at) where is_booked guarantees
// at most one booked slot per doctor per start time; that index, not the
// application pre-check, is the race guard under concurrent assignment.
type TimeSlot struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	StartAt       time.Time
	EndAt         time.Time
	IsBooked      bool
	AppointmentID *uuid.UUID
	CreatedAt     time.Time
}

// Appointment is a visit request or a confirmed visit. Doctor, scheduled
// time and room are nil while the request is pending assignment.
type Appointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      *uuid.UUID
	ScheduledAt   *time.Time
	PreferredDate *time.Time
	Status        AppointmentStatus
	Reason        string
	Notes         *string
	RoomID        *uuid.UUID
	AssignedBy    *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type RoomType string

const (
	RoomConsultation RoomType = "consultation"
	RoomOperation    RoomType = "operation"
	RoomEmergency    RoomType = "emergency"
)

type Room struct {
	ID          uuid.UUID
	RoomNumber  string
	RoomType    RoomType
	Floor       int
	Capacity    int
	IsAvailable bool
}

// AppointmentDetail hydrates an appointment with its related records for
// read endpoints.
type AppointmentDetail struct {
	Appointment
	Patient *Patient
	Doctor  *Doctor
	Room    *Room
}

// dateOf truncates an instant to midnight UTC.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// minuteOfDay returns minutes since midnight UTC.
func minuteOfDay(t time.Time) int {
	t = t.UTC()
	return t.Hour()*60 + t.Minute()
}
