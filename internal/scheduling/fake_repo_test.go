package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository for service tests. It mimics the
// Postgres behavior the service depends on: sentinel not-found errors,
// compare-and-swap status transitions and the booked-slot uniqueness
// constraint. InTx runs the callback against the same store; rollback
// semantics are not simulated.
type fakeRepo struct {
	patients     map[uuid.UUID]*Patient
	doctors      map[uuid.UUID]*Doctor
	availability map[uuid.UUID]map[time.Weekday]*Availability
	slots        map[uuid.UUID]map[time.Time]*TimeSlot
	appointments map[uuid.UUID]*Appointment
	rooms        map[uuid.UUID]*Room

	now time.Time

	// beforeTx runs once at the start of the next transaction and then
	// clears itself; tests use it to interleave a competing operation.
	beforeTx func()
}

func newFakeRepo(now time.Time) *fakeRepo {
	return &fakeRepo{
		patients:     make(map[uuid.UUID]*Patient),
		doctors:      make(map[uuid.UUID]*Doctor),
		availability: make(map[uuid.UUID]map[time.Weekday]*Availability),
		slots:        make(map[uuid.UUID]map[time.Time]*TimeSlot),
		appointments: make(map[uuid.UUID]*Appointment),
		rooms:        make(map[uuid.UUID]*Room),
		now:          now,
	}
}

func (f *fakeRepo) addPatient() uuid.UUID {
	id := uuid.New()
	f.patients[id] = &Patient{ID: id, Name: "Pat Doe", CreatedAt: f.now, UpdatedAt: f.now}
	return id
}

func (f *fakeRepo) addDoctor(specialty string) uuid.UUID {
	id := uuid.New()
	f.doctors[id] = &Doctor{ID: id, Name: "Doc Roe", Specialty: specialty, CreatedAt: f.now, UpdatedAt: f.now}
	return id
}

func (f *fakeRepo) addAvailability(doctorID uuid.UUID, weekday time.Weekday, startMinute, endMinute int) {
	if f.availability[doctorID] == nil {
		f.availability[doctorID] = make(map[time.Weekday]*Availability)
	}
	f.availability[doctorID][weekday] = &Availability{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		Weekday:     weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		IsActive:    true,
	}
}

func (f *fakeRepo) addRoom(roomType RoomType, available bool) uuid.UUID {
	id := uuid.New()
	f.rooms[id] = &Room{ID: id, RoomNumber: id.String()[:8], RoomType: roomType, Floor: 1, Capacity: 2, IsAvailable: available}
	return id
}

func (f *fakeRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	if f.beforeTx != nil {
		hook := f.beforeTx
		f.beforeTx = nil
		hook()
	}
	return fn(f)
}

func (f *fakeRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := f.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeRepo) ListDoctors(ctx context.Context) ([]Doctor, error) {
	out := make([]Doctor, 0, len(f.doctors))
	for _, d := range f.doctors {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeRepo) ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error) {
	var out []Doctor
	for _, d := range f.doctors {
		if d.Specialty == specialty {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeRepo) GetAvailability(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Availability, error) {
	av, ok := f.availability[doctorID][weekday]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	cp := *av
	return &cp, nil
}

func (f *fakeRepo) ListAvailability(ctx context.Context, doctorID uuid.UUID) ([]Availability, error) {
	var out []Availability
	for _, av := range f.availability[doctorID] {
		out = append(out, *av)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (f *fakeRepo) UpsertAvailability(ctx context.Context, av Availability) (*Availability, error) {
	if f.availability[av.DoctorID] == nil {
		f.availability[av.DoctorID] = make(map[time.Weekday]*Availability)
	}
	existing, ok := f.availability[av.DoctorID][av.Weekday]
	if ok {
		av.ID = existing.ID
	} else {
		av.ID = uuid.New()
	}
	f.availability[av.DoctorID][av.Weekday] = &av
	cp := av
	return &cp, nil
}

func (f *fakeRepo) ListBookedSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	var out []TimeSlot
	for _, slot := range f.slots[doctorID] {
		if slot.IsBooked && !slot.StartAt.Before(from) && slot.StartAt.Before(to) {
			out = append(out, *slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f *fakeRepo) GetBookedSlot(ctx context.Context, doctorID uuid.UUID, startAt time.Time) (*TimeSlot, error) {
	slot, ok := f.slots[doctorID][startAt.UTC()]
	if !ok || !slot.IsBooked {
		return nil, ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (f *fakeRepo) CreateSlot(ctx context.Context, slot TimeSlot) error {
	key := slot.StartAt.UTC()
	if existing, ok := f.slots[slot.DoctorID][key]; ok && existing.IsBooked && slot.IsBooked {
		return ErrDuplicateSlot
	}
	if f.slots[slot.DoctorID] == nil {
		f.slots[slot.DoctorID] = make(map[time.Time]*TimeSlot)
	}
	cp := slot
	f.slots[slot.DoctorID][key] = &cp
	return nil
}

func (f *fakeRepo) DeleteSlot(ctx context.Context, doctorID uuid.UUID, startAt time.Time, appointmentID uuid.UUID) (bool, error) {
	key := startAt.UTC()
	slot, ok := f.slots[doctorID][key]
	if !ok || slot.AppointmentID == nil || *slot.AppointmentID != appointmentID {
		return false, nil
	}
	delete(f.slots[doctorID], key)
	return true, nil
}

func (f *fakeRepo) CreatePendingAppointment(ctx context.Context, patientID uuid.UUID, reason string, preferredDate *time.Time) (*Appointment, error) {
	appt := &Appointment{
		ID:            uuid.New(),
		PatientID:     patientID,
		PreferredDate: preferredDate,
		Status:        StatusPending,
		Reason:        reason,
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}
	f.appointments[appt.ID] = appt
	cp := *appt
	return &cp, nil
}

func (f *fakeRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *appt
	return &cp, nil
}

func (f *fakeRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	det := &AppointmentDetail{Appointment: *appt}
	if p, ok := f.patients[appt.PatientID]; ok {
		cp := *p
		det.Patient = &cp
	}
	if appt.DoctorID != nil {
		if d, ok := f.doctors[*appt.DoctorID]; ok {
			cp := *d
			det.Doctor = &cp
		}
	}
	if appt.RoomID != nil {
		if rm, ok := f.rooms[*appt.RoomID]; ok {
			cp := *rm
			det.Room = &cp
		}
	}
	return det, nil
}

func (f *fakeRepo) listDetails(match func(*Appointment) bool, limit, offset int) []AppointmentDetail {
	var out []AppointmentDetail
	for _, appt := range f.appointments {
		if match(appt) {
			det, _ := f.GetAppointmentDetail(context.Background(), appt.ID)
			out = append(out, *det)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeRepo) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	return f.listDetails(func(a *Appointment) bool { return a.PatientID == patientID }, limit, offset), nil
}

func (f *fakeRepo) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	return f.listDetails(func(a *Appointment) bool { return a.DoctorID != nil && *a.DoctorID == doctorID }, limit, offset), nil
}

func (f *fakeRepo) ListAppointmentsByStatus(ctx context.Context, status AppointmentStatus, limit, offset int) ([]AppointmentDetail, error) {
	return f.listDetails(func(a *Appointment) bool { return a.Status == status }, limit, offset), nil
}

func (f *fakeRepo) FindActiveDoctorAppointment(ctx context.Context, doctorID uuid.UUID, at time.Time) (*Appointment, error) {
	for _, appt := range f.appointments {
		if appt.Status != StatusCancelled && appt.DoctorID != nil && *appt.DoctorID == doctorID &&
			appt.ScheduledAt != nil && appt.ScheduledAt.Equal(at) {
			cp := *appt
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) FindActivePatientAppointment(ctx context.Context, patientID uuid.UUID, at time.Time) (*Appointment, error) {
	for _, appt := range f.appointments {
		if appt.Status != StatusCancelled && appt.PatientID == patientID &&
			appt.ScheduledAt != nil && appt.ScheduledAt.Equal(at) {
			cp := *appt
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) MarkScheduled(ctx context.Context, id, doctorID uuid.UUID, at time.Time, roomID *uuid.UUID, assignedBy uuid.UUID) (*Appointment, error) {
	appt, ok := f.appointments[id]
	if !ok || appt.Status != StatusPending {
		return nil, ErrAppointmentNotFound
	}
	appt.DoctorID = &doctorID
	appt.ScheduledAt = &at
	appt.RoomID = roomID
	appt.AssignedBy = &assignedBy
	appt.Status = StatusScheduled
	appt.UpdatedAt = f.now
	cp := *appt
	return &cp, nil
}

func (f *fakeRepo) UpdateSchedule(ctx context.Context, id, doctorID uuid.UUID, at time.Time, prevDoctorID uuid.UUID, prevAt time.Time) (*Appointment, error) {
	appt, ok := f.appointments[id]
	if !ok || appt.Status != StatusScheduled ||
		appt.DoctorID == nil || *appt.DoctorID != prevDoctorID ||
		appt.ScheduledAt == nil || !appt.ScheduledAt.Equal(prevAt) {
		return nil, ErrAppointmentNotFound
	}
	appt.DoctorID = &doctorID
	appt.ScheduledAt = &at
	appt.UpdatedAt = f.now
	cp := *appt
	return &cp, nil
}

func (f *fakeRepo) MarkCompleted(ctx context.Context, id uuid.UUID, notes *string) (*Appointment, error) {
	appt, ok := f.appointments[id]
	if !ok || appt.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = StatusCompleted
	appt.Notes = notes
	appt.UpdatedAt = f.now
	cp := *appt
	return &cp, nil
}

func (f *fakeRepo) MarkCancelled(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, ok := f.appointments[id]
	if !ok || appt.Status.IsTerminal() {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = StatusCancelled
	appt.UpdatedAt = f.now
	cp := *appt
	return &cp, nil
}

func (f *fakeRepo) FindAvailableRoom(ctx context.Context, roomType RoomType) (*Room, error) {
	var candidates []*Room
	for _, rm := range f.rooms {
		if rm.RoomType == roomType && rm.IsAvailable {
			candidates = append(candidates, rm)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrRoomNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].RoomNumber < candidates[j].RoomNumber })
	cp := *candidates[0]
	return &cp, nil
}

func (f *fakeRepo) SetRoomAvailability(ctx context.Context, roomID uuid.UUID, available bool) error {
	rm, ok := f.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	rm.IsAvailable = available
	return nil
}

func (f *fakeRepo) CreateRoom(ctx context.Context, room Room) (*Room, error) {
	for _, rm := range f.rooms {
		if rm.RoomNumber == room.RoomNumber {
			return nil, ErrDuplicateRoom
		}
	}
	room.ID = uuid.New()
	cp := room
	f.rooms[room.ID] = &cp
	out := room
	return &out, nil
}

func (f *fakeRepo) ListRooms(ctx context.Context) ([]Room, error) {
	out := make([]Room, 0, len(f.rooms))
	for _, rm := range f.rooms {
		out = append(out, *rm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, nil
}
