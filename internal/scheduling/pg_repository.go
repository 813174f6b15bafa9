package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same
// repository code serves pooled and transactional calls.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.inTx {
		// Already transactional, reuse the enclosing transaction.
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PgRepository{pool: r.pool, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Scan helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.Department, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanAvailability(row pgx.Row) (*Availability, error) {
	var av Availability
	var weekday int
	err := row.Scan(&av.ID, &av.DoctorID, &weekday, &av.StartMinute, &av.EndMinute, &av.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAvailabilityNotFound
		}
		return nil, err
	}
	av.Weekday = time.Weekday(weekday)
	return &av, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(&s.ID, &s.DoctorID, &s.StartAt, &s.EndAt, &s.IsBooked, &s.AppointmentID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ScheduledAt,
		&a.PreferredDate,
		&status,
		&a.Reason,
		&a.Notes,
		&a.RoomID,
		&a.AssignedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Status = AppointmentStatus(status)
	return &a, nil
}

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	var roomType string
	err := row.Scan(&rm.ID, &rm.RoomNumber, &roomType, &rm.Floor, &rm.Capacity, &rm.IsAvailable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	rm.RoomType = RoomType(roomType)
	return &rm, nil
}

const appointmentColumns = `
	id, patient_id, doctor_id, scheduled_at, preferred_date, status,
	reason, notes, room_id, assigned_by, created_at, updated_at`

// Patients and doctors

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, specialty, department, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, specialty, department, created_at, updated_at
		FROM doctors
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDoctors(rows)
}

func (r *PgRepository) ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, specialty, department, created_at, updated_at
		FROM doctors
		WHERE specialty = $1
		ORDER BY name
	`, specialty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDoctors(rows)
}

func collectDoctors(rows pgx.Rows) ([]Doctor, error) {
	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Availability

func (r *PgRepository) GetAvailability(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Availability, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, is_active
		FROM doctor_availability
		WHERE doctor_id = $1 AND weekday = $2
	`, doctorID, int(weekday))
	return scanAvailability(row)
}

func (r *PgRepository) ListAvailability(ctx context.Context, doctorID uuid.UUID) ([]Availability, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, is_active
		FROM doctor_availability
		WHERE doctor_id = $1
		ORDER BY weekday
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Availability
	for rows.Next() {
		av, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *av)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) UpsertAvailability(ctx context.Context, av Availability) (*Availability, error) {
	id := av.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO doctor_availability (id, doctor_id, weekday, start_minute, end_minute, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doctor_id, weekday) DO UPDATE
		SET start_minute = EXCLUDED.start_minute,
		    end_minute = EXCLUDED.end_minute,
		    is_active = EXCLUDED.is_active
		RETURNING id, doctor_id, weekday, start_minute, end_minute, is_active
	`, id, av.DoctorID, int(av.Weekday), av.StartMinute, av.EndMinute, av.IsActive)

	return scanAvailability(row)
}

// Time slots

func (r *PgRepository) ListBookedSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, doctor_id, start_at, end_at, is_booked, appointment_id, created_at
		FROM time_slots
		WHERE doctor_id = $1
		  AND is_booked
		  AND start_at >= $2
		  AND start_at < $3
		ORDER BY start_at
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetBookedSlot(ctx context.Context, doctorID uuid.UUID, startAt time.Time) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doctor_id, start_at, end_at, is_booked, appointment_id, created_at
		FROM time_slots
		WHERE doctor_id = $1 AND start_at = $2 AND is_booked
	`, doctorID, startAt)
	return scanSlot(row)
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot TimeSlot) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO time_slots (id, doctor_id, start_at, end_at, is_booked, appointment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, slot.ID, slot.DoctorID, slot.StartAt, slot.EndAt, slot.IsBooked, slot.AppointmentID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("insert time slot: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, doctorID uuid.UUID, startAt time.Time, appointmentID uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM time_slots
		WHERE doctor_id = $1 AND start_at = $2 AND appointment_id = $3
	`, doctorID, startAt, appointmentID)
	if err != nil {
		return false, fmt.Errorf("delete time slot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Appointments

func (r *PgRepository) CreatePendingAppointment(ctx context.Context, patientID uuid.UUID, reason string, preferredDate *time.Time) (*Appointment, error) {
	id := uuid.New()

	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, status, reason, preferred_date, created_at, updated_at)
		VALUES ($1, $2, 'pending', $3, $4, now(), now())
		RETURNING`+appointmentColumns+`
	`, id, patientID, reason, preferredDate)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindActiveDoctorAppointment(ctx context.Context, doctorID uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND scheduled_at = $2
		  AND status <> 'cancelled'
		LIMIT 1
	`, doctorID, at)
	return scanAppointment(row)
}

func (r *PgRepository) FindActivePatientAppointment(ctx context.Context, patientID uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND scheduled_at = $2
		  AND status <> 'cancelled'
		LIMIT 1
	`, patientID, at)
	return scanAppointment(row)
}

func (r *PgRepository) MarkScheduled(ctx context.Context, id, doctorID uuid.UUID, at time.Time, roomID *uuid.UUID, assignedBy uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET doctor_id = $2,
		    scheduled_at = $3,
		    room_id = $4,
		    assigned_by = $5,
		    status = 'scheduled',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING`+appointmentColumns+`
	`, id, doctorID, at, roomID, assignedBy)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateSchedule(ctx context.Context, id, doctorID uuid.UUID, at time.Time, prevDoctorID uuid.UUID, prevAt time.Time) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET doctor_id = $2,
		    scheduled_at = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		  AND doctor_id = $4
		  AND scheduled_at = $5
		RETURNING`+appointmentColumns+`
	`, id, doctorID, at, prevDoctorID, prevAt)
	return scanAppointment(row)
}

func (r *PgRepository) MarkCompleted(ctx context.Context, id uuid.UUID, notes *string) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    notes = COALESCE($2, notes),
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING`+appointmentColumns+`
	`, id, notes)
	return scanAppointment(row)
}

func (r *PgRepository) MarkCancelled(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'scheduled')
		RETURNING`+appointmentColumns+`
	`, id)
	return scanAppointment(row)
}

const detailSelect = `
	SELECT a.id, a.patient_id, a.doctor_id, a.scheduled_at, a.preferred_date,
	       a.status, a.reason, a.notes, a.room_id, a.assigned_by, a.created_at, a.updated_at,
	       p.name, p.email, p.phone, p.created_at, p.updated_at,
	       d.name, d.specialty, d.department, d.created_at, d.updated_at,
	       r.room_number, r.room_type, r.floor, r.capacity, r.is_available
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	LEFT JOIN doctors d ON d.id = a.doctor_id
	LEFT JOIN rooms r ON r.id = a.room_id`

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var det AppointmentDetail
	var status string
	var p Patient
	var dName, dSpecialty, dDepartment *string
	var dCreated, dUpdated *time.Time
	var rNumber, rType *string
	var rFloor, rCapacity *int
	var rAvailable *bool

	err := row.Scan(
		&det.ID,
		&det.PatientID,
		&det.DoctorID,
		&det.ScheduledAt,
		&det.PreferredDate,
		&status,
		&det.Reason,
		&det.Notes,
		&det.RoomID,
		&det.AssignedBy,
		&det.CreatedAt,
		&det.UpdatedAt,
		&p.Name, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt,
		&dName, &dSpecialty, &dDepartment, &dCreated, &dUpdated,
		&rNumber, &rType, &rFloor, &rCapacity, &rAvailable,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	det.Status = AppointmentStatus(status)
	p.ID = det.PatientID
	det.Patient = &p

	if det.DoctorID != nil && dName != nil {
		det.Doctor = &Doctor{
			ID:         *det.DoctorID,
			Name:       *dName,
			Specialty:  *dSpecialty,
			Department: *dDepartment,
			CreatedAt:  *dCreated,
			UpdatedAt:  *dUpdated,
		}
	}
	if det.RoomID != nil && rNumber != nil {
		det.Room = &Room{
			ID:          *det.RoomID,
			RoomNumber:  *rNumber,
			RoomType:    RoomType(*rType),
			Floor:       *rFloor,
			Capacity:    *rCapacity,
			IsAvailable: *rAvailable,
		}
	}
	return &det, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.q.QueryRow(ctx, detailSelect+`
		WHERE a.id = $1
	`, id)
	return scanDetail(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.q.Query(ctx, detailSelect+`
		WHERE a.patient_id = $1
		ORDER BY a.scheduled_at DESC NULLS FIRST, a.created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDetails(rows)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.q.Query(ctx, detailSelect+`
		WHERE a.doctor_id = $1
		ORDER BY a.scheduled_at DESC NULLS FIRST, a.created_at DESC
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDetails(rows)
}

func (r *PgRepository) ListAppointmentsByStatus(ctx context.Context, status AppointmentStatus, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.q.Query(ctx, detailSelect+`
		WHERE a.status = $1
		ORDER BY a.created_at DESC
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDetails(rows)
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	var result []AppointmentDetail
	for rows.Next() {
		det, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *det)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Rooms

func (r *PgRepository) FindAvailableRoom(ctx context.Context, roomType RoomType) (*Room, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, room_number, room_type, floor, capacity, is_available
		FROM rooms
		WHERE room_type = $1 AND is_available
		ORDER BY room_number
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, string(roomType))
	return scanRoom(row)
}

func (r *PgRepository) SetRoomAvailability(ctx context.Context, roomID uuid.UUID, available bool) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE rooms
		SET is_available = $2
		WHERE id = $1
	`, roomID, available)
	if err != nil {
		return fmt.Errorf("update room availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *PgRepository) CreateRoom(ctx context.Context, room Room) (*Room, error) {
	id := room.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO rooms (id, room_number, room_type, floor, capacity, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, room_number, room_type, floor, capacity, is_available
	`, id, room.RoomNumber, string(room.RoomType), room.Floor, room.Capacity, room.IsAvailable)

	created, err := scanRoom(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRoom
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, room_number, room_type, floor, capacity, is_available
		FROM rooms
		ORDER BY room_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
