package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/hospital-scheduling/internal/config"
	"github.com/carebridge/hospital-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedAvailability(context.Background(), pool, doctorIDs, cfg.BusinessHoursStart, cfg.BusinessHoursEnd); err != nil {
		log.Fatalf("seed availability: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedRooms(context.Background(), pool, 30); err != nil {
		log.Fatalf("seed rooms: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Cardiology",
		"Dermatology",
		"Orthopedics",
		"Neurology",
		"Gastroenterology",
		"Pulmonology",
		"ENT",
		"Ophthalmology",
		"Pediatrics",
		"Gynecology",
		"Urology",
		"General Medicine",
	}
	departments := []string{
		"Outpatient",
		"Inpatient",
		"Emergency",
		"Surgery",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		dept := departments[gofakeit.Number(0, len(departments)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, department, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, spec, dept)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

// seedAvailability gives every doctor a Monday-to-Friday window at the
// configured business hours.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID, startHour, endHour int) error {
	log.Printf("seeding availability for %d doctors", len(doctorIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, doctorID := range doctorIDs {
		for weekday := 1; weekday <= 5; weekday++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO doctor_availability (id, doctor_id, weekday, start_minute, end_minute, is_active)
				VALUES ($1, $2, $3, $4, $5, true)
				ON CONFLICT (doctor_id, weekday) DO NOTHING
			`, uuid.New(), doctorID, weekday, startHour*60, endHour*60)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("availability seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			phone := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, name, email, phone)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

func seedRooms(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d rooms", count)

	roomTypes := []string{"consultation", "operation", "emergency"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		floor := i/10 + 1
		number := fmt.Sprintf("%d", floor*100+i%10+1)

		_, err := tx.Exec(ctx, `
			INSERT INTO rooms (id, room_number, room_type, floor, capacity, is_available)
			VALUES ($1, $2, $3, $4, $5, true)
			ON CONFLICT (room_number) DO NOTHING
		`, uuid.New(), number, roomTypes[i%len(roomTypes)], floor, gofakeit.Number(1, 4))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("rooms seeded")
	return nil
}
