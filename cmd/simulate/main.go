package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/hospital-scheduling/internal/config"
	"github.com/carebridge/hospital-scheduling/internal/db"
)

// The simulator drives the public API the way a busy front desk would:
// patients file requests, receptionists assign them onto a deliberately
// small grid of slots (to provoke booking races), and a share of
// appointments gets cancelled or read back.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	RequestRatio float64
	AssignRatio  float64
	CancelRatio  float64
	ReadRatio    float64
	PatientLimit int
	DoctorLimit  int
	SlotDays     int
	PostgresDSN  string
}

type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID
	Admin    uuid.UUID

	mu       sync.RWMutex
	pending  []uuid.UUID
	assigned []uuid.UUID
}

func (dp *DataPool) AddPending(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.pending = append(dp.pending, id)
}

// TakePending pops a random pending appointment so no two workers try to
// assign the same one.
func (dp *DataPool) TakePending(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.pending) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.pending))
	id := dp.pending[idx]
	dp.pending[idx] = dp.pending[len(dp.pending)-1]
	dp.pending = dp.pending[:len(dp.pending)-1]
	return id, true
}

func (dp *DataPool) AddAssigned(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.assigned = append(dp.assigned, id)
}

func (dp *DataPool) RandomAssigned(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.assigned) == 0 {
		return uuid.Nil, false
	}
	return dp.assigned[rng.Intn(len(dp.assigned))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, statusCode int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case statusCode == http.StatusOK || statusCode == http.StatusCreated || statusCode == http.StatusNoContent:
		atomic.AddInt64(&om.Success, 1)
	case statusCode == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case statusCode == http.StatusUnprocessableEntity:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Request   OperationMetrics
	Assign    OperationMetrics
	Cancel    OperationMetrics
	ReadByID  OperationMetrics
	OpenSlots OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d request=%.2f assign=%.2f cancel=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.RequestRatio, cfg.AssignRatio, cfg.CancelRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d doctors", len(dataPool.Patients), len(dataPool.Doctors))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:      getIntEnv("SIM_WORKERS", 10),
		RequestRatio: getFloat("SIM_REQUEST_RATIO", 0.35),
		AssignRatio:  getFloat("SIM_ASSIGN_RATIO", 0.35),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.2),
		PatientLimit: getIntEnv("SIM_PATIENT_LIMIT", 2000),
		DoctorLimit:  getIntEnv("SIM_DOCTOR_LIMIT", 5),
		SlotDays:     getIntEnv("SIM_SLOT_DAYS", 3),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.RequestRatio + cfg.AssignRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.RequestRatio /= total
		cfg.AssignRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.SlotDays <= 0 {
		return fmt.Errorf("SIM_SLOT_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{Admin: uuid.New()}

	rows, err := pool.Query(ctx, `
		SELECT id FROM patients LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	// Few doctors on purpose: the narrower the doctor pool, the harder
	// the assignment path hammers the same slots.
	rows, err = pool.Query(ctx, `
		SELECT id FROM doctors LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run the seed command first")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run the seed command first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.RequestRatio:
				s.doRequest(ctx, rng)
			case r < s.config.RequestRatio+s.config.AssignRatio:
				s.doAssign(ctx, rng)
			case r < s.config.RequestRatio+s.config.AssignRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doReadByID(ctx, rng)
				} else {
					s.doOpenSlots(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doRequest(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	reasons := []string{
		"chest pain when climbing stairs",
		"persistent skin rash on arms",
		"recurring migraine headaches",
		"stomach pain after meals",
		"annual checkup",
		"knee pain after running",
		"shortness of breath at night",
	}

	start := time.Now()

	reqBody := map[string]string{
		"patient_id": patientID.String(),
		"reason":     reasons[rng.Intn(len(reasons))],
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	setActor(req, patientID, "patient")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	statusCode := 0
	if err == nil {
		defer resp.Body.Close()
		statusCode = resp.StatusCode

		if statusCode == http.StatusCreated {
			var apptResp struct {
				ID uuid.UUID `json:"id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if json.Unmarshal(bodyBytes, &apptResp) == nil && apptResp.ID != uuid.Nil {
				s.pool.AddPending(apptResp.ID)
			}
		}
	}

	s.metrics.Request.Record(latency, statusCode, err)
}

func (s *Simulator) doAssign(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.TakePending(rng)
	if !ok {
		return
	}

	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	startAt := s.randomSlot(rng)

	start := time.Now()

	reqBody := map[string]string{
		"doctor_id": doctorID.String(),
		"start_at":  startAt.Format(time.RFC3339),
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/appointments/%s/assign", s.config.APIBaseURL, apptID.String()), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	setActor(req, s.pool.Admin, "receptionist")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	statusCode := 0
	if err == nil {
		defer resp.Body.Close()
		statusCode = resp.StatusCode
	}

	switch statusCode {
	case http.StatusOK:
		s.pool.AddAssigned(apptID)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		// Slot contention or a rule rejection; the appointment is still
		// pending, put it back for another try.
		s.pool.AddPending(apptID)
	}

	s.metrics.Assign.Record(latency, statusCode, err)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAssigned(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/appointments/%s/cancel", s.config.APIBaseURL, apptID.String()), nil)
	setActor(req, s.pool.Admin, "receptionist")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	statusCode := 0
	if err == nil {
		defer resp.Body.Close()
		statusCode = resp.StatusCode
	}

	s.metrics.Cancel.Record(latency, statusCode, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAssigned(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, apptID.String()), nil)
	setActor(req, s.pool.Admin, "receptionist")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	statusCode := 0
	if err == nil {
		defer resp.Body.Close()
		statusCode = resp.StatusCode
	}

	s.metrics.ReadByID.Record(latency, statusCode, err)
}

func (s *Simulator) doOpenSlots(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	date := s.randomSlot(rng).Format("2006-01-02")

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/doctors/%s/slots?date=%s", s.config.APIBaseURL, doctorID.String(), date), nil)
	setActor(req, s.pool.Admin, "receptionist")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	statusCode := 0
	if err == nil {
		defer resp.Body.Close()
		statusCode = resp.StatusCode
	}

	s.metrics.OpenSlots.Record(latency, statusCode, err)
}

// randomSlot picks a weekday slot start in the next SlotDays days, on the
// half-hour grid inside typical business hours.
func (s *Simulator) randomSlot(rng *rand.Rand) time.Time {
	now := time.Now().UTC()
	for {
		day := now.AddDate(0, 0, 1+rng.Intn(s.config.SlotDays))
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		hour := 9 + rng.Intn(8)
		minute := 30 * rng.Intn(2)
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
	}
}

func setActor(req *http.Request, id uuid.UUID, role string) {
	req.Header.Set("X-Actor-ID", id.String())
	req.Header.Set("X-Actor-Role", role)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Request", &s.metrics.Request)
	printOperationReport("Assign", &s.metrics.Assign)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Open Slots", &s.metrics.OpenSlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	rejected := atomic.LoadInt64(&om.Rejected)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
