package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Date          string
	Location      *time.Location
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	StatusRatio   float64
	ReadRatio     float64
	Patients      int
	AdminUsername string
	AdminPassword string
	PostgresDSN   string
}

type patient struct {
	Name  string
	Phone string
}

// DataPool holds the catalog and the appointments created during the run.
type DataPool struct {
	Doctors    []uuid.UUID
	Treatments []uuid.UUID
	Patients   []patient

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, worst time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	worst = latencies[len(latencies)-1]
	return avg, p50, p95, worst
}

type Metrics struct {
	Booking      OperationMetrics
	StatusUpdate OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	config     SimConfig
	pool       *DataPool
	client     *http.Client
	adminToken string
	metrics    Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}
	logging.Init("simulate", baseCfg.Env, baseCfg.LogLevel)

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	log.Info().
		Str("date", cfg.Date).
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	if sim.pool, err = sim.loadDataPool(ctx); err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	if cfg.AdminUsername != "" {
		if sim.adminToken, err = sim.adminLogin(ctx); err != nil {
			log.Warn().Err(err).Msg("admin login failed, status updates disabled")
		}
	}
	log.Info().
		Int("doctors", len(sim.pool.Doctors)).
		Int("treatments", len(sim.pool.Treatments)).
		Int("patients", len(sim.pool.Patients)).
		Msg("data pool loaded")

	sim.Run()
	sim.PrintReport()

	if err := verify(baseCfg, cfg); err != nil {
		log.Fatal().Err(err).Msg("verification failed")
	}
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:    strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080/api"), "/"),
		Date:          getEnv("SIM_DATE", time.Now().AddDate(0, 0, 1).Format("2006-01-02")),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.5),
		StatusRatio:   getFloat("SIM_STATUS_RATIO", 0.2),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		Patients:      getInt("SIM_PATIENTS", 200),
		AdminUsername: base.AdminUsername,
		AdminPassword: base.AdminPassword,
		PostgresDSN:   base.PostgresDSN,
	}
	if loc, err := time.LoadLocation(base.ClinicTimezone); err == nil {
		cfg.Location = loc
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	if _, err := time.Parse("2006-01-02", cfg.Date); err != nil {
		return fmt.Errorf("SIM_DATE must be YYYY-MM-DD: %w", err)
	}
	if cfg.Location == nil {
		return fmt.Errorf("CLINIC_TIMEZONE is not a valid IANA zone")
	}
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dp := &DataPool{}

	var doctors []catalog.Doctor
	if err := s.getJSON(ctx, "/doctors", "", &doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for _, d := range doctors {
		dp.Doctors = append(dp.Doctors, d.ID)
	}

	var treatments []catalog.Treatment
	if err := s.getJSON(ctx, "/treatments", "", &treatments); err != nil {
		return nil, fmt.Errorf("load treatments: %w", err)
	}
	for _, t := range treatments {
		dp.Treatments = append(dp.Treatments, t.ID)
	}

	if len(dp.Doctors) == 0 || len(dp.Treatments) == 0 {
		return nil, fmt.Errorf("catalog is empty, run cmd/seed first")
	}

	// A small patient pool makes repeat visits, so followup classification gets exercised.
	for i := 0; i < s.config.Patients; i++ {
		dp.Patients = append(dp.Patients, patient{
			Name:  gofakeit.Name(),
			Phone: gofakeit.Numerify("010-####-####"),
		})
	}
	return dp, nil
}

func (s *Simulator) adminLogin(ctx context.Context) (string, error) {
	body, _ := json.Marshal(api.AdminLoginRequest{Username: s.config.AdminUsername, Password: s.config.AdminPassword})
	resp, err := s.do(ctx, http.MethodPost, "/admin/auth/token", "", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("admin login: status %d", resp.StatusCode)
	}
	var tok api.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	return tok.Token, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Info().Msg("simulation complete")
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
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.StatusRatio:
				s.doStatusUpdate(ctx, rng)
			default:
				s.doAvailability(ctx, rng)
			}
		}
	}
}

// doBooking asks for a random grid time, not an advertised one, so conflicts and
// capacity rejections happen under contention.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	day, _ := time.ParseInLocation("2006-01-02", s.config.Date, s.config.Location)
	startAt := day.Add(9*time.Hour + time.Duration(rng.Intn(9*4))*15*time.Minute).Format(time.RFC3339)

	body, _ := json.Marshal(api.CreateAppointmentRequest{
		PatientName:  p.Name,
		PatientPhone: p.Phone,
		DoctorID:     s.pool.Doctors[rng.Intn(len(s.pool.Doctors))].String(),
		TreatmentID:  s.pool.Treatments[rng.Intn(len(s.pool.Treatments))].String(),
		StartAt:      startAt,
	})

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments", "", body)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var created api.CreateAppointmentResponse
			if json.NewDecoder(resp.Body).Decode(&created) == nil && created.Appointment != nil {
				s.pool.AddAppointment(created.Appointment.ID)
			}
		case http.StatusConflict, http.StatusUnprocessableEntity:
			conflict = true
		}
	}
	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doStatusUpdate(ctx context.Context, rng *rand.Rand) {
	if s.adminToken == "" {
		return
	}
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	targets := []appointment.AppointmentStatus{
		appointment.StatusConfirmed,
		appointment.StatusCompleted,
		appointment.StatusCanceled,
	}
	body, _ := json.Marshal(api.UpdateStatusRequest{Status: string(targets[rng.Intn(len(targets))])})

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPatch, "/admin/appointments/"+id.String()+"/status", s.adminToken, body)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}
	s.metrics.StatusUpdate.Record(latency, success, conflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	q := url.Values{}
	q.Set("doctor_id", s.pool.Doctors[rng.Intn(len(s.pool.Doctors))].String())
	q.Set("treatment_id", s.pool.Treatments[rng.Intn(len(s.pool.Treatments))].String())
	q.Set("date", s.config.Date)

	start := time.Now()
	var out api.AvailabilityResponse
	err := s.getJSON(ctx, "/availability", q.Encode(), &out)
	s.metrics.Availability.Record(time.Since(start), err == nil, false)
}

func (s *Simulator) do(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.client.Do(req)
}

func (s *Simulator) getJSON(ctx context.Context, path, query string, v any) error {
	if query != "" {
		path += "?" + query
	}
	resp, err := s.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// verify audits the simulated day straight from Postgres.
func verify(base config.Config, cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		log.Warn().Msg("POSTGRES_DSN unset, skipping invariant verification")
		return nil
	}

	policy, err := appointment.ParsePolicy(base.ClinicOpen, base.ClinicClose,
		base.ClinicLunchStart, base.ClinicLunchEnd, base.ClinicTimezone)
	if err != nil {
		return err
	}
	date, err := policy.ParseDate(cfg.Date)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	svc := appointment.NewService(appointment.NewPgRepository(pool), catalog.NewPgRepository(pool), nil, policy, nil)
	violations, err := svc.AuditDay(ctx, date)
	if err != nil {
		return err
	}
	for _, v := range violations {
		log.Error().Str("kind", v.Kind).Msg(v.Detail)
	}
	if len(violations) > 0 {
		return fmt.Errorf("%d invariant violations on %s", len(violations), cfg.Date)
	}
	log.Info().Str("date", cfg.Date).Msg("no doctor overlaps or capacity overruns")
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Date: %s\n", s.config.Date)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status update", &s.metrics.StatusUpdate)
	printOperationReport("Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, worst := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), worst.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
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
