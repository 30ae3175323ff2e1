package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/attorney-scheduling/internal/config"
	"github.com/hackgods/attorney-scheduling/internal/db"
	"github.com/hackgods/attorney-scheduling/internal/logging"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	ConfirmRatio  float64
	CancelRatio   float64
	ReadRatio     float64
	AttorneyLimit int
	Clients       int
	WindowDays    int
	PostgresDSN   string
	Location      *time.Location
}

type DataPool struct {
	Attorneys    []uuid.UUID
	Clients      []uuid.UUID
	mu           sync.RWMutex
	appointments []uuid.UUID // appointments created during this run
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
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

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

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
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Availability   OperationMetrics
	Booking        OperationMetrics
	Confirm        OperationMetrics
	Cancel         OperationMetrics
	ReadByID       OperationMetrics
	ListByAttorney OperationMetrics
	ListByClient   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

type slotChoice struct {
	attorneyID  uuid.UUID
	scheduledAt time.Time
}

func main() {
	cfg, logger := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	// Load attorneys from Postgres
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().Int("attorneys", len(dataPool.Attorneys)).Int("clients", len(dataPool.Clients)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, zerolog.Logger) {
	baseCfg, err := config.Load()
	if err != nil {
		boot := logging.New("simulate", true, "info")
		boot.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New("simulate", baseCfg.IsDev(), baseCfg.LogLevel)

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.4),
		ConfirmRatio:  getFloat("SIM_CONFIRM_RATIO", 0.2),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		AttorneyLimit: getInt("SIM_ATTORNEY_LIMIT", 100),
		Clients:       getInt("SIM_CLIENTS", 2000),
		WindowDays:    getInt("SIM_WINDOW_DAYS", 14),
		PostgresDSN:   baseCfg.PostgresDSN,
		Location:      baseCfg.Location,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, logger
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.Clients <= 0 {
		return errors.New("SIM_CLIENTS must be > 0")
	}
	if cfg.WindowDays <= 0 {
		return errors.New("SIM_WINDOW_DAYS must be > 0")
	}
	return nil
}

// loadDataPool reads attorneys with at least one weekday slot. Clients are
// opaque ids, so they are generated.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT DISTINCT attorney_id FROM weekday_slots LIMIT $1
	`, cfg.AttorneyLimit)
	if err != nil {
		return nil, fmt.Errorf("load attorneys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Attorneys = append(dataPool.Attorneys, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load attorneys: %w", err)
	}
	if len(dataPool.Attorneys) == 0 {
		return nil, errors.New("no attorneys with schedules found (run cmd/seed first)")
	}

	dataPool.Clients = make([]uuid.UUID, cfg.Clients)
	for i := range dataPool.Clients {
		dataPool.Clients[i] = uuid.New()
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
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
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doStatusChange(ctx, rng, "confirmed", &s.metrics.Confirm)
			case r < s.config.BookingRatio+s.config.ConfirmRatio+s.config.CancelRatio:
				s.doStatusChange(ctx, rng, "cancelled", &s.metrics.Cancel)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByAttorney(ctx, rng)
				case 2:
					s.doListByClient(ctx, rng)
				}
			}
		}
	}
}

// doBooking asks for availability and books one of the open times. Workers
// share attorneys, so some bookings race for the same slot and get 409.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	attorneyID := s.pool.Attorneys[rng.Intn(len(s.pool.Attorneys))]
	clientID := s.pool.Clients[rng.Intn(len(s.pool.Clients))]

	choice, ok := s.pickOpenSlot(ctx, rng, attorneyID)
	if !ok {
		return
	}

	body, err := json.Marshal(map[string]string{
		"attorneyId":  choice.attorneyID.String(),
		"clientId":    clientID.String(),
		"scheduledAt": choice.scheduledAt.Format(time.RFC3339),
		"notes":       "load simulation",
	})
	if err != nil {
		return
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var apptResp struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&apptResp) == nil && apptResp.ID != uuid.Nil {
				s.pool.AddAppointment(apptResp.ID)
			}
		case http.StatusConflict:
			conflict = true
		}
	}
	if ctx.Err() != nil {
		return
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) pickOpenSlot(ctx context.Context, rng *rand.Rand, attorneyID uuid.UUID) (slotChoice, bool) {
	today := schedule.DateOf(time.Now(), s.config.Location)
	q := url.Values{}
	q.Set("attorneyId", attorneyID.String())
	q.Set("from", today.String())
	q.Set("to", today.AddDays(s.config.WindowDays-1).String())

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/availability?"+q.Encode(), nil)
	if err != nil {
		return slotChoice{}, false
	}

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.Availability.Record(latency, false, false)
		}
		return slotChoice{}, false
	}
	defer resp.Body.Close()

	var report map[string][]string
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&report) != nil {
		s.metrics.Availability.Record(latency, false, false)
		return slotChoice{}, false
	}
	s.metrics.Availability.Record(latency, true, false)

	var open []slotChoice
	for rawDate, times := range report {
		date, err := schedule.ParseDate(rawDate)
		if err != nil {
			continue
		}
		for _, rawTime := range times {
			t, err := schedule.ParseTimeOfDay(rawTime)
			if err != nil {
				continue
			}
			open = append(open, slotChoice{attorneyID: attorneyID, scheduledAt: date.At(t, s.config.Location)})
		}
	}
	if len(open) == 0 {
		return slotChoice{}, false
	}

	// Favour the earliest slots so concurrent workers collide.
	sort.Slice(open, func(i, j int) bool { return open[i].scheduledAt.Before(open[j].scheduledAt) })
	limit := min(len(open), 3)
	return open[rng.Intn(limit)], true
}

func (s *Simulator) doStatusChange(ctx context.Context, rng *rand.Rand, status string, om *OperationMetrics) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	body, err := json.Marshal(map[string]string{"newStatus": status})
	if err != nil {
		return
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/appointments/%s/status", s.config.APIBaseURL, apptID), bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			success = true
		case http.StatusConflict:
			conflict = true
		}
	}
	if ctx.Err() != nil {
		return
	}

	om.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	s.doGet(ctx, fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, apptID), &s.metrics.ReadByID)
}

func (s *Simulator) doListByAttorney(ctx context.Context, rng *rand.Rand) {
	attorneyID := s.pool.Attorneys[rng.Intn(len(s.pool.Attorneys))]
	s.doGet(ctx, s.listURL("attorneyId", attorneyID), &s.metrics.ListByAttorney)
}

func (s *Simulator) doListByClient(ctx context.Context, rng *rand.Rand) {
	clientID := s.pool.Clients[rng.Intn(len(s.pool.Clients))]
	s.doGet(ctx, s.listURL("clientId", clientID), &s.metrics.ListByClient)
}

func (s *Simulator) listURL(key string, id uuid.UUID) string {
	today := schedule.DateOf(time.Now(), s.config.Location)
	q := url.Values{}
	q.Set(key, id.String())
	q.Set("from", today.String())
	q.Set("to", today.AddDays(s.config.WindowDays-1).String())
	return s.config.APIBaseURL + "/appointments?" + q.Encode()
}

func (s *Simulator) doGet(ctx context.Context, target string, om *OperationMetrics) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return
	}

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	if ctx.Err() != nil {
		return
	}

	om.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Attorneys: %d\n", len(s.pool.Attorneys))
	fmt.Println()

	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Attorney", &s.metrics.ListByAttorney)
	printOperationReport("List by Client", &s.metrics.ListByClient)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
