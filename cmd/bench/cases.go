// README: Smoke cases for the ride API; environment checks, an authenticated ride flow, an accept race and a load run.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

// smokeCategoryID is upserted on every run so the flow has a priced category.
const smokeCategoryID = "5f0e3a52-9d1c-4c55-b0a4-2a8f6c1d7e01"

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	run       string
	passenger string
	drivers   []string
	rideID    string
	winner    string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		run:   fmt.Sprintf("%d", time.Now().UnixNano()),
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: pingDB},
		{Name: "Env: Redis connect", Run: pingRedis},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: tablesExist},

		{Name: "API: health", Run: expect(http.MethodGet, "/health", http.StatusOK, `"status":"ok"`)},
		{Name: "API: metrics exposed", Run: expect(http.MethodGet, "/metrics", http.StatusOK, "http_requests_total")},
		{Name: "API: missing token -> 401", Run: expect(http.MethodGet, "/api/rides/active", http.StatusUnauthorized, "Authentication failed")},

		{Name: "Flow: seed category and drivers", Run: seed},
		{Name: "Flow: create passenger profile", Run: createProfile},
		{Name: "Flow: list categories", Run: asPassenger(http.MethodGet, "/api/categories", nil, http.StatusOK, smokeCategoryID)},
		{Name: "Flow: request ride (missing fields -> 400)", Run: asPassenger(http.MethodPost, "/api/rides", map[string]any{}, http.StatusBadRequest, "This field is required")},
		{Name: "Flow: request ride", Run: requestRide},
		{Name: "Flow: active ride visible", Run: withRide(func(ctx context.Context, r *Runner) Result {
			return r.expectAs(ctx, r.passenger, http.MethodGet, "/api/rides/active", nil, http.StatusOK, r.rideID)
		})},
		{Name: "Concurrency: drivers race to accept", Run: concurrentAccept},
		{Name: "Flow: losing driver location -> 400", Run: loserLocation},
		{Name: "Flow: driver arrives", Run: driverStep("arrive")},
		{Name: "Flow: winning driver location", Run: winnerLocation},
		{Name: "Flow: driver starts trip", Run: driverStep("start")},
		{Name: "Flow: driver completes trip", Run: driverStep("complete")},
		{Name: "Flow: passenger cancel completed -> 400", Run: withRide(func(ctx context.Context, r *Runner) Result {
			return r.expectAs(ctx, r.passenger, http.MethodPost, "/api/rides/"+r.rideID+"/cancel", map[string]any{}, http.StatusBadRequest, "cannot be cancelled")
		})},
		{Name: "Flow: passenger rates driver", Run: withRide(func(ctx context.Context, r *Runner) Result {
			return r.expectAs(ctx, r.passenger, http.MethodPost, "/api/rides/"+r.rideID+"/rate", map[string]any{"user_rating": 5, "user_feedback": "smooth ride"}, http.StatusOK, "")
		})},
		{Name: "Flow: second rating -> 400", Run: withRide(func(ctx context.Context, r *Runner) Result {
			return r.expectAs(ctx, r.passenger, http.MethodPost, "/api/rides/"+r.rideID+"/rate", map[string]any{"user_rating": 4}, http.StatusBadRequest, "")
		})},
		{Name: "Flow: driver rates passenger", Run: withRide(func(ctx context.Context, r *Runner) Result {
			if r.winner == "" {
				return Result{Status: statusSkip, Note: "ride not accepted"}
			}
			return r.expectAs(ctx, r.winner, http.MethodPost, "/api/driver/rides/"+r.rideID+"/rate", map[string]any{"driver_rating": 5}, http.StatusOK, "")
		})},
		{Name: "Flow: ride detail has trajectory", Run: withRide(func(ctx context.Context, r *Runner) Result {
			return r.expectAs(ctx, r.passenger, http.MethodGet, "/api/rides/"+r.rideID, nil, http.StatusOK, `"trajectory":[{`)
		})},
		{Name: "Consistency: status events recorded", Run: statusEvents},

		{Name: "Perf: list categories throughput", Run: perfLoad},
	}
}

func pingDB(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func pingRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusFail, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass}
}

// seed needs direct DB access: drivers are provisioned out of band, not through the API.
func seed(ctx context.Context, r *Runner) Result {
	if r.cfg.JWTSecret == "" {
		return Result{Status: statusSkip, Note: "jwt-secret not set"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO ride_categories (id, name, description, base_fare, per_km_rate, per_minute_rate, capacity)
		VALUES ($1, 'Smoke Economy', 'Seeded by bench', 2.50, 1.20, 0.30, 4)
		ON CONFLICT (id) DO UPDATE SET is_active = TRUE`, smokeCategoryID)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}

	n := r.cfg.Concurrency
	if n < 2 {
		n = 2
	}
	r.drivers = make([]string, 0, n)
	for i := 0; i < n; i++ {
		uid := fmt.Sprintf("bench-driver-%s-%d", r.run, i)
		if _, err := r.db.Exec(ctx,
			`INSERT INTO users (id, email, full_name, is_verified) VALUES ($1, $2, $3, TRUE)`,
			uid, uid+"@bench.local", fmt.Sprintf("Bench Driver %d", i),
		); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if _, err := r.db.Exec(ctx, `
			INSERT INTO drivers (id, user_id, vehicle_make, vehicle_model, vehicle_year, vehicle_color,
				vehicle_license_plate, driving_license_number, is_available, current_latitude, current_longitude, last_location_update)
			VALUES ($1, $2, 'Toyota', 'Prius', 2021, 'white', $3, $4, TRUE, 25.033, 121.565, NOW())`,
			uuid.NewString(), uid, fmt.Sprintf("BN-%s-%d", r.run[len(r.run)-6:], i), fmt.Sprintf("DL-%s-%d", r.run, i),
		); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		r.drivers = append(r.drivers, uid)
	}
	r.passenger = "bench-passenger-" + r.run
	return Result{Status: statusPass, Note: fmt.Sprintf("drivers=%d", n)}
}

func createProfile(ctx context.Context, r *Runner) Result {
	if r.passenger == "" {
		return Result{Status: statusSkip, Note: "flow not seeded"}
	}
	return r.expectAs(ctx, r.passenger, http.MethodPost, "/api/account", map[string]any{
		"email":     r.passenger + "@bench.local",
		"full_name": "Bench Passenger",
	}, http.StatusCreated, "")
}

func ridePayload() map[string]any {
	return map[string]any{
		"category_id":                smokeCategoryID,
		"pickup_latitude":            25.033,
		"pickup_longitude":           121.565,
		"pickup_address":             "Taipei 101",
		"destination_latitude":       25.0478,
		"destination_longitude":      121.5318,
		"destination_address":        "Taipei Main Station",
		"estimated_distance_km":      5.2,
		"estimated_duration_minutes": 14,
	}
}

func requestRide(ctx context.Context, r *Runner) Result {
	if r.passenger == "" {
		return Result{Status: statusSkip, Note: "flow not seeded"}
	}
	start := time.Now()
	status, body, err := r.call(ctx, r.passenger, http.MethodPost, "/api/rides", ridePayload())
	latency := time.Since(start)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	var env struct {
		Data struct {
			ID        string `json:"id"`
			TotalFare string `json:"total_fare"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Data.ID == "" {
		return Result{Status: statusFail, Latency: latency, Note: "no ride id in response"}
	}
	r.rideID = env.Data.ID
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("ride=%s fare=%s", r.rideID, env.Data.TotalFare)}
}

func concurrentAccept(ctx context.Context, r *Runner) Result {
	if r.rideID == "" {
		return Result{Status: statusSkip, Note: "no ride requested"}
	}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		others  = map[int]int{}
	)
	for _, uid := range r.drivers {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			status, _, err := r.call(ctx, uid, http.MethodPost, "/api/driver/rides/"+r.rideID+"/accept", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				others[0]++
			case status == http.StatusOK:
				winners = append(winners, uid)
			default:
				others[status]++
			}
		}(uid)
	}
	wg.Wait()

	if len(winners) != 1 {
		return Result{Status: statusFail, Note: fmt.Sprintf("success=%d others=%v", len(winners), others)}
	}
	r.winner = winners[0]
	return Result{Status: statusPass, Note: fmt.Sprintf("success=1 others=%v", others)}
}

func location(lat, lng float64, ride string) map[string]any {
	return map[string]any{"ride_id": ride, "latitude": lat, "longitude": lng}
}

func loserLocation(ctx context.Context, r *Runner) Result {
	if r.winner == "" {
		return Result{Status: statusSkip, Note: "ride not accepted"}
	}
	for _, uid := range r.drivers {
		if uid != r.winner {
			return r.expectAs(ctx, uid, http.MethodPost, "/api/location-update", location(25.04, 121.55, r.rideID), http.StatusBadRequest, "Invalid or inactive ride")
		}
	}
	return Result{Status: statusSkip, Note: "single driver"}
}

func winnerLocation(ctx context.Context, r *Runner) Result {
	if r.winner == "" {
		return Result{Status: statusSkip, Note: "ride not accepted"}
	}
	return r.expectAs(ctx, r.winner, http.MethodPost, "/api/location-update", location(25.04, 121.55, r.rideID), http.StatusCreated, "")
}

func driverStep(step string) func(ctx context.Context, r *Runner) Result {
	return func(ctx context.Context, r *Runner) Result {
		if r.winner == "" {
			return Result{Status: statusSkip, Note: "ride not accepted"}
		}
		return r.expectAs(ctx, r.winner, http.MethodPost, "/api/driver/rides/"+r.rideID+"/"+step, map[string]any{}, http.StatusOK, "")
	}
}

func statusEvents(ctx context.Context, r *Runner) Result {
	if r.rideID == "" || r.db == nil {
		return Result{Status: statusSkip, Note: "no ride to inspect"}
	}
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ride_status_events WHERE ride_id = $1`, r.rideID).Scan(&n); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	// requested, accepted, driver_arrived, in_progress, completed
	if n < 5 {
		return Result{Status: statusFail, Note: fmt.Sprintf("events=%d", n)}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("events=%d", n)}
}

func perfLoad(ctx context.Context, r *Runner) Result {
	if r.passenger == "" {
		return Result{Status: statusSkip, Note: "flow not seeded"}
	}
	token, err := r.token(r.passenger)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	end := time.Now().Add(r.cfg.Duration)
	var (
		count    int64
		errCount int64
		mu       sync.Mutex
		wg       sync.WaitGroup
	)

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/api/categories", nil)
				req.Header.Set("Authorization", "Bearer "+token)
				resp, err := r.httpc.Do(req)
				mu.Lock()
				if err != nil || resp.StatusCode != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func expect(method, path string, want int, snippet string) func(ctx context.Context, r *Runner) Result {
	return func(ctx context.Context, r *Runner) Result {
		return r.expectAs(ctx, "", method, path, nil, want, snippet)
	}
}

func withRide(fn func(ctx context.Context, r *Runner) Result) func(ctx context.Context, r *Runner) Result {
	return func(ctx context.Context, r *Runner) Result {
		if r.rideID == "" {
			return Result{Status: statusSkip, Note: "no ride requested"}
		}
		return fn(ctx, r)
	}
}

func asPassenger(method, path string, body any, want int, snippet string) func(ctx context.Context, r *Runner) Result {
	return func(ctx context.Context, r *Runner) Result {
		if r.passenger == "" {
			return Result{Status: statusSkip, Note: "flow not seeded"}
		}
		return r.expectAs(ctx, r.passenger, method, path, body, want, snippet)
	}
}

// expectAs sends the request as uid (anonymous when empty) and checks status and an optional body snippet.
func (r *Runner) expectAs(ctx context.Context, uid, method, path string, body any, want int, snippet string) Result {
	start := time.Now()
	status, raw, err := r.call(ctx, uid, method, path, body)
	latency := time.Since(start)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("status=%d", status)
	if status != want {
		return Result{Status: statusFail, Latency: latency, Note: note + " body=" + truncate(string(raw), 160)}
	}
	if snippet != "" && !strings.Contains(string(raw), snippet) {
		return Result{Status: statusFail, Latency: latency, Note: note + " missing " + snippet}
	}
	return Result{Status: statusPass, Latency: latency, Note: note}
}

func (r *Runner) call(ctx context.Context, uid, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		token, err := r.token(uid)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	return resp.StatusCode, raw, err
}

// token mints an HS256 token the API accepts when it runs with the same secret.
func (r *Runner) token(uid string) (string, error) {
	claims := jwt.MapClaims{
		"sub":            uid,
		"email":          uid + "@bench.local",
		"email_verified": true,
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(r.cfg.JWTSecret))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
