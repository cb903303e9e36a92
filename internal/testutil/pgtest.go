// README: Postgres helpers for DB-backed tests; skipped unless RIDEHAIL_TEST_DSN is set.
package testutil

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenDB connects to RIDEHAIL_TEST_DSN, applies the schema and empties every
// table. Tests sharing the database must not run in parallel.
func OpenDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("RIDEHAIL_TEST_DSN")
	if dsn == "" {
		t.Skip("RIDEHAIL_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, `TRUNCATE TABLE ride_status_events, ride_location_updates, rides,
		drivers, ride_categories, payment_methods, saved_locations, users CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

func SeedUser(t *testing.T, db *pgxpool.Pool, id string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO users (id, email, phone_number, full_name, date_joined)
		VALUES ($1, $2, $3, $4, $5)`,
		id, id+"@example.com", "+1555"+id, "User "+id, time.Now())
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

// SeedDriver creates a user and an active, available driver profile for it
// and returns the driver id.
func SeedDriver(t *testing.T, db *pgxpool.Pool, userID string) string {
	t.Helper()
	SeedUser(t, db, userID)
	id := uuid.NewString()
	_, err := db.Exec(context.Background(), `
		INSERT INTO drivers (id, user_id, vehicle_make, vehicle_model, vehicle_year, vehicle_color,
			vehicle_license_plate, driving_license_number, is_active, is_available, created_at, updated_at)
		VALUES ($1, $2, 'Toyota', 'Prius', 2022, 'white', $3, $4, TRUE, TRUE, NOW(), NOW())`,
		id, userID, fmt.Sprintf("PL-%s", userID), fmt.Sprintf("DL-%s", userID))
	if err != nil {
		t.Fatalf("seed driver %s: %v", userID, err)
	}
	return id
}

// SeedCategory creates an active category with base 2.00, 1.50/km and
// 0.25/min and returns its id.
func SeedCategory(t *testing.T, db *pgxpool.Pool, name string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(context.Background(), `
		INSERT INTO ride_categories (id, name, description, base_fare, per_km_rate, per_minute_rate,
			capacity, is_active, created_at, updated_at)
		VALUES ($1, $2, $2, 2.00, 1.50, 0.25, 4, TRUE, NOW(), NOW())`, id, name)
	if err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return id
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w\n%s", err, stmt)
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
