package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/domain"
)

func TestMakeID_Format(t *testing.T) {
	at := time.Date(2025, 8, 18, 12, 0, 0, 42, time.UTC)
	got := makeID(at)
	want := "20250818T120000.000000042"
	if got != want {
		t.Fatalf("makeID: got %q want %q", got, want)
	}
}

func ensureSchema(t *testing.T, dsn string) {
	t.Helper()
	schema, err := os.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("read schema.sql: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func TestPostgresStore_AlertLifecycle(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ensureSchema(t, dsn)

	ctx := context.Background()
	s, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	id, err := s.Create(ctx, &domain.Alert{
		SensorID:  "it-01",
		Metric:    domain.MetricTemperature,
		Value:     42,
		Threshold: 35,
		Message:   "temperature too high: 42",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	unsent, err := s.ListUnsent(ctx)
	if err != nil {
		t.Fatalf("ListUnsent: %v", err)
	}
	found := false
	for _, a := range unsent {
		if a.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("created alert %s not in unsent set", id)
	}

	if err := s.MarkSent(ctx, id); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if err := s.MarkSent(ctx, id); err != nil {
		t.Fatalf("MarkSent should be idempotent: %v", err)
	}
}

func TestPostgresStore_PolicyDefaultAndPatch(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ensureSchema(t, dsn)

	ctx := context.Background()
	s, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	p, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Thresholds[domain.MetricTemperature].Max != 35 {
		t.Fatalf("unexpected policy: %+v", p)
	}

	on := true
	got, err := s.Patch(ctx, domain.PolicyPatch{Enabled: &on})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if !got.Enabled {
		t.Fatal("patch not applied")
	}
}
