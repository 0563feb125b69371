package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"tutorflow/backend/internal/domain"
	"tutorflow/backend/internal/store"
)

func TestPostgresIntegration_BookingInsertOverlapAndStatus(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("TUTORFLOW_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("TUTORFLOW_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "tutorflow_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema + ", public").Exec(ctx); err != nil {
			return err
		}
		if err := applyMigrations(ctx, tx); err != nil {
			return err
		}

		bt := bookingTx{tx: tx}

		start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		end := start.Add(time.Hour)

		b1, err := bt.Insert(ctx, domain.Booking{
			TutorID:   "t1",
			StudentID: "s1",
			CourseID:  "algebra-101",
			StartTime: start,
			EndTime:   end,
			Status:    domain.BookingStatusPending,
		})
		if err != nil {
			return err
		}

		rows, err := bt.ActiveBookingsTouching(ctx, "t1", start.Add(-time.Minute), end.Add(time.Minute))
		if err != nil {
			return err
		}
		if len(rows) != 1 || rows[0].ID != b1.ID {
			return fmt.Errorf("tutor rows = %v, want the inserted booking", rows)
		}
		rows, err = bt.ActiveBookingsTouching(ctx, "s1", start, end)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return fmt.Errorf("student rows = %v, want 1", rows)
		}

		// The tutor exclusion constraint rejects the overlap.
		_, err = bt.Insert(ctx, domain.Booking{
			TutorID:   "t1",
			StudentID: "s2",
			CourseID:  "algebra-101",
			StartTime: start.Add(30 * time.Minute),
			EndTime:   end.Add(30 * time.Minute),
			Status:    domain.BookingStatusPending,
		})
		if err != store.ErrConflict {
			return fmt.Errorf("tutor overlap err = %v, want %v", err, store.ErrConflict)
		}

		// So does the student-side constraint for a different tutor.
		_, err = bt.Insert(ctx, domain.Booking{
			TutorID:   "t2",
			StudentID: "s1",
			CourseID:  "algebra-101",
			StartTime: start,
			EndTime:   end,
			Status:    domain.BookingStatusPending,
		})
		if err != store.ErrConflict {
			return fmt.Errorf("student overlap err = %v, want %v", err, store.ErrConflict)
		}

		// Back-to-back bookings share an endpoint without conflict.
		if _, err := bt.Insert(ctx, domain.Booking{
			TutorID:   "t1",
			StudentID: "s2",
			CourseID:  "algebra-101",
			StartTime: end,
			EndTime:   end.Add(time.Hour),
			Status:    domain.BookingStatusPending,
		}); err != nil {
			return fmt.Errorf("adjacent insert err = %v", err)
		}

		// A cancelled booking does not occupy the schedule.
		if _, err := bt.Insert(ctx, domain.Booking{
			TutorID:   "t9",
			StudentID: "s1",
			CourseID:  "algebra-101",
			StartTime: start,
			EndTime:   end,
			Status:    domain.BookingStatusCancelled,
		}); err != nil {
			return fmt.Errorf("cancelled insert err = %v", err)
		}

		updated, err := bt.UpdateStatus(ctx, b1.ID, domain.BookingStatusConfirmed, "https://meet.tutorflow.app/x")
		if err != nil {
			return err
		}
		if updated.Status != domain.BookingStatusConfirmed || updated.MeetingLink == "" {
			return fmt.Errorf("updated = %+v, want confirmed with meeting link", updated)
		}

		got, err := bt.Booking(ctx, b1.ID)
		if err != nil {
			return err
		}
		if got.Status != domain.BookingStatusConfirmed {
			return fmt.Errorf("reread status = %s, want confirmed", got.Status)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type mig struct {
		name string
		path string
	}
	migs := make([]mig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migs = append(migs, mig{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].name < migs[j].name })

	for _, m := range migs {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if normalized, ok := normalizeExtensionStatement(stmt); ok {
				stmt = normalized
			}
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func normalizeExtensionStatement(stmt string) (string, bool) {
	s := strings.TrimSpace(stmt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "CREATE EXTENSION") {
		return "", false
	}
	if !strings.Contains(upper, "BTREE_GIST") {
		return "", false
	}
	if strings.Contains(upper, " SCHEMA ") {
		return "", false
	}
	return s + " SCHEMA public", true
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
