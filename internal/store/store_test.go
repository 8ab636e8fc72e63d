package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testMigrations(applied *int) []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create widgets",
			Up: func(tx *sql.Tx) error {
				*applied++
				_, err := tx.Exec(`CREATE TABLE widgets (id TEXT PRIMARY KEY)`)
				return err
			},
		},
	}
}

func TestMigrate_AppliesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var applied int
	if err := s.Migrate(ctx, "widgets", testMigrations(&applied)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := s.Migrate(ctx, "widgets", testMigrations(&applied)); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied %d times, want 1", applied)
	}

	if _, err := s.DB().Exec(`INSERT INTO widgets (id) VALUES ('w1')`); err != nil {
		t.Errorf("migrated table unusable: %v", err)
	}
}

func TestMigrate_ModulesAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := []Migration{{
		Version:     1,
		Description: "noop",
		Up:          func(tx *sql.Tx) error { return nil },
	}}
	if err := s.Migrate(ctx, "alpha", m); err != nil {
		t.Fatalf("migrate alpha: %v", err)
	}
	// Same version number under a different module name must still apply.
	var applied int
	if err := s.Migrate(ctx, "beta", testMigrations(&applied)); err != nil {
		t.Fatalf("migrate beta: %v", err)
	}
	if applied != 1 {
		t.Errorf("beta applied %d times, want 1", applied)
	}
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := []Migration{{
		Version:     1,
		Description: "broken",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE TABLE gone (id TEXT)`); err != nil {
				return err
			}
			return errors.New("boom")
		},
	}}
	if err := s.Migrate(ctx, "bad", bad); err == nil {
		t.Fatal("expected migration error")
	}

	// The failed migration must not be recorded as applied.
	var count int
	err := s.DB().QueryRow(`SELECT COUNT(*) FROM _migrations WHERE module_name = 'bad'`).Scan(&count)
	if err != nil {
		t.Fatalf("query migrations: %v", err)
	}
	if count != 0 {
		t.Errorf("failed migration recorded %d times", count)
	}
}

func TestCheckVersion_FirstRun(t *testing.T) {
	s := newTestStore(t)
	if err := s.CheckVersion(context.Background(), "0.2.0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckVersion_OlderBinaryRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CheckVersion(ctx, "0.3.0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.CheckVersion(ctx, "0.2.0")
	if !errors.Is(err, ErrNewerSchema) {
		t.Fatalf("err = %v, want ErrNewerSchema", err)
	}
}

func TestCheckVersion_UpgradePasses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CheckVersion(ctx, "0.2.0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CheckVersion(ctx, "0.3.0"); err != nil {
		t.Fatalf("upgrade rejected: %v", err)
	}
}

func TestCheckVersion_DevAlwaysPasses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CheckVersion(ctx, "0.9.0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CheckVersion(ctx, "dev"); err != nil {
		t.Fatalf("dev build rejected: %v", err)
	}
}
