package policysync

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// QuotaWindow is the durable record of one rolling 15-minute quota window,
// mirroring store.QuotaState but owned by Postgres instead of the on-device
// cache (spec §9 Open Questions leaves the refill policy itself external).
type QuotaWindow struct {
	MaxPer15m   int
	Remaining   int
	WindowStart time.Time
}

// DurableStore persists quota windows in Postgres via database/sql, using
// the jackc/pgx/v5 stdlib driver the same way the rest of the ecosystem's
// Postgres-backed stores do (plain Exec/QueryRow, no ORM).
type DurableStore struct {
	db *sql.DB
}

// OpenDurableStore connects to Postgres and applies pending migrations.
func OpenDurableStore(ctx context.Context, dsn string) (*DurableStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("policysync: open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("policysync: ping db: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("policysync: migrate: %w", err)
	}

	return &DurableStore{db: db}, nil
}

func applyMigrations(db *sql.DB) error {
	srcDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *DurableStore) Close() error {
	return d.db.Close()
}

// LoadWindow returns the current quota window row, creating a fresh one with
// the given default max if none exists yet.
func (d *DurableStore) LoadWindow(ctx context.Context, defaultMax int) (QuotaWindow, error) {
	var w QuotaWindow
	err := d.db.QueryRowContext(ctx,
		`SELECT max_per_15m, remaining, window_start FROM quota_windows WHERE id = 1`,
	).Scan(&w.MaxPer15m, &w.Remaining, &w.WindowStart)
	if err == sql.ErrNoRows {
		w = QuotaWindow{MaxPer15m: defaultMax, Remaining: defaultMax, WindowStart: time.Now()}
		_, insertErr := d.db.ExecContext(ctx,
			`INSERT INTO quota_windows (id, max_per_15m, remaining, window_start) VALUES (1, $1, $2, $3)`,
			w.MaxPer15m, w.Remaining, w.WindowStart,
		)
		return w, insertErr
	}
	return w, err
}

// Refill resets remaining to max and records a fresh window start, returning
// the new row.
func (d *DurableStore) Refill(ctx context.Context, max int) (QuotaWindow, error) {
	w := QuotaWindow{MaxPer15m: max, Remaining: max, WindowStart: time.Now()}
	_, err := d.db.ExecContext(ctx,
		`UPDATE quota_windows SET max_per_15m = $1, remaining = $2, window_start = $3 WHERE id = 1`,
		w.MaxPer15m, w.Remaining, w.WindowStart,
	)
	return w, err
}
