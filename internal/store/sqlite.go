package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/holocene/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore represents the SQLite-backed plan database.
type SQLiteStore struct {
	db            *sql.DB
	schemaVersion int64
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is a distinct database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	version, err := RunMigrations(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, schemaVersion: version}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the goose schema version applied at open.
func (s *SQLiteStore) SchemaVersion() int64 {
	return s.schemaVersion
}

const planColumns = `id, name, length, width, height, weight, quantity, stackable, tiltable`

// scanPlan scans a row selected with planColumns into a Plan.
func scanPlan(scanner interface{ Scan(...any) error }) (*types.Plan, error) {
	var p types.Plan
	err := scanner.Scan(
		&p.ID,
		&p.Name,
		&p.Length,
		&p.Width,
		&p.Height,
		&p.Weight,
		&p.Quantity,
		&p.Stackable,
		&p.Tiltable,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertPlan stores a new plan built from the patch. Absent fields take
// their zero value. The store assigns a ULID.
func (s *SQLiteStore) InsertPlan(ctx context.Context, patch *types.PlanPatch) (*types.Plan, error) {
	if patch == nil {
		return nil, ErrInvalidPlan
	}

	plan := patch.Apply(types.Plan{})
	plan.ID = ulid.Make().String()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, length, width, height, weight, quantity, stackable, tiltable, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, plan.ID, plan.Name, plan.Length, plan.Width, plan.Height, plan.Weight, plan.Quantity,
		plan.Stackable, plan.Tiltable, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}

	return &plan, nil
}

// UpdatePlan merges the present fields of the patch into an existing plan.
// A missing id is not an error; it reports false.
func (s *SQLiteStore) UpdatePlan(ctx context.Context, id string, patch *types.PlanPatch) (bool, error) {
	if patch == nil {
		return false, ErrInvalidPlan
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE plans SET
			name      = COALESCE(?, name),
			length    = COALESCE(?, length),
			width     = COALESCE(?, width),
			height    = COALESCE(?, height),
			weight    = COALESCE(?, weight),
			quantity  = COALESCE(?, quantity),
			stackable = COALESCE(?, stackable),
			tiltable  = COALESCE(?, tiltable),
			updated_at = ?
		WHERE id = ?
	`,
		nullable(patch.Name),
		nullable(patch.Length),
		nullable(patch.Width),
		nullable(patch.Height),
		nullable(patch.Weight),
		nullable(patch.Quantity),
		nullable(patch.Stackable),
		nullable(patch.Tiltable),
		now,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("update plan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeletePlan removes a plan. A missing id is not an error; it reports false.
func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete plan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// GetPlan retrieves a plan by ID.
func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*types.Plan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)

	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return plan, nil
}

// ListPlans returns every plan. No ORDER BY: rows come back in table order.
func (s *SQLiteStore) ListPlans(ctx context.Context) ([]types.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []types.Plan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		plans = append(plans, *plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	slog.Debug("plans listed", "component", "store", "action", "list_plans", "count", len(plans))
	return plans, nil
}

// GetStats returns aggregate store statistics
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plans").Scan(&count); err != nil {
		return nil, fmt.Errorf("count plans: %w", err)
	}
	return &types.StoreStats{PlanCount: count}, nil
}

// nullable turns an absent patch field into SQL NULL so COALESCE keeps the
// stored value.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
