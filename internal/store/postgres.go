package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"carpnav/internal/model"
	"carpnav/internal/pathscan"
	"carpnav/internal/report"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the embedded migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	return p.migrateFS(ctx, sub)
}

// MigrateDir applies the *.sql files of dir in name order.
func (p *Postgres) MigrateDir(dir string) error {
	return p.migrateFS(context.Background(), os.DirFS(dir))
}

// migrateFS runs every not yet applied file in its own transaction and
// records it in schema_migrations.
func (p *Postgres) migrateFS(ctx context.Context, fsys fs.FS) error {
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name text PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())`); err != nil {
		return err
	}
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		var done bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name=$1)`, name).Scan(&done); err != nil {
			return err
		}
		if done {
			continue
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if err := p.apply(ctx, name, string(body)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) apply(ctx context.Context, name, body string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(body) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements splits a migration file on semicolons. Migrations must not
// contain semicolons inside literals or function bodies.
func splitStatements(body string) []string {
	var out []string
	for _, s := range strings.Split(body, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

const runColumns = `id::text, instance, status, outcome, error, vertices, required, capacity, depot, total_cost, total_demand, route_count, total_ns, solve_ns, created_at`

func (p *Postgres) CreateRun(ctx context.Context, r model.Run) (model.Run, error) {
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return r, err
		}
		r.ID = id.String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	sol, err := jsonOrNil(r.Solution)
	if err != nil {
		return r, err
	}
	rep, err := jsonOrNil(r.Report)
	if err != nil {
		return r, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, instance, status, outcome, error, vertices, required, capacity, depot, total_cost, total_demand, route_count, total_ns, solve_ns, solution, report, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15::jsonb,$16::jsonb,$17)`,
		r.ID, r.Instance, r.Status, r.Outcome, nullIfEmpty(r.Error), r.Vertices, r.Required, r.Capacity, r.Depot,
		r.TotalCost, r.TotalDemand, r.RouteCount, r.TotalNS, r.SolveNS, sol, rep, r.CreatedAt)
	return r, err
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Run{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+`, solution::text, report::text FROM runs WHERE id=$1`, id)
	var sol, rep sql.NullString
	r, err := scanRun(row, &sol, &rep)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, ErrNotFound
		}
		return r, err
	}
	if sol.Valid {
		r.Solution = &pathscan.Solution{}
		if err := json.Unmarshal([]byte(sol.String), r.Solution); err != nil {
			return r, fmt.Errorf("decode solution of run %s: %w", id, err)
		}
	}
	if rep.Valid {
		r.Report = &report.Report{}
		if err := json.Unmarshal([]byte(rep.String), r.Report); err != nil {
			return r, fmt.Errorf("decode report of run %s: %w", id, err)
		}
	}
	return r, nil
}

func (p *Postgres) ListRuns(ctx context.Context, instance, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	q := `SELECT ` + runColumns + ` FROM runs WHERE ($1 = '' OR instance = $1)`
	args := []any{instance}
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			return nil, "", fmt.Errorf("cursor %q: %w", cursor, ErrInvalidCursor)
		}
		q += ` AND id < $2::uuid`
		args = append(args, cursor)
	}
	q += fmt.Sprintf(` ORDER BY id DESC LIMIT %d`, limit+1)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	items := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = items[limit-1].ID
	}
	return items, next, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner, extra ...any) (model.Run, error) {
	var r model.Run
	var errText sql.NullString
	dest := []any{&r.ID, &r.Instance, &r.Status, &r.Outcome, &errText, &r.Vertices, &r.Required, &r.Capacity, &r.Depot,
		&r.TotalCost, &r.TotalDemand, &r.RouteCount, &r.TotalNS, &r.SolveNS, &r.CreatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return r, err
	}
	r.Error = errText.String
	return r, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// jsonOrNil encodes v for a jsonb parameter, mapping nil pointers to NULL.
func jsonOrNil[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
