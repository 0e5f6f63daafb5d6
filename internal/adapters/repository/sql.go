package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Driver names accepted by NewSQLStore.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore is a Store backed by database/sql. It speaks SQLite through
// modernc.org/sqlite and PostgreSQL through pgx.
type SQLStore struct {
	db              *sql.DB
	driver          string
	maxOpenConns    int
	connMaxLifetime time.Duration
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore opens dsn with driver, pings it and applies pending migrations.
func NewSQLStore(ctx context.Context, driver, dsn string, opts ...SQLOption) (*SQLStore, error) {
	s := &SQLStore{driver: driver, maxOpenConns: 8, connMaxLifetime: 30 * time.Minute}
	for _, opt := range opts {
		opt(s)
	}

	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite"
		// One writer at a time, and in-memory databases are per connection.
		s.maxOpenConns = 1
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetConnMaxLifetime(s.connMaxLifetime)
	s.db = db

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var count int
		if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = s.inTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range strings.Split(string(body), ";") {
				if strings.TrimSpace(stmt) == "" {
					continue
				}
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`),
				name, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) fail(op string, err error) error {
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreError(op)
	}
	return err
}

// Clients implements Store.
func (s *SQLStore) Clients(ctx context.Context) ([]model.Client, error) {
	defer observe("clients", time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, contact_name, contact_email, manager_id, client_type FROM clients ORDER BY id`)
	if err != nil {
		return nil, s.fail("clients", fmt.Errorf("query clients: %w", err))
	}
	defer rows.Close()

	out := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, s.fail("clients", err)
		}
		out = append(out, c)
	}
	return out, s.fail("clients", rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (model.Client, error) {
	var (
		c       model.Client
		manager sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactEmail, &manager, &c.ClientType); err != nil {
		return model.Client{}, err
	}
	if manager.Valid {
		m := manager.String
		c.ManagerID = &m
	}
	return c, nil
}

// Client implements Store.
func (s *SQLStore) Client(ctx context.Context, id string) (model.Client, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, contact_name, contact_email, manager_id, client_type FROM clients WHERE id = ?`), id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Client{}, ErrNotFound
	}
	return c, s.fail("client", err)
}

// Metrics implements Store.
func (s *SQLStore) Metrics(ctx context.Context) ([]model.Metric, error) {
	defer observe("metrics", time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, applicability, sort_order FROM metrics ORDER BY sort_order, id`)
	if err != nil {
		return nil, s.fail("metrics", fmt.Errorf("query metrics: %w", err))
	}
	defer rows.Close()

	out := []model.Metric{}
	for rows.Next() {
		var m model.Metric
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Applicability, &m.SortOrder); err != nil {
			return nil, s.fail("metrics", err)
		}
		out = append(out, m)
	}
	return out, s.fail("metrics", rows.Err())
}

// Metric implements Store.
func (s *SQLStore) Metric(ctx context.Context, id string) (model.Metric, error) {
	var m model.Metric
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, description, applicability, sort_order FROM metrics WHERE id = ?`), id).
		Scan(&m.ID, &m.Name, &m.Description, &m.Applicability, &m.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Metric{}, ErrNotFound
	}
	return m, s.fail("metric", err)
}

// Users implements Store.
func (s *SQLStore) Users(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, role FROM users ORDER BY id`)
	if err != nil {
		return nil, s.fail("users", fmt.Errorf("query users: %w", err))
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role); err != nil {
			return nil, s.fail("users", err)
		}
		out = append(out, u)
	}
	return out, s.fail("users", rows.Err())
}

// Schedule implements Store.
func (s *SQLStore) Schedule(ctx context.Context) ([]model.ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT manager_id, presentation_order FROM presentation_schedule ORDER BY presentation_order, manager_id`)
	if err != nil {
		return nil, s.fail("schedule", fmt.Errorf("query schedule: %w", err))
	}
	defer rows.Close()

	out := []model.ScheduleEntry{}
	for rows.Next() {
		var e model.ScheduleEntry
		if err := rows.Scan(&e.ManagerID, &e.PresentationOrder); err != nil {
			return nil, s.fail("schedule", err)
		}
		out = append(out, e)
	}
	return out, s.fail("schedule", rows.Err())
}

// ReplaceSchedule implements Store.
func (s *SQLStore) ReplaceSchedule(ctx context.Context, entries []model.ScheduleEntry) error {
	defer observe("replace_schedule", time.Now())
	if err := (Dataset{Schedule: entries}).Validate(); err != nil {
		return err
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM presentation_schedule`); err != nil {
			return err
		}
		return s.upsertSchedule(ctx, tx, dedupeSchedule(entries))
	})
	return s.fail("replace_schedule", err)
}

func (s *SQLStore) upsertSchedule(ctx context.Context, tx *sql.Tx, entries []model.ScheduleEntry) error {
	q := s.rebind(`INSERT INTO presentation_schedule (manager_id, presentation_order) VALUES (?, ?)
		ON CONFLICT (manager_id) DO UPDATE SET presentation_order = excluded.presentation_order`)
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, q, e.ManagerID, e.PresentationOrder); err != nil {
			return fmt.Errorf("upsert schedule %s: %w", e.ManagerID, err)
		}
	}
	return nil
}

// Reports implements Store.
func (s *SQLStore) Reports(ctx context.Context, week model.Week) ([]model.WeeklyReport, error) {
	defer observe("reports", time.Now())
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT client_id, metric_id, score FROM scores WHERE week = ? ORDER BY client_id, metric_id`), string(week))
	if err != nil {
		return nil, s.fail("reports", fmt.Errorf("query reports: %w", err))
	}
	defer rows.Close()

	out := []model.WeeklyReport{}
	for rows.Next() {
		var (
			clientID string
			e        model.ScoreEntry
		)
		if err := rows.Scan(&clientID, &e.MetricID, &e.Score); err != nil {
			return nil, s.fail("reports", err)
		}
		if len(out) == 0 || out[len(out)-1].ClientID != clientID {
			out = append(out, model.WeeklyReport{ClientID: clientID, Week: week})
		}
		last := &out[len(out)-1]
		last.Scores = append(last.Scores, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("reports", err)
	}
	for i := range out {
		out[i].Recount()
	}
	return out, nil
}

// Report implements Store.
func (s *SQLStore) Report(ctx context.Context, clientID string, week model.Week) (model.WeeklyReport, error) {
	return s.report(ctx, s.db, clientID, week)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) report(ctx context.Context, q querier, clientID string, week model.Week) (model.WeeklyReport, error) {
	rows, err := q.QueryContext(ctx, s.rebind(`SELECT metric_id, score FROM scores WHERE client_id = ? AND week = ? ORDER BY metric_id`), clientID, string(week))
	if err != nil {
		return model.WeeklyReport{}, s.fail("report", fmt.Errorf("query report: %w", err))
	}
	defer rows.Close()

	r := model.WeeklyReport{ClientID: clientID, Week: week}
	for rows.Next() {
		var e model.ScoreEntry
		if err := rows.Scan(&e.MetricID, &e.Score); err != nil {
			return model.WeeklyReport{}, s.fail("report", err)
		}
		r.Scores = append(r.Scores, e)
	}
	if err := rows.Err(); err != nil {
		return model.WeeklyReport{}, s.fail("report", err)
	}
	if len(r.Scores) == 0 {
		return model.WeeklyReport{}, ErrNotFound
	}
	r.Recount()
	return r, nil
}

const upsertScoreSQL = `INSERT INTO scores (client_id, week, metric_id, score) VALUES (?, ?, ?, ?)
	ON CONFLICT (client_id, week, metric_id) DO UPDATE SET score = excluded.score`

// UpsertScore implements Store.
func (s *SQLStore) UpsertScore(ctx context.Context, clientID string, week model.Week, metricID string, score model.Score) (model.WeeklyReport, error) {
	defer observe("upsert_score", time.Now())
	if !score.Valid() {
		metrics.RecordStoreError("upsert_score")
		return model.WeeklyReport{}, model.ErrInvalidScore
	}

	var out model.WeeklyReport
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(upsertScoreSQL), clientID, string(week), metricID, string(score)); err != nil {
			return fmt.Errorf("upsert score: %w", err)
		}
		r, err := s.report(ctx, tx, clientID, week)
		out = r
		return err
	})
	if err != nil {
		return model.WeeklyReport{}, s.fail("upsert_score", err)
	}
	return out, nil
}

// Import implements Store.
func (s *SQLStore) Import(ctx context.Context, data Dataset) error {
	defer observe("import", time.Now())
	if err := data.Validate(); err != nil {
		return err
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		userQ := s.rebind(`INSERT INTO users (id, name, email, role) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, role = excluded.role`)
		for _, u := range data.Users {
			if _, err := tx.ExecContext(ctx, userQ, u.ID, u.Name, u.Email, u.Role); err != nil {
				return fmt.Errorf("import user %s: %w", u.ID, err)
			}
		}

		clientQ := s.rebind(`INSERT INTO clients (id, name, contact_name, contact_email, manager_id, client_type) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, contact_name = excluded.contact_name,
			contact_email = excluded.contact_email, manager_id = excluded.manager_id, client_type = excluded.client_type`)
		for _, c := range data.Clients {
			var manager sql.NullString
			if c.ManagerID != nil {
				manager = sql.NullString{String: *c.ManagerID, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, clientQ, c.ID, c.Name, c.ContactName, c.ContactEmail, manager, c.ClientType); err != nil {
				return fmt.Errorf("import client %s: %w", c.ID, err)
			}
		}

		metricQ := s.rebind(`INSERT INTO metrics (id, name, description, applicability, sort_order) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, description = excluded.description,
			applicability = excluded.applicability, sort_order = excluded.sort_order`)
		for _, m := range data.Metrics {
			applicability, _ := model.ParseApplicability(string(m.Applicability))
			if _, err := tx.ExecContext(ctx, metricQ, m.ID, m.Name, m.Description, string(applicability), m.SortOrder); err != nil {
				return fmt.Errorf("import metric %s: %w", m.ID, err)
			}
		}

		if err := s.upsertSchedule(ctx, tx, dedupeSchedule(data.Schedule)); err != nil {
			return err
		}

		scoreQ := s.rebind(upsertScoreSQL)
		for _, r := range data.Reports {
			for _, e := range r.Scores {
				if _, err := tx.ExecContext(ctx, scoreQ, r.ClientID, string(r.Week), e.MetricID, string(e.Score)); err != nil {
					return fmt.Errorf("import score %s/%s/%s: %w", r.ClientID, r.Week, e.MetricID, err)
				}
			}
		}
		return nil
	})
	return s.fail("import", err)
}

// New opens the store selected by driver. "memory" ignores dsn.
func New(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(ctx), nil
	case DriverSQLite, DriverPostgres:
		return NewSQLStore(ctx, driver, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
