package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// Options configures an SQLStore.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Location decides the calendar day of a record for streaks and daily analytics.
	Location *time.Location
}

// SQLStore implements Store over database/sql for SQLite, MySQL and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger
}

// Open connects to the database described by opts and verifies the connection.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*SQLStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	if dialect.Name() == "sqlite" {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dialect.Name())
	}

	if dialect.Name() == "sqlite" {
		// SQLite only supports 1 writer; an in-memory database also lives on a single connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s", dialect.Name())
	}

	log.Info("database connected", zap.String("driver", dialect.Name()))
	return NewSQLStore(db, dialect, opts.Location, log), nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect, loc *time.Location, log *zap.Logger) *SQLStore {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		loc:     loc,
		now:     time.Now,
		log:     log.Named("store"),
	}
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	pragmas := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if !strings.Contains(dsn, ":memory:") && !strings.Contains(dsn, "mode=memory") {
		pragmas += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	return dsn + sep + pragmas
}

// Migrate creates the schema if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate %s", s.dialect.Name())
		}
	}
	s.log.Info("schema ready", zap.String("driver", s.dialect.Name()))
	return nil
}

// DB returns the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns the store's dialect.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Location returns the timezone used for calendar days.
func (s *SQLStore) Location() *time.Location { return s.loc }

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Stats returns row counts and pool statistics.
func (s *SQLStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	out := map[string]interface{}{"driver": s.dialect.Name()}
	for _, t := range tables {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
			return nil, errors.Wrapf(err, "count %s", t.name)
		}
		out[t.name] = n
	}
	ps := s.db.Stats()
	out["open_connections"] = ps.OpenConnections
	out["in_use"] = ps.InUse
	out["idle"] = ps.Idle
	return out, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLStore) q(query string) string { return s.dialect.Rebind(query) }

func (s *SQLStore) exists(ctx context.Context, db querier, tableName, id string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM "+tableName+" WHERE id = ?"), id).Scan(&n)
	if err != nil {
		return false, errors.Wrapf(err, "check %s", tableName)
	}
	return n > 0, nil
}

func (s *SQLStore) day(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// boolInt keeps booleans portable across drivers; the schema stores them as integers.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
