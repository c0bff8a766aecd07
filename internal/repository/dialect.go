package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect interface {
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	Rebind(query string) string
	// InsertIgnore returns an INSERT that silently skips rows violating a unique key.
	InsertIgnore(table string, columns ...string) string
	Schema() []string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "mysql", "mariadb":
		return mysqlDialect{}, nil
	case "postgres", "postgresql", "pg":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", name)
	}
}

type column struct {
	name string
	typ  string
}

type index struct {
	name    string
	columns string
}

type table struct {
	name       string
	columns    []column
	primaryKey string
	indexes    []index
}

// Types are kept to what all three databases accept. Timestamps are unix
// milliseconds; consumed_day is the local calendar day of the record.
var tables = []table{
	{
		name: "users",
		columns: []column{
			{"id", "VARCHAR(64) NOT NULL"},
			{"display_name", "VARCHAR(255) NOT NULL DEFAULT ''"},
			{"email", "VARCHAR(255) NOT NULL DEFAULT ''"},
			{"role", "VARCHAR(16) NOT NULL DEFAULT 'user'"},
			{"total_points", "BIGINT NOT NULL DEFAULT 0"},
			{"disabled", "INTEGER NOT NULL DEFAULT 0"},
			{"created_at", "BIGINT NOT NULL"},
			{"updated_at", "BIGINT NOT NULL"},
		},
		primaryKey: "id",
	},
	{
		name: "venues",
		columns: []column{
			{"id", "VARCHAR(64) NOT NULL"},
			{"name", "VARCHAR(255) NOT NULL"},
			{"address", "VARCHAR(512) NOT NULL DEFAULT ''"},
			{"latitude", "DOUBLE PRECISION NOT NULL DEFAULT 0"},
			{"longitude", "DOUBLE PRECISION NOT NULL DEFAULT 0"},
			{"active", "INTEGER NOT NULL DEFAULT 1"},
			{"created_at", "BIGINT NOT NULL"},
		},
		primaryKey: "id",
	},
	{
		name: "products",
		columns: []column{
			{"id", "VARCHAR(64) NOT NULL"},
			{"brand_name", "VARCHAR(255) NOT NULL"},
			{"display_name", "VARCHAR(255) NOT NULL DEFAULT ''"},
			{"category", "VARCHAR(32) NOT NULL"},
			{"volume_ml", "INTEGER NOT NULL DEFAULT 0"},
			{"is_target_brand", "INTEGER NOT NULL DEFAULT 0"},
			{"active", "INTEGER NOT NULL DEFAULT 1"},
			{"created_at", "BIGINT NOT NULL"},
		},
		primaryKey: "id",
	},
	{
		name: "consumptions",
		columns: []column{
			{"id", "BIGINT NOT NULL"},
			{"user_id", "VARCHAR(64) NOT NULL"},
			{"venue_id", "VARCHAR(64)"},
			{"product_id", "VARCHAR(64)"},
			{"brand_name", "VARCHAR(255) NOT NULL DEFAULT ''"},
			{"category", "VARCHAR(32) NOT NULL"},
			{"volume_ml", "INTEGER NOT NULL"},
			{"quantity", "INTEGER NOT NULL"},
			{"confidence", "DOUBLE PRECISION NOT NULL"},
			{"is_target_brand", "INTEGER NOT NULL"},
			{"points", "BIGINT NOT NULL"},
			{"image_key", "VARCHAR(512) NOT NULL DEFAULT ''"},
			{"source", "VARCHAR(16) NOT NULL"},
			{"note", "VARCHAR(255) NOT NULL DEFAULT ''"},
			{"consumed_at", "BIGINT NOT NULL"},
			{"consumed_day", "VARCHAR(10) NOT NULL"},
		},
		primaryKey: "id",
		indexes: []index{
			{"idx_consumptions_user_time", "user_id, consumed_at"},
			{"idx_consumptions_time", "consumed_at"},
			{"idx_consumptions_day", "consumed_day"},
		},
	},
	{
		name: "user_badges",
		columns: []column{
			{"user_id", "VARCHAR(64) NOT NULL"},
			{"badge_id", "VARCHAR(64) NOT NULL"},
			{"earned_at", "BIGINT NOT NULL"},
		},
		primaryKey: "user_id, badge_id",
	},
	{
		name: "user_characters",
		columns: []column{
			{"user_id", "VARCHAR(64) NOT NULL"},
			{"character_id", "VARCHAR(64) NOT NULL"},
			{"unlocked_at", "BIGINT NOT NULL"},
		},
		primaryKey: "user_id, character_id",
	},
}

func createTable(t table, inlineIndexes bool, suffix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.name)
	for _, c := range t.columns {
		fmt.Fprintf(&b, "\t%s %s,\n", c.name, c.typ)
	}
	if inlineIndexes {
		for _, idx := range t.indexes {
			fmt.Fprintf(&b, "\tINDEX %s (%s),\n", idx.name, idx.columns)
		}
	}
	fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n)%s", t.primaryKey, suffix)
	return b.String()
}

func separateIndexSchema(suffix string) []string {
	var stmts []string
	for _, t := range tables {
		stmts = append(stmts, createTable(t, false, suffix))
		for _, idx := range t.indexes {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, t.name, idx.columns))
		}
	}
	return stmts
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string               { return "sqlite" }
func (sqliteDialect) DriverName() string         { return "sqlite" }
func (sqliteDialect) Rebind(query string) string { return query }
func (sqliteDialect) Schema() []string           { return separateIndexSchema("") }

func (sqliteDialect) InsertIgnore(table string, columns ...string) string {
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders(len(columns)))
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string               { return "mysql" }
func (mysqlDialect) DriverName() string         { return "mysql" }
func (mysqlDialect) Rebind(query string) string { return query }

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
func (mysqlDialect) Schema() []string {
	stmts := make([]string, 0, len(tables))
	for _, t := range tables {
		stmts = append(stmts, createTable(t, true, " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"))
	}
	return stmts
}

func (mysqlDialect) InsertIgnore(table string, columns ...string) string {
	return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders(len(columns)))
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "postgres" }
func (postgresDialect) Schema() []string   { return separateIndexSchema("") }

// Rebind rewrites ? placeholders to $1, $2, ... Quoted strings are left alone.
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '\'' {
			inQuote = !inQuote
		}
		if ch == '?' && !inQuote {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func (d postgresDialect) InsertIgnore(table string, columns ...string) string {
	return d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", table, strings.Join(columns, ", "), placeholders(len(columns))))
}
