package repository

import (
	"strings"
	"testing"
)

func TestDialectFor(t *testing.T) {
	for name, want := range map[string]string{
		"sqlite":     "sqlite",
		"MySQL":      "mysql",
		"postgresql": "postgres",
	} {
		d, err := DialectFor(name)
		if err != nil || d.Name() != want {
			t.Errorf("DialectFor(%q) = %v, %v", name, d, err)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestPostgresRebind(t *testing.T) {
	d := postgresDialect{}
	got := d.Rebind("SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2"
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestInsertIgnore(t *testing.T) {
	tests := []struct {
		d    Dialect
		want string
	}{
		{sqliteDialect{}, "INSERT OR IGNORE INTO user_badges (user_id, badge_id) VALUES (?, ?)"},
		{mysqlDialect{}, "INSERT IGNORE INTO user_badges (user_id, badge_id) VALUES (?, ?)"},
		{postgresDialect{}, "INSERT INTO user_badges (user_id, badge_id) VALUES ($1, $2) ON CONFLICT DO NOTHING"},
	}
	for _, tt := range tests {
		if got := tt.d.InsertIgnore("user_badges", "user_id", "badge_id"); got != tt.want {
			t.Errorf("%s: got %q", tt.d.Name(), got)
		}
	}
}

func TestMySQLSchemaInlinesIndexes(t *testing.T) {
	for _, stmt := range (mysqlDialect{}).Schema() {
		if strings.HasPrefix(stmt, "CREATE INDEX") {
			t.Fatalf("mysql schema must not use CREATE INDEX IF NOT EXISTS: %s", stmt)
		}
	}
	joined := strings.Join(mysqlDialect{}.Schema(), "\n")
	if !strings.Contains(joined, "INDEX idx_consumptions_user_time (user_id, consumed_at)") {
		t.Fatal("consumptions index missing")
	}
	if n := len(sqliteDialect{}.Schema()); n != len(tables)+3 {
		t.Fatalf("sqlite schema has %d statements", n)
	}
}
