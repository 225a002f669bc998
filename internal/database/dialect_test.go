package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM tickets WHERE status = ? AND title <> 'why?' AND created_by = ?`
	if got := MySQL.Rebind(q); got != q {
		t.Fatalf("mysql must not rewrite, got %q", got)
	}
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite must not rewrite, got %q", got)
	}
	want := `SELECT id FROM tickets WHERE status = $1 AND title <> 'why?' AND created_by = $2`
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("postgres rebind:\n got %q\nwant %q", got, want)
	}
}

func TestForUpdate(t *testing.T) {
	if SQLite.ForUpdate() != "" {
		t.Fatalf("sqlite has no row locks")
	}
	if Postgres.ForUpdate() != " FOR UPDATE" || MySQL.ForUpdate() != " FOR UPDATE" {
		t.Fatalf("expected FOR UPDATE suffix")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"postgres fk", &pq.Error{Code: "23503"}, false},
		{"mysql", &mysql.MySQLError{Number: 1062}, true},
		{"mysql other", &mysql.MySQLError{Number: 1452}, false},
		{"text", errors.New("UNIQUE constraint failed: equipment.internal_code"), true},
		{"plain", errors.New("boom"), false},
	}
	for _, c := range cases {
		if got := IsUniqueViolation(c.err); got != c.want {
			t.Errorf("%s: got %v want %v", c.name, got, c.want)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	src := "-- header\nCREATE TABLE a (id INT);\n\nCREATE INDEX i ON a(id);\n"
	got := splitStatements(src)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id INT)" {
		t.Fatalf("unexpected first statement %q", got[0])
	}
}
