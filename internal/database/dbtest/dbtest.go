// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/iliyamo/it-helpdesk/internal/database"
)

// Open returns a fresh, migrated database file under t.TempDir.  It is
// closed when the test ends.
func Open(t testing.TB) *database.DB {
	t.Helper()
	ctx := context.Background()
	d, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := database.Migrate(ctx, d); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return d
}
