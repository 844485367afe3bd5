package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	sql := `-- header
CREATE TABLE a (x Int64) ENGINE = MergeTree() ORDER BY x;

-- second
CREATE TABLE b (y String) ENGINE = MergeTree() ORDER BY y;
`
	stmts := splitStatements(sql)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if !strings.HasPrefix(stmts[1], "CREATE TABLE b") {
		t.Errorf("unexpected second statement: %q", stmts[1])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	if err := validateNoSemicolonInStrings(`SELECT 'it''s'; SELECT 1`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateNoSemicolonInStrings(`SELECT 'a;b'`); err == nil {
		t.Error("expected error for semicolon inside string")
	}
}

func TestEmbeddedMigrationsCoverTables(t *testing.T) {
	tables := map[fs.FS][]string{
		ClickhouseFS: {"price_series", "rate_series", "pair_events", "backtest_steps"},
		PostgresFS:   {"backtest_runs"},
	}
	for fsys, want := range tables {
		var all strings.Builder
		err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := fs.ReadFile(fsys, path)
			if err != nil {
				return err
			}
			all.Write(data)
			return validateNoSemicolonInStrings(string(data))
		})
		if err != nil {
			t.Fatalf("walk migrations: %v", err)
		}
		for _, table := range want {
			if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table) {
				t.Errorf("missing migration for table %s", table)
			}
		}
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/curves")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db != "curves" {
		t.Errorf("expected curves, got %q", db)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for dsn without database")
	}
}
