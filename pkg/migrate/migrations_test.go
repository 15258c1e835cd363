package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateDir_ShippedMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("shipped migrations failed validation: %v", err)
	}
}

func TestMigrationsCreatePayoutTables(t *testing.T) {
	tables := map[string][]string{
		"*_create_payout_audit_entries.sql": {
			"CREATE TABLE IF NOT EXISTS payout_audit_entries",
			"CHECK (status IN ('success', 'failed', 'rejected'))",
			"DROP TABLE IF EXISTS payout_audit_entries",
		},
		"*_create_revenue_ledger_entries.sql": {
			"CREATE TABLE IF NOT EXISTS revenue_ledger_entries",
			"'payment_hold_created'",
			"idx_revenue_ledger_entries_hold_id",
			"DROP TABLE IF EXISTS revenue_ledger_entries",
		},
		"*_create_transfer_retries.sql": {
			"CREATE TABLE IF NOT EXISTS transfer_retries",
			"retry_count INTEGER NOT NULL DEFAULT 0",
			"REFERENCES revenue_ledger_entries(id)",
			"DROP TABLE IF EXISTS transfer_retries",
		},
	}

	for pattern, checks := range tables {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil {
			t.Fatalf("glob migrations: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %v", pattern, matches)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		for _, sub := range checks {
			if !strings.Contains(string(data), sub) {
				t.Errorf("%s: missing expected statement %q", matches[0], sub)
			}
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Payout Index!")
	if err != nil {
		t.Fatalf("CreateSQLMigration() error: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_index.sql") {
		t.Fatalf("unexpected file name %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration failed validation: %v", err)
	}
}
