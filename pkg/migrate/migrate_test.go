package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateDirAcceptsRepoMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("repo migrations should validate: %v", err)
	}
}

func TestOrdersMigrationEncodesStatusMachine(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders.sql"))
	if err != nil || len(matches) == 0 {
		t.Fatalf("orders migration not found: %v", err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"'pending','processing','to_ship','shipped','delivered','completed','cancelled'",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_number",
		"CREATE TABLE IF NOT EXISTS order_line_items",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAddressesMigrationEnforcesSingleDefault(t *testing.T) {
	matches, _ := filepath.Glob(filepath.Join("migrations", "*_create_addresses.sql"))
	if len(matches) == 0 {
		t.Fatal("addresses migration not found")
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "addresses_one_default_per_user ON addresses (user_id) WHERE is_default") {
		t.Fatal("expected partial unique index on default address")
	}
}

func TestCreateSQLMigrationAndValidate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

	path, err := createSQLMigrationAt(dir, "Add Shoe Sizes!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260501083000_add_shoe_sizes.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if _, err := createSQLMigrationAt(dir, "add shoe sizes", now); err == nil {
		t.Fatal("expected duplicate file error")
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestValidateDirRequiresDownSection(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_only_up.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected missing down error")
	}
}
