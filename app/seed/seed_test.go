package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lysyi3m/tweet-relay/app/database"
)

const validSeed = `
accounts:
  - username: "@alice"
    name: Alice
  - username: bob
    active: false

url_replacements:
  "https://example.com/x": "https://good.example"

settings:
  daily_quota: 5
  active_hours_start: "09:00"
`

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestLoadValidSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yml")
	if err := os.WriteFile(path, []byte(validSeed), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(s.Accounts) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(s.Accounts))
	}
	if s.Accounts[0].Username != "alice" {
		t.Errorf("Expected leading @ to be stripped, got '%s'", s.Accounts[0].Username)
	}
	if !s.Accounts[0].IsActive() {
		t.Error("Expected account without active flag to be active")
	}
	if s.Accounts[1].IsActive() {
		t.Error("Expected bob to be inactive")
	}
	if s.Settings[database.SettingDailyQuota] != "5" {
		t.Errorf("Expected daily_quota '5', got '%s'", s.Settings[database.SettingDailyQuota])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestParseInvalidSeeds(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"empty username", "accounts:\n  - name: Nobody\n", "username is required"},
		{"duplicate username", "accounts:\n  - username: alice\n  - username: \"@Alice\"\n", "duplicate account"},
		{"unknown setting", "settings:\n  posts_per_hour: 3\n", "unknown setting"},
		{"invalid setting", "settings:\n  active_hours_end: \"25:00\"\n", "invalid value"},
		{"empty replacement", "url_replacements:\n  example.com: \"\"\n", "must have both sides"},
		{"bad yaml", "accounts: [", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing '%s', got '%v'", tt.errText, err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	accounts := database.NewAccountRepository(db)
	replacements := database.NewReplacementRepository(db)
	settings := database.NewSettingRepository(db)

	// A value edited at runtime must survive the seed.
	if err := settings.SetSetting(ctx, database.SettingDailyQuota, "7"); err != nil {
		t.Fatal(err)
	}

	s, err := Parse([]byte(validSeed))
	if err != nil {
		t.Fatal(err)
	}

	applier := NewApplier(s, accounts, replacements, settings)
	if err := applier.Apply(ctx); err != nil {
		t.Fatal(err)
	}
	// Applying twice is harmless.
	if err := applier.Apply(ctx); err != nil {
		t.Fatal(err)
	}

	active, err := accounts.ListActiveAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Username != "alice" || active[0].Name != "Alice" {
		t.Errorf("Expected only alice active, got %+v", active)
	}

	replacement, ok, err := replacements.GetReplacementURL(ctx, "example.com/x")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || replacement != "https://good.example" {
		t.Errorf("Expected replacement 'https://good.example', got '%s' (found=%v)", replacement, ok)
	}

	current, err := settings.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if current.DailyQuota != 7 {
		t.Errorf("Expected runtime daily_quota 7 to win, got %d", current.DailyQuota)
	}
	if current.ActiveHoursStart != "09:00" {
		t.Errorf("Expected seeded active_hours_start '09:00', got '%s'", current.ActiveHoursStart)
	}
}
