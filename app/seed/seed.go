package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/tweet-relay/app/database"
)

func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid seed %s: %w", path, err)
	}

	return s, nil
}

func Parse(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range s.Accounts {
		s.Accounts[i].Username = strings.TrimPrefix(strings.TrimSpace(s.Accounts[i].Username), "@")
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *Seed) Validate() error {
	seen := make(map[string]bool, len(s.Accounts))
	for i, account := range s.Accounts {
		if account.Username == "" {
			return fmt.Errorf("account at index %d: username is required", i)
		}
		key := strings.ToLower(account.Username)
		if seen[key] {
			return fmt.Errorf("duplicate account: %s", account.Username)
		}
		seen[key] = true
	}

	for original, replacement := range s.URLReplacements {
		if strings.TrimSpace(original) == "" || strings.TrimSpace(replacement) == "" {
			return fmt.Errorf("url replacement %q -> %q must have both sides", original, replacement)
		}
	}

	for key, value := range s.Settings {
		if !database.IsKnownSetting(key) {
			return fmt.Errorf("unknown setting: %s", key)
		}
		if !database.ValidateSetting(key, value) {
			return fmt.Errorf("invalid value for setting %s: %q", key, value)
		}
	}

	return nil
}

// Applier writes a seed into the store. Accounts and replacements are
// upserted; settings are only inserted when missing so runtime edits survive
// restarts.
type Applier struct {
	seed         *Seed
	accounts     database.AccountRepository
	replacements database.ReplacementRepository
	settings     database.SettingRepository
}

func NewApplier(s *Seed, accounts database.AccountRepository, replacements database.ReplacementRepository, settings database.SettingRepository) *Applier {
	return &Applier{
		seed:         s,
		accounts:     accounts,
		replacements: replacements,
		settings:     settings,
	}
}

func (a *Applier) Apply(ctx context.Context) error {
	for _, account := range a.seed.Accounts {
		_, err := a.accounts.UpsertAccount(ctx, database.AccountInput{
			Username:    account.Username,
			Name:        account.Name,
			Description: account.Description,
			Active:      account.IsActive(),
		})
		if err != nil {
			return fmt.Errorf("failed to sync account @%s: %w", account.Username, err)
		}
	}

	for original, replacement := range a.seed.URLReplacements {
		if err := a.replacements.UpsertReplacement(ctx, original, replacement); err != nil {
			return fmt.Errorf("failed to sync replacement for %s: %w", original, err)
		}
	}

	inserted := 0
	for key, value := range a.seed.Settings {
		ok, err := a.settings.EnsureSetting(ctx, key, value)
		if err != nil {
			return fmt.Errorf("failed to sync setting %s: %w", key, err)
		}
		if ok {
			inserted++
		}
	}

	slog.Debug("Seed applied",
		"accounts", len(a.seed.Accounts),
		"replacements", len(a.seed.URLReplacements),
		"settings_inserted", inserted)

	return nil
}
