package database

import (
	"context"
	"fmt"
	"time"
)

var _ SettingRepository = (*SettingRepo)(nil)

type SettingRepo struct {
	db *DB
}

func NewSettingRepository(db *DB) *SettingRepo {
	return &SettingRepo{db: db}
}

// GetSettings reads every setting, substituting defaults for absent keys.
func (r *SettingRepo) GetSettings(ctx context.Context) (Settings, error) {
	values, err := r.GetAllSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	return ParseSettings(values), nil
}

func (r *SettingRepo) GetAllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}

	return values, rows.Err()
}

func (r *SettingRepo) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// EnsureSetting stores the value unless the key was already changed at
// runtime, and reports whether the stored value changed. Rows created by the
// initial migration still count as unchanged.
func (r *SettingRepo) EnsureSetting(ctx context.Context, key, value string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
		WHERE settings.updated_at IS NULL AND settings.value <> excluded.value
	`, key, value)
	if err != nil {
		return false, fmt.Errorf("failed to ensure setting %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
