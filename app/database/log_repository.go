package database

import (
	"context"
	"fmt"
)

var _ LogRepository = (*LogRepo)(nil)

const defaultLogLimit = 100

// LogRepo stores the append-only activity log
type LogRepo struct {
	db *DB
}

func NewLogRepository(db *DB) *LogRepo {
	return &LogRepo{db: db}
}

func (r *LogRepo) AddLog(ctx context.Context, action, description, status string) error {
	switch status {
	case StatusInfo, StatusSuccess, StatusError:
	default:
		status = StatusInfo
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO logs (action, description, status) VALUES (?, ?, ?)`,
		action, description, status)
	if err != nil {
		return fmt.Errorf("failed to add log: %w", err)
	}
	return nil
}

// ListLogs returns the most recent entries first.
func (r *LogRepo) ListLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}

	query := `SELECT id, action, description, status, created_at FROM logs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var (
			entry     LogEntry
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Description, &entry.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ClearLogs deletes every entry and records the clearing itself.
func (r *LogRepo) ClearLogs(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM logs`); err != nil {
		return fmt.Errorf("failed to clear logs: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO logs (action, description, status) VALUES (?, ?, ?)`,
		ActionSystem, "Logs cleared", StatusInfo); err != nil {
		return fmt.Errorf("failed to add log: %w", err)
	}

	return tx.Commit()
}
