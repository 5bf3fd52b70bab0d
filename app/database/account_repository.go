package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var _ AccountRepository = (*AccountRepo)(nil)

// AccountRepo handles database operations for monitored accounts
type AccountRepo struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `id, username, name, description, active, last_sync, created_at`

func (r *AccountRepo) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`,
		normalizeUsername(username))

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

func (r *AccountRepo) ListAccounts(ctx context.Context) ([]Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
}

// ListActiveAccounts returns active accounts in a stable (id) order.
func (r *AccountRepo) ListActiveAccounts(ctx context.Context) ([]Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE active = 1 ORDER BY id`)
}

func (r *AccountRepo) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func (r *AccountRepo) UpsertAccount(ctx context.Context, input AccountInput) (*Account, error) {
	username := normalizeUsername(input.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (username, name, description, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			active = excluded.active
	`, username, input.Name, input.Description, boolToInt(input.Active))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}

	return r.GetAccountByUsername(ctx, username)
}

func (r *AccountRepo) UpdateLastSync(ctx context.Context, accountID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_sync = ? WHERE id = ?`, formatTime(at), accountID)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}
	return nil
}

// DeleteAccount removes the account; its tweets go with it through the foreign key cascade.
func (r *AccountRepo) DeleteAccount(ctx context.Context, accountID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepo) list(ctx context.Context, query string, args ...any) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}

	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		account   Account
		active    int
		lastSync  sql.NullString
		createdAt string
	)
	if err := row.Scan(&account.ID, &account.Username, &account.Name, &account.Description,
		&active, &lastSync, &createdAt); err != nil {
		return nil, err
	}

	account.Active = active == 1

	var err error
	if account.LastSync, err = parseNullTime(lastSync); err != nil {
		return nil, err
	}
	if account.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &account, nil
}

func normalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}
