package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var _ ReplacementRepository = (*ReplacementRepo)(nil)

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// StripScheme removes a leading http:// or https://. Rules are keyed by the result.
func StripScheme(url string) string {
	return schemePattern.ReplaceAllString(url, "")
}

// ReplacementRepo handles the URL replacement rules
type ReplacementRepo struct {
	db *DB
}

func NewReplacementRepository(db *DB) *ReplacementRepo {
	return &ReplacementRepo{db: db}
}

func (r *ReplacementRepo) GetReplacementURL(ctx context.Context, originalURL string) (string, bool, error) {
	var replacement string
	err := r.db.QueryRowContext(ctx,
		`SELECT replacement_url FROM url_replacements WHERE original_url = ?`,
		StripScheme(originalURL)).Scan(&replacement)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get replacement url: %w", err)
	}
	return replacement, true, nil
}

func (r *ReplacementRepo) IsReplacementTarget(ctx context.Context, url string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM url_replacements WHERE replacement_url = ?)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check replacement target: %w", err)
	}
	return exists == 1, nil
}

func (r *ReplacementRepo) ListReplacements(ctx context.Context) ([]URLReplacement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, original_url, replacement_url FROM url_replacements ORDER BY original_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to query url replacements: %w", err)
	}
	defer rows.Close()

	var replacements []URLReplacement
	for rows.Next() {
		var rep URLReplacement
		if err := rows.Scan(&rep.ID, &rep.OriginalURL, &rep.ReplacementURL); err != nil {
			return nil, fmt.Errorf("failed to scan url replacement: %w", err)
		}
		replacements = append(replacements, rep)
	}

	return replacements, rows.Err()
}

// UpsertReplacement stores a rule keyed by the scheme-less original URL.
func (r *ReplacementRepo) UpsertReplacement(ctx context.Context, originalURL, replacementURL string) error {
	key := StripScheme(originalURL)
	if key == "" || replacementURL == "" {
		return fmt.Errorf("original and replacement urls are required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO url_replacements (original_url, replacement_url)
		VALUES (?, ?)
		ON CONFLICT(original_url) DO UPDATE SET replacement_url = excluded.replacement_url
	`, key, replacementURL)
	if err != nil {
		return fmt.Errorf("failed to upsert url replacement: %w", err)
	}
	return nil
}
