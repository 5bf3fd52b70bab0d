package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ TweetRepository = (*TweetRepo)(nil)

// TweetRepo handles database operations for tweets
type TweetRepo struct {
	db *DB
}

func NewTweetRepository(db *DB) *TweetRepo {
	return &TweetRepo{db: db}
}

const tweetColumns = `id, twitter_id, account_id, original_text, modified_text, original_url,
	posted, scheduled_for, posted_at, created_at`

func (r *TweetRepo) GetTweet(ctx context.Context, id int64) (*Tweet, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tweetColumns+` FROM tweets WHERE id = ?`, id)

	tweet, err := scanTweet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tweet: %w", err)
	}

	return tweet, nil
}

// ListBacklog returns unposted, unscheduled tweets, oldest first.
func (r *TweetRepo) ListBacklog(ctx context.Context, limit int) ([]Tweet, error) {
	if limit <= 0 {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+tweetColumns+` FROM tweets
		WHERE posted = 0 AND scheduled_for IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, limit)
}

// ListDue returns unposted tweets scheduled at or before now, earliest first.
func (r *TweetRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]Tweet, error) {
	if limit <= 0 {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+tweetColumns+` FROM tweets
		WHERE posted = 0 AND scheduled_for IS NOT NULL AND scheduled_for <= ?
		ORDER BY scheduled_for ASC, id ASC
		LIMIT ?
	`, formatTime(now), limit)
}

func (r *TweetRepo) CountPostedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tweets WHERE posted = 1 AND posted_at >= ?`,
		formatTime(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posted tweets: %w", err)
	}
	return count, nil
}

func (r *TweetRepo) Stats(ctx context.Context) (TweetStats, error) {
	var stats TweetStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN posted = 0 AND scheduled_for IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN posted = 0 AND scheduled_for IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN posted = 1 THEN 1 ELSE 0 END), 0)
		FROM tweets
	`).Scan(&stats.Backlog, &stats.Queued, &stats.Posted)
	if err != nil {
		return TweetStats{}, fmt.Errorf("failed to get tweet stats: %w", err)
	}
	return stats, nil
}

// InsertTweet stores a new tweet. It reports false when a tweet with the same
// twitter_id is already stored.
func (r *TweetRepo) InsertTweet(ctx context.Context, tweet NewTweet) (bool, error) {
	var twitterID, modifiedText, originalURL any
	if tweet.TwitterID != "" {
		twitterID = tweet.TwitterID
	}
	if tweet.ModifiedText != "" {
		modifiedText = tweet.ModifiedText
	}
	if tweet.OriginalURL != "" {
		originalURL = tweet.OriginalURL
	}
	var accountID any
	if tweet.AccountID != 0 {
		accountID = tweet.AccountID
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tweets (twitter_id, account_id, original_text, modified_text, original_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(twitter_id) DO NOTHING
	`, twitterID, accountID, tweet.OriginalText, modifiedText, originalURL)
	if err != nil {
		return false, fmt.Errorf("failed to insert tweet: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ScheduleTweet assigns a publish time to a backlog tweet. It reports false if
// the tweet was scheduled or posted in the meantime.
func (r *TweetRepo) ScheduleTweet(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tweets SET scheduled_for = ?
		WHERE id = ? AND posted = 0 AND scheduled_for IS NULL
	`, formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("failed to schedule tweet: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// MarkPosted flags the tweet as posted at the given time. It reports false if
// the tweet was already posted.
func (r *TweetRepo) MarkPosted(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tweets SET posted = 1, posted_at = ?
		WHERE id = ? AND posted = 0
	`, formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark tweet posted: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *TweetRepo) list(ctx context.Context, query string, args ...any) ([]Tweet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tweets: %w", err)
	}
	defer rows.Close()

	var tweets []Tweet
	for rows.Next() {
		tweet, err := scanTweet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tweet: %w", err)
		}
		tweets = append(tweets, *tweet)
	}

	return tweets, rows.Err()
}

func scanTweet(row rowScanner) (*Tweet, error) {
	var (
		tweet        Tweet
		twitterID    sql.NullString
		accountID    sql.NullInt64
		modifiedText sql.NullString
		originalURL  sql.NullString
		posted       int
		scheduledFor sql.NullString
		postedAt     sql.NullString
		createdAt    string
	)
	if err := row.Scan(&tweet.ID, &twitterID, &accountID, &tweet.OriginalText, &modifiedText,
		&originalURL, &posted, &scheduledFor, &postedAt, &createdAt); err != nil {
		return nil, err
	}

	if twitterID.Valid {
		tweet.TwitterID = &twitterID.String
	}
	if accountID.Valid {
		tweet.AccountID = &accountID.Int64
	}
	if modifiedText.Valid {
		tweet.ModifiedText = &modifiedText.String
	}
	tweet.OriginalURL = originalURL.String
	tweet.Posted = posted == 1

	var err error
	if tweet.ScheduledFor, err = parseNullTime(scheduledFor); err != nil {
		return nil, err
	}
	if tweet.PostedAt, err = parseNullTime(postedAt); err != nil {
		return nil, err
	}
	if tweet.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &tweet, nil
}
