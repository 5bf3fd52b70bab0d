package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/lysyi3m/tweet-relay/app/database"
	"github.com/lysyi3m/tweet-relay/app/source"
)

// FetchAll fetches recent tweets for every active account. The global cap is
// split evenly (rounded up) between accounts, the last account gets whatever
// remains, and fetching stops once the cap is reached. A failing account is
// logged and skipped.
func (e *Engine) FetchAll(ctx context.Context) (int, error) {
	accounts, err := e.repos.Accounts.ListActiveAccounts(ctx)
	if err != nil {
		e.logError(ctx, database.ActionFetch, "Failed to list active accounts", err)
		return 0, err
	}

	if len(accounts) == 0 {
		e.addLog(ctx, database.ActionFetch, "No active accounts to fetch", database.StatusInfo)
		return 0, nil
	}

	fetchCap := e.cfg.FetchCap
	perAccount := (fetchCap + len(accounts) - 1) / len(accounts)

	total := 0
	for i, account := range accounts {
		remaining := fetchCap - total
		if remaining <= 0 {
			break
		}

		count := min(perAccount, remaining)
		if i == len(accounts)-1 {
			count = remaining
		}

		if i > 0 {
			if err := e.sleep(ctx, e.cfg.FetchPause); err != nil {
				return total, err
			}
		}

		stored, err := e.fetcher.FetchRecent(ctx, account.Username, count)
		if err != nil {
			e.logError(ctx, database.ActionFetch, fmt.Sprintf("Error fetching tweets for @%s", account.Username), err)
			if errors.Is(err, source.ErrNotConfigured) || ctx.Err() != nil {
				return total, err
			}
			continue
		}

		total += stored
	}

	e.addLog(ctx, database.ActionFetch,
		fmt.Sprintf("Fetched %d new tweets from %d accounts", total, len(accounts)),
		database.StatusInfo)

	return total, nil
}

// FetchAccount fetches up to count tweets for a single account, bounded by the
// global cap.
func (e *Engine) FetchAccount(ctx context.Context, username string, count int) (int, error) {
	count = min(count, e.cfg.FetchCap)

	stored, err := e.fetcher.FetchRecent(ctx, username, count)
	if err != nil {
		e.logError(ctx, database.ActionFetch, fmt.Sprintf("Error fetching tweets for @%s", username), err)
		return 0, err
	}

	return stored, nil
}
