// Package rewrite substitutes URLs found in post text with configured
// replacements or a fallback URL.
package rewrite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lysyi3m/tweet-relay/app/database"
)

// urlPattern matches http(s) or bare URLs: optional scheme, optional www.,
// a dotted domain with a TLD of at least two letters and an optional path.
var urlPattern = regexp.MustCompile(`(?i)(https?://)?(www\.)?([a-z0-9-]+\.)+[a-z]{2,}(/[\w\-.~:/?#\[\]@!$&'()*+,;=%]*)?`)

// Rules resolves lookup keys to replacement URLs.
type Rules interface {
	Replacement(key string) (string, bool, error)
	IsTarget(url string) (bool, error)
}

// MapRules is an in-memory rule set keyed by scheme-less URL.
type MapRules map[string]string

func (m MapRules) Replacement(key string) (string, bool, error) {
	replacement, ok := m[key]
	return replacement, ok, nil
}

func (m MapRules) IsTarget(url string) (bool, error) {
	for _, replacement := range m {
		if replacement == url {
			return true, nil
		}
	}
	return false, nil
}

// StripScheme removes a leading http:// or https://.
func StripScheme(url string) string {
	return database.StripScheme(url)
}

// ExtractURLs returns every URL-shaped substring of text in order.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Apply replaces every URL in text with its rule replacement, or with fallback
// when no rule matches. URLs that already are the fallback or a rule target are
// kept, and the output is never rescanned, so Apply is idempotent.
func Apply(text string, rules Rules, fallback string) (string, error) {
	var firstErr error

	out := urlPattern.ReplaceAllStringFunc(text, func(match string) string {
		if firstErr != nil {
			return match
		}
		replacement, err := resolve(match, rules, fallback)
		if err != nil {
			firstErr = err
			return match
		}
		return replacement
	})

	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func resolve(url string, rules Rules, fallback string) (string, error) {
	if url == fallback {
		return url, nil
	}

	replacement, found, err := rules.Replacement(StripScheme(url))
	if err != nil {
		return "", fmt.Errorf("failed to look up replacement for %s: %w", url, err)
	}
	if found {
		return replacement, nil
	}

	isTarget, err := rules.IsTarget(url)
	if err != nil {
		return "", fmt.Errorf("failed to check replacement target %s: %w", url, err)
	}
	if isTarget {
		return url, nil
	}

	return fallback, nil
}

// Link is an embedded link entity: the short URL as it appears in the text and
// the URL it expands to, if known.
type Link struct {
	URL         string
	ExpandedURL string
}

// Rewriter applies the rules stored in the database, with donation_url as fallback.
type Rewriter struct {
	replacements database.ReplacementRepository
	settings     database.SettingRepository
}

func New(replacements database.ReplacementRepository, settings database.SettingRepository) *Rewriter {
	return &Rewriter{replacements: replacements, settings: settings}
}

// Rewrite scans the whole text and substitutes every URL found.
func (r *Rewriter) Rewrite(ctx context.Context, text string) (string, error) {
	fallback, err := r.fallback(ctx)
	if err != nil {
		return "", err
	}
	return Apply(text, r.rules(ctx), fallback)
}

// RewriteLinks substitutes only the given link entities. Each short URL is
// replaced by the substitute for its expanded URL.
func (r *Rewriter) RewriteLinks(ctx context.Context, text string, links []Link) (string, error) {
	if len(links) == 0 {
		return text, nil
	}

	fallback, err := r.fallback(ctx)
	if err != nil {
		return "", err
	}
	rules := r.rules(ctx)

	replacer := make([]string, 0, len(links)*2)
	for _, link := range links {
		if link.URL == "" {
			continue
		}
		target := link.ExpandedURL
		if target == "" {
			target = link.URL
		}
		replacement, err := resolve(target, rules, fallback)
		if err != nil {
			return "", err
		}
		replacer = append(replacer, link.URL, replacement)
	}

	// One pass, so a substituted URL is never matched by a later link.
	return strings.NewReplacer(replacer...).Replace(text), nil
}

func (r *Rewriter) fallback(ctx context.Context) (string, error) {
	settings, err := r.settings.GetSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}
	return settings.DonationURL, nil
}

func (r *Rewriter) rules(ctx context.Context) Rules {
	return storeRules{ctx: ctx, repo: r.replacements}
}

type storeRules struct {
	ctx  context.Context
	repo database.ReplacementRepository
}

func (s storeRules) Replacement(key string) (string, bool, error) {
	return s.repo.GetReplacementURL(s.ctx, key)
}

func (s storeRules) IsTarget(url string) (bool, error) {
	return s.repo.IsReplacementTarget(s.ctx, url)
}
