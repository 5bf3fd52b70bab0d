package database

import (
	"log/slog"
	"regexp"
	"strconv"
)

const (
	SettingSystemEnabled    = "system_enabled"
	SettingDailyQuota       = "daily_quota"
	SettingDonationURL      = "donation_url"
	SettingActiveHoursStart = "active_hours_start"
	SettingActiveHoursEnd   = "active_hours_end"
	SettingTimeBetweenPosts = "time_between_posts"
)

// DefaultDonationURL is used when the donation_url setting is empty.
const DefaultDonationURL = "https://donate.example.org"

// DefaultSettings holds the value substituted for every missing or unusable key.
var DefaultSettings = map[string]string{
	SettingSystemEnabled:    "1",
	SettingDailyQuota:       "10",
	SettingDonationURL:      DefaultDonationURL,
	SettingActiveHoursStart: "08:00",
	SettingActiveHoursEnd:   "22:00",
	SettingTimeBetweenPosts: "90",
}

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Settings is the typed view of the key/value settings table.
type Settings struct {
	SystemEnabled    bool
	DailyQuota       int
	DonationURL      string
	ActiveHoursStart string
	ActiveHoursEnd   string
	TimeBetweenPosts int // minutes
}

// IsKnownSetting reports whether key is one of the recognized setting keys.
func IsKnownSetting(key string) bool {
	_, ok := DefaultSettings[key]
	return ok
}

// ValidateSetting checks a raw value for a known key.
func ValidateSetting(key, value string) bool {
	switch key {
	case SettingSystemEnabled:
		return value == "0" || value == "1"
	case SettingDailyQuota, SettingTimeBetweenPosts:
		n, err := strconv.Atoi(value)
		return err == nil && n >= 0
	case SettingActiveHoursStart, SettingActiveHoursEnd:
		return clockPattern.MatchString(value)
	case SettingDonationURL:
		return true
	}
	return false
}

// ParseSettings converts raw values into Settings. Missing or invalid values
// fall back to DefaultSettings; a read never fails.
func ParseSettings(values map[string]string) Settings {
	get := func(key string) string {
		value, ok := values[key]
		if !ok {
			return DefaultSettings[key]
		}
		if !ValidateSetting(key, value) {
			slog.Warn("Invalid setting value, using default", "key", key, "value", value, "default", DefaultSettings[key])
			return DefaultSettings[key]
		}
		return value
	}

	quota, _ := strconv.Atoi(get(SettingDailyQuota))
	interval, _ := strconv.Atoi(get(SettingTimeBetweenPosts))

	donationURL := get(SettingDonationURL)
	if donationURL == "" {
		donationURL = DefaultDonationURL
	}

	return Settings{
		SystemEnabled:    get(SettingSystemEnabled) == "1",
		DailyQuota:       quota,
		DonationURL:      donationURL,
		ActiveHoursStart: get(SettingActiveHoursStart),
		ActiveHoursEnd:   get(SettingActiveHoursEnd),
		TimeBetweenPosts: interval,
	}
}
