package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	yaml "go.yaml.in/yaml/v3"

	"backoffice/internal/logging"
	"backoffice/internal/reminder"
	"backoffice/internal/rules"
)

// Config keeps runtime settings for the back-office jobs.
type Config struct {
	TelegramToken   string         `yaml:"telegram_token"`
	PublishChatID   int64          `yaml:"publish_chat_id"`
	DatabaseURL     string         `yaml:"database_url"`
	Timezone        string         `yaml:"timezone"`
	Log             logging.Config `yaml:"log"`
	Schedules       Schedules      `yaml:"schedules"`
	JobTimeout      time.Duration  `yaml:"job_timeout"`
	PlatformTimeout time.Duration  `yaml:"platform_timeout"`
	SnapshotTTL     time.Duration  `yaml:"snapshot_ttl"`
	Rules           Thresholds     `yaml:"rules"`
	Tiers           []Tier         `yaml:"tiers"`
	WeeklyDays      []string       `yaml:"weekly_days"`
}

// Schedules are standard five-field cron specs (descriptors like @hourly work too).
type Schedules struct {
	Rules   string `yaml:"rules"`
	Seed    string `yaml:"seed"`
	Publish string `yaml:"publish"`
}

// Thresholds override the bid rule defaults; zero keeps the default.
type Thresholds struct {
	ScoreThreshold    float64 `yaml:"score_threshold"`
	DueWithinDays     int     `yaml:"due_within_days"`
	AddedWithinDays   int     `yaml:"added_within_days"`
	OpeningWithinDays int     `yaml:"opening_within_days"`
	OpeningUrgentDays int     `yaml:"opening_urgent_days"`
}

type Tier struct {
	Key  string        `yaml:"key"`
	Lead time.Duration `yaml:"lead"`
}

// Load reads an optional YAML file named by CONFIG_FILE, then applies
// environment variables on top, then defaults.
func Load() (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Schedules.Rules, "RULES_SCHEDULE")
	setString(&cfg.Schedules.Seed, "SEED_SCHEDULE")
	setString(&cfg.Schedules.Publish, "PUBLISH_SCHEDULE")
	if raw := strings.TrimSpace(os.Getenv("PUBLISH_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("PUBLISH_CHAT_ID: %w", err)
		}
		cfg.PublishChatID = id
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_CONSOLE")); raw != "" {
		cfg.Log.Console = raw == "1" || strings.EqualFold(raw, "true")
	}
	if raw := strings.TrimSpace(os.Getenv("JOB_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("JOB_TIMEOUT: %w", err)
		}
		cfg.JobTimeout = d
	}

	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// Parse decodes a YAML document, rejecting unknown keys.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = "backoffice.db"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Schedules.Rules == "" {
		c.Schedules.Rules = "*/15 * * * *"
	}
	if c.Schedules.Seed == "" {
		c.Schedules.Seed = "5 * * * *"
	}
	if c.Schedules.Publish == "" {
		c.Schedules.Publish = "*/5 * * * *"
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 2 * time.Minute
	}
	if c.PlatformTimeout <= 0 {
		c.PlatformTimeout = 30 * time.Second
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = time.Minute
	}
	if len(c.Tiers) == 0 {
		for _, t := range reminder.DefaultTiers {
			c.Tiers = append(c.Tiers, Tier{Key: t.Key, Lead: t.Lead})
		}
	}
	if len(c.WeeklyDays) == 0 {
		c.WeeklyDays = []string{"monday", "wednesday", "friday"}
	}
}

// Validate checks schedules, timezone, tiers and weekdays.
func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	for name, spec := range map[string]string{"rules": c.Schedules.Rules, "seed": c.Schedules.Seed, "publish": c.Schedules.Publish} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
		}
	}
	seen := make(map[string]struct{}, len(c.Tiers))
	for _, t := range c.Tiers {
		if strings.TrimSpace(t.Key) == "" {
			return errors.New("tier key is required")
		}
		if t.Lead <= 0 {
			return fmt.Errorf("tier %q: lead must be positive", t.Key)
		}
		if _, dup := seen[t.Key]; dup {
			return fmt.Errorf("tier %q listed twice", t.Key)
		}
		seen[t.Key] = struct{}{}
	}
	if _, err := c.weekdays(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) weekdays() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(c.WeeklyDays))
	for _, raw := range c.WeeklyDays {
		day, ok := parseWeekday(raw)
		if !ok {
			return nil, fmt.Errorf("invalid weekly day %q", raw)
		}
		out = append(out, day)
	}
	return out, nil
}

func parseWeekday(raw string) (time.Weekday, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return d, true
		}
	}
	return 0, false
}

// RuleOptions merges configured thresholds over the defaults.
func (c Config) RuleOptions() rules.Options {
	opts := rules.DefaultOptions()
	if c.Rules.ScoreThreshold > 0 {
		opts.ScoreThreshold = c.Rules.ScoreThreshold
	}
	if c.Rules.DueWithinDays > 0 {
		opts.DueWithinDays = c.Rules.DueWithinDays
	}
	if c.Rules.AddedWithinDays > 0 {
		opts.AddedWithinDays = c.Rules.AddedWithinDays
	}
	if c.Rules.OpeningWithinDays > 0 {
		opts.OpeningWithinDays = c.Rules.OpeningWithinDays
	}
	if c.Rules.OpeningUrgentDays > 0 {
		opts.OpeningUrgentDays = c.Rules.OpeningUrgentDays
	}
	opts.TZ = c.Timezone
	return opts
}

// ReminderSettings builds the reminder tiers, channels and weekly days.
func (c Config) ReminderSettings() (reminder.Settings, error) {
	s := reminder.DefaultSettings()
	loc, err := c.Location()
	if err != nil {
		return s, err
	}
	days, err := c.weekdays()
	if err != nil {
		return s, err
	}
	s.Location = loc
	s.WeeklyDays = days
	s.Tiers = make([]reminder.Tier, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		s.Tiers = append(s.Tiers, reminder.Tier{Key: t.Key, Lead: t.Lead})
	}
	return s, nil
}
