package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"contact-metrics/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	LogLevel       string   `yaml:"log_level"`
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Timezone       string   `yaml:"timezone"`
	UnknownLabel   string   `yaml:"unknown_label"`

	Segmentation Segmentation `yaml:"segmentation"`
	HandleTime   HandleTime   `yaml:"handle_time"`
	Capacity     Capacity     `yaml:"capacity"`
	Recurrence   Recurrence   `yaml:"recurrence"`
}

// Segmentation configures episode boundaries.
type Segmentation struct {
	GapThresholdHours   float64 `yaml:"gap_threshold_hours"`
	NoInvoiceMarker     string  `yaml:"no_invoice_marker"`
	ComplaintSiteMarker string  `yaml:"complaint_site_marker"`
}

// HandleTime configures the valid sample window and the reliability floor.
type HandleTime struct {
	MinMinutes float64 `yaml:"min_minutes"`
	MaxMinutes float64 `yaml:"max_minutes"`
	MinSamples int     `yaml:"min_samples"`
}

// Capacity configures the shift policy used for targets.
type Capacity struct {
	ShiftStart              string                    `yaml:"shift_start"`
	ShiftEnd                string                    `yaml:"shift_end"`
	Utilization             float64                   `yaml:"utilization"`
	TargetHandleTime        map[models.Sector]float64 `yaml:"target_handle_time"`
	DefaultTargetHandleTime float64                   `yaml:"default_target_handle_time"`
}

// Recurrence configures the classifier thresholds and KPIs.
type Recurrence struct {
	CancellationKeywords    []string `yaml:"cancellation_keywords"`
	AnxiousWithinDays       float64  `yaml:"anxious_within_days"`
	AnxiousMinEpisodes      int      `yaml:"anxious_min_episodes"`
	ChronicAfterDays        float64  `yaml:"chronic_after_days"`
	MinutesPerExcessContact float64  `yaml:"minutes_per_excess_contact"`
	TopN                    int      `yaml:"top_n"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		Port:           "8080",
		AllowedOrigins: []string{"http://localhost:5173"},
		Timezone:       "America/Sao_Paulo",
		UnknownLabel:   "Não Informado",
		Segmentation: Segmentation{
			GapThresholdHours:   2,
			NoInvoiceMarker:     "SEM NF",
			ComplaintSiteMarker: "RECLAME AQUI",
		},
		HandleTime: HandleTime{
			MinMinutes: 0.5,
			MaxMinutes: 40,
			MinSamples: 6,
		},
		Capacity: Capacity{
			ShiftStart:  "07:30",
			ShiftEnd:    "17:18",
			Utilization: 0.70,
			TargetHandleTime: map[models.Sector]float64{
				models.SectorSAC:     5 + 23.0/60,
				models.SectorBacklog: 5 + 8.0/60,
				models.SectorOther:   5 + 23.0/60,
			},
			DefaultTargetHandleTime: 5 + 23.0/60,
		},
		Recurrence: Recurrence{
			CancellationKeywords:    []string{"cancelamento", "cancellation"},
			AnxiousWithinDays:       2,
			AnxiousMinEpisodes:      3,
			ChronicAfterDays:        5,
			MinutesPerExcessContact: 15,
			TopN:                    50,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order. An empty path falls back to
// CONTACT_METRICS_CONFIG.
func Load(path string) (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := Default()

	if path == "" {
		path = os.Getenv("CONTACT_METRICS_CONFIG")
	}
	if path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Port = getEnv("PORT", c.Port)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.UnknownLabel = getEnv("UNKNOWN_LABEL", c.UnknownLabel)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}

	c.Segmentation.NoInvoiceMarker = getEnv("NO_INVOICE_MARKER", c.Segmentation.NoInvoiceMarker)
	c.Segmentation.ComplaintSiteMarker = getEnv("COMPLAINT_SITE_MARKER", c.Segmentation.ComplaintSiteMarker)
	c.Capacity.ShiftStart = getEnv("SHIFT_START", c.Capacity.ShiftStart)
	c.Capacity.ShiftEnd = getEnv("SHIFT_END", c.Capacity.ShiftEnd)
	if keywords := os.Getenv("CANCELLATION_KEYWORDS"); keywords != "" {
		c.Recurrence.CancellationKeywords = splitList(keywords)
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"GAP_THRESHOLD_HOURS", &c.Segmentation.GapThresholdHours},
		{"HANDLE_TIME_MIN_MINUTES", &c.HandleTime.MinMinutes},
		{"HANDLE_TIME_MAX_MINUTES", &c.HandleTime.MaxMinutes},
		{"UTILIZATION_FACTOR", &c.Capacity.Utilization},
		{"TARGET_HANDLE_TIME_DEFAULT", &c.Capacity.DefaultTargetHandleTime},
		{"MINUTES_PER_EXCESS_CONTACT", &c.Recurrence.MinutesPerExcessContact},
	}
	for _, f := range floats {
		if err := envFloat(f.key, f.dst); err != nil {
			return err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MIN_HANDLE_TIME_SAMPLES", &c.HandleTime.MinSamples},
		{"TOP_OFFENDERS", &c.Recurrence.TopN},
	}
	for _, i := range ints {
		if err := envInt(i.key, i.dst); err != nil {
			return err
		}
	}

	if c.Capacity.TargetHandleTime == nil {
		c.Capacity.TargetHandleTime = make(map[models.Sector]float64)
	}
	sectorKeys := map[string]models.Sector{
		"TARGET_HANDLE_TIME_SAC":     models.SectorSAC,
		"TARGET_HANDLE_TIME_BACKLOG": models.SectorBacklog,
		"TARGET_HANDLE_TIME_OTHER":   models.SectorOther,
	}
	for key, sector := range sectorKeys {
		value, ok := os.LookupEnv(key)
		if !ok || value == "" {
			continue
		}
		minutes, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		c.Capacity.TargetHandleTime[sector] = minutes
	}
	return nil
}

// Validate rejects settings the engines cannot work with. Non-positive
// sector handle times are allowed; they fall back to the default at run time.
func (c *Config) Validate() error {
	if c.Segmentation.GapThresholdHours <= 0 {
		return fmt.Errorf("invalid gap threshold: %v hours must be positive", c.Segmentation.GapThresholdHours)
	}
	if c.HandleTime.MinMinutes < 0 || c.HandleTime.MinMinutes >= c.HandleTime.MaxMinutes {
		return fmt.Errorf("invalid handle time window: (%v, %v] minutes", c.HandleTime.MinMinutes, c.HandleTime.MaxMinutes)
	}
	if c.HandleTime.MinSamples < 1 {
		return fmt.Errorf("invalid minimum sample count: %d", c.HandleTime.MinSamples)
	}
	if c.Capacity.Utilization <= 0 || c.Capacity.Utilization > 1 {
		return fmt.Errorf("invalid utilization: %v must be in (0, 1]", c.Capacity.Utilization)
	}
	start, err := ParseClock(c.Capacity.ShiftStart)
	if err != nil {
		return fmt.Errorf("invalid shift start: %w", err)
	}
	end, err := ParseClock(c.Capacity.ShiftEnd)
	if err != nil {
		return fmt.Errorf("invalid shift end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("invalid shift: end %s is not after start %s", c.Capacity.ShiftEnd, c.Capacity.ShiftStart)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	if c.Recurrence.MinutesPerExcessContact < 0 {
		return fmt.Errorf("invalid minutes per excess contact: %v", c.Recurrence.MinutesPerExcessContact)
	}
	if c.Recurrence.TopN < 0 {
		return fmt.Errorf("invalid top offenders count: %d", c.Recurrence.TopN)
	}
	return nil
}

// Location returns the configured time zone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses an "HH:MM" wall clock into an offset from midnight.
func ParseClock(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envFloat(key string, dst *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func envInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
