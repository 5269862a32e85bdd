// Package config loads and validates runtime configuration at startup.
//
// Values come from, in order of precedence: environment variables, an
// optional TOML file named by JOBS_CONFIG_FILE, and built-in defaults.
// Fail-fast: an invalid value stops the process before anything connects.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all runtime configuration for the jobs service.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Redis     RedisConfig     `toml:"redis"`
	Log       LogConfig       `toml:"log"`
	Listing   ListingConfig   `toml:"listing"`
	Ranking   RankingConfig   `toml:"ranking"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Schedule  ScheduleConfig  `toml:"schedule"`
}

type ServerConfig struct {
	Port            string   `toml:"port" validate:"required,numeric"`
	GRPCPort        string   `toml:"grpc_port" validate:"required,numeric"`
	RateLimitRPS    float64  `toml:"rate_limit_rps" validate:"gt=0"`
	RateLimitBurst  int      `toml:"rate_limit_burst" validate:"gte=1"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" validate:"gt=0"`
	HealthInterval  Duration `toml:"health_interval" validate:"gt=0"`
}

type StoreConfig struct {
	// Driver selects the job store: postgres in production, badger for
	// local development without a database.
	Driver      string `toml:"driver" validate:"oneof=postgres badger"`
	DatabaseURL string `toml:"database_url" validate:"required_if=Driver postgres"`
	BadgerPath  string `toml:"badger_path" validate:"required_if=Driver badger"`
	Migrate     bool   `toml:"migrate"`
}

type RedisConfig struct {
	URL string `toml:"url" validate:"required"`
}

type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn warning error"`
}

type ListingConfig struct {
	ListTTL             Duration `toml:"list_ttl" validate:"gt=0"`
	RelatedTTL          Duration `toml:"related_ttl" validate:"gt=0"`
	AnalyticsTTL        Duration `toml:"analytics_ttl" validate:"gt=0"`
	CandidateLimit      int      `toml:"candidate_limit" validate:"gte=1"`
	CandidateMultiplier int      `toml:"candidate_multiplier" validate:"gte=1"`
	MinCandidates       int      `toml:"min_candidates" validate:"gte=1,ltefield=CandidateLimit"`
}

type RankingConfig struct {
	Threshold float64 `toml:"threshold" validate:"gte=0,lte=1"`
}

type LifecycleConfig struct {
	InactiveAfter    Duration `toml:"inactive_after" validate:"gt=0"`
	InactiveStatus   string   `toml:"inactive_status" validate:"oneof=expired inactive"`
	ExpireAfter      Duration `toml:"expire_after" validate:"gt=0"`
	DedupNewestFirst bool     `toml:"dedup_newest_first"`
	DedupChunkSize   int      `toml:"dedup_chunk_size" validate:"gte=1"`
	HealthWindow     Duration `toml:"health_window" validate:"gt=0"`
}

// ScheduleConfig holds one cron expression per lifecycle task.
type ScheduleConfig struct {
	Timezone       string `toml:"timezone" validate:"required,timezone"`
	ExpireInactive string `toml:"expire_inactive" validate:"required"`
	ExpireAged     string `toml:"expire_aged" validate:"required"`
	Dedup          string `toml:"dedup" validate:"required"`
	Health         string `toml:"health" validate:"required"`
}

// Duration is a time.Duration written as "90s" / "36h" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8083",
			GRPCPort:        "9083",
			RateLimitRPS:    50,
			RateLimitBurst:  100,
			ShutdownTimeout: Duration(10 * time.Second),
			HealthInterval:  Duration(15 * time.Second),
		},
		Store: StoreConfig{
			Driver:     "postgres",
			BadgerPath: "./data/jobs",
			Migrate:    true,
		},
		Log: LogConfig{Level: "info"},
		Listing: ListingConfig{
			ListTTL:             Duration(60 * time.Second),
			RelatedTTL:          Duration(300 * time.Second),
			AnalyticsTTL:        Duration(60 * time.Second),
			CandidateLimit:      2000,
			CandidateMultiplier: 10,
			MinCandidates:       100,
		},
		Ranking: RankingConfig{Threshold: 0.45},
		Lifecycle: LifecycleConfig{
			InactiveAfter:    Duration(36 * time.Hour),
			InactiveStatus:   "expired",
			ExpireAfter:      Duration(30 * 24 * time.Hour),
			DedupNewestFirst: true,
			DedupChunkSize:   1000,
			HealthWindow:     Duration(24 * time.Hour),
		},
		Schedule: ScheduleConfig{
			Timezone:       "UTC",
			ExpireInactive: "0 * * * *",
			ExpireAged:     "30 * * * *",
			Dedup:          "0 3 * * *",
			Health:         "0 4 * * *",
		},
	}
}

// Load builds the configuration from defaults, the optional file and the
// environment, then validates it.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("JOBS_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks every field against its struct tag.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ─── Environment overrides ────────────────────────────────────────────────────

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be a number, got %q", key, v))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *Duration) {
		if v := os.Getenv(key); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s must be a duration like 90s or 36h, got %q", key, v))
			}
		}
	}

	str("JOBS_PORT", &c.Server.Port)
	str("GRPC_PORT", &c.Server.GRPCPort)
	float("RATE_LIMIT_RPS", &c.Server.RateLimitRPS)
	integer("RATE_LIMIT_BURST", &c.Server.RateLimitBurst)
	duration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	duration("HEALTH_INTERVAL", &c.Server.HealthInterval)

	str("STORE_DRIVER", &c.Store.Driver)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("BADGER_PATH", &c.Store.BadgerPath)
	boolean("DB_MIGRATE", &c.Store.Migrate)

	str("REDIS_URL", &c.Redis.URL)
	str("LOG_LEVEL", &c.Log.Level)

	duration("LIST_CACHE_TTL", &c.Listing.ListTTL)
	duration("RELATED_CACHE_TTL", &c.Listing.RelatedTTL)
	duration("ANALYTICS_CACHE_TTL", &c.Listing.AnalyticsTTL)
	integer("CANDIDATE_LIMIT", &c.Listing.CandidateLimit)
	integer("CANDIDATE_MULTIPLIER", &c.Listing.CandidateMultiplier)
	integer("MIN_CANDIDATES", &c.Listing.MinCandidates)

	float("RANKING_THRESHOLD", &c.Ranking.Threshold)

	duration("INACTIVE_AFTER", &c.Lifecycle.InactiveAfter)
	str("INACTIVE_STATUS", &c.Lifecycle.InactiveStatus)
	duration("EXPIRE_AFTER", &c.Lifecycle.ExpireAfter)
	boolean("DEDUP_NEWEST_FIRST", &c.Lifecycle.DedupNewestFirst)
	integer("DEDUP_CHUNK_SIZE", &c.Lifecycle.DedupChunkSize)
	duration("HEALTH_WINDOW", &c.Lifecycle.HealthWindow)

	str("SCHEDULE_TIMEZONE", &c.Schedule.Timezone)
	str("SCHEDULE_EXPIRE_INACTIVE", &c.Schedule.ExpireInactive)
	str("SCHEDULE_EXPIRE_AGED", &c.Schedule.ExpireAged)
	str("SCHEDULE_DEDUP", &c.Schedule.Dedup)
	str("SCHEDULE_HEALTH", &c.Schedule.Health)

	return errors.Join(errs...)
}
