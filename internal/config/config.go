package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"dailysender/internal/content"
	"dailysender/internal/schedule"
)

// DefaultTimezone is used when TZ is unset.
const DefaultTimezone = "Asia/Kuala_Lumpur"

// Config holds application configuration values.
type Config struct {
	Env      string `validate:"required,oneof=dev prod"`
	Telegram struct {
		Token         string
		WebhookURL    string `validate:"omitempty,url"`
		WebhookSecret string
	}
	HTTP struct {
		Addr     string `validate:"required"`
		AdminKey string
	}
	AdminIDs    []int64
	Timezone    string `validate:"required"`
	Location    *time.Location
	DataDir     string `validate:"required"`
	DatabaseURL string
	Broadcast   struct {
		Template string
		Workers  int     `validate:"min=1,max=64"`
		Rate     float64 `validate:"gte=0"`

		// RunTimeout bounds a scheduled run; zero leaves runs unbounded.
		RunTimeout time.Duration `validate:"gte=0"`
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")
	c.Telegram.Token = getenv("TELEGRAM_BOT_TOKEN", os.Getenv("BOT_TOKEN"))
	c.Telegram.WebhookURL = os.Getenv("TELEGRAM_WEBHOOK_URL")
	c.Telegram.WebhookSecret = os.Getenv("TELEGRAM_WEBHOOK_SECRET")
	c.HTTP.Addr = getenv("HTTP_ADDR", ":8000")
	c.HTTP.AdminKey = os.Getenv("ADMIN_KEY")
	c.Timezone = getenv("TZ", DefaultTimezone)
	c.DataDir = getenv("DATA_DIR", "./data")
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.Broadcast.Template = os.Getenv("MESSAGE_TEMPLATE")
	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", filepath.Join(c.DataDir, "logs", "dailysender.log"))

	var err error
	if c.AdminIDs, err = ParseIDs(os.Getenv("ADMIN_IDS")); err != nil {
		return Config{}, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	if c.Broadcast.Workers, err = getint("BROADCAST_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if c.Broadcast.Rate, err = getfloat("BROADCAST_RATE", 25); err != nil {
		return Config{}, err
	}
	if c.Broadcast.RunTimeout, err = getduration("BROADCAST_RUN_TIMEOUT", 0); err != nil {
		return Config{}, err
	}

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	if c.Location, err = time.LoadLocation(c.Timezone); err != nil {
		return Config{}, fmt.Errorf("TZ: %w", err)
	}
	if c.Telegram.WebhookURL != "" && c.Telegram.WebhookSecret == "" {
		return Config{}, errors.New("TELEGRAM_WEBHOOK_SECRET required when TELEGRAM_WEBHOOK_URL is set")
	}
	return c, nil
}

// RequireBot reports an error when the settings needed to talk to Telegram are missing.
func (c Config) RequireBot() error {
	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN (or BOT_TOKEN) is required")
	}
	return nil
}

// MediaDir holds group images.
func (c Config) MediaDir() string { return filepath.Join(c.DataDir, "media") }

// GroupsFile is the message group document.
func (c Config) GroupsFile() string { return filepath.Join(c.DataDir, content.FileName) }

// SchedulesFile is the trigger document.
func (c Config) SchedulesFile() string { return filepath.Join(c.DataDir, schedule.FileName) }

// UsersFile is the legacy subscriber list imported once on startup.
func (c Config) UsersFile() string { return filepath.Join(c.DataDir, "users.json") }

// DatabaseDSN returns DATABASE_URL, or a SQLite file inside DataDir when unset.
func (c Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return filepath.Join(c.DataDir, "dailysender.db")
}

// ParseIDs parses Telegram ids separated by commas, spaces or newlines.
func ParseIDs(s string) ([]int64, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getfloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return f, nil
}

func getduration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
