package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Auth      AuthConfig
	MongoDB   MongoDBConfig
	WhatsApp  WhatsAppConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
	Payments  PaymentsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
}

// AuthConfig holds the shared PIN and session token settings.
type AuthConfig struct {
	PIN         string
	PINHash     string
	TokenSecret string
	SessionTTL  time.Duration
	CookieName  string
}

// MongoDBConfig holds settings for MongoDB. An empty URI selects the in-memory store.
type MongoDBConfig struct {
	URI        string
	DBName     string
	Collection string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
// Sending is disabled when AccessToken is empty; deep links work regardless.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	CountryCode   string
	ManagerNumber string
	LocationURL   string
}

// Enabled reports whether Cloud API sending is configured.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != ""
}

// SheetsConfig contains configuration required to export to Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	ExportRange     string
}

// Enabled reports whether the sheet export is configured.
func (c SheetsConfig) Enabled() bool {
	return c.SpreadsheetID != ""
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule       string
	ExportCronSchedule string
	Timezone           string
}

// PaymentsConfig lists the choices offered on the share form.
type PaymentsConfig struct {
	Receivers []string
	Methods   []string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// A missing .env is fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	ttl, err := parseDuration("AUTH_SESSION_TTL", "0")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			PIN:         os.Getenv("AUTH_PIN"),
			PINHash:     os.Getenv("AUTH_PIN_HASH"),
			TokenSecret: os.Getenv("AUTH_TOKEN_SECRET"),
			SessionTTL:  ttl,
			CookieName:  getenvWithDefault("AUTH_COOKIE_NAME", "isAuthenticated"),
		},
		MongoDB: MongoDBConfig{
			URI:        os.Getenv("MONGODB_URI"),
			DBName:     getenvWithDefault("MONGODB_DB_NAME", "kurban"),
			Collection: getenvWithDefault("MONGODB_COLLECTION", "animals"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			CountryCode:   getenvWithDefault("WHATSAPP_COUNTRY_CODE", "90"),
			ManagerNumber: os.Getenv("WHATSAPP_MANAGER_NUMBER"),
			LocationURL:   os.Getenv("MESSAGE_LOCATION_URL"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			ExportRange:     getenvWithDefault("GOOGLE_SHEET_EXPORT_RANGE", "Hayvanlar!A1"),
		},
		Reporting: ReportingConfig{
			CronSchedule:       getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			ExportCronSchedule: os.Getenv("EXPORT_CRON_SCHEDULE"),
			Timezone:           getenvWithDefault("TIMEZONE", "Europe/Istanbul"),
		},
		Payments: PaymentsConfig{
			Receivers: getenvList("PAYMENT_RECEIVERS", []string{"Salih", "Kadir", "Hacı", "Erdem"}),
			Methods:   getenvList("PAYMENT_METHODS", []string{"Nakit", "Kendi IBAN'ıma"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.Auth.PIN == "" && c.Auth.PINHash == "":
		return errors.New("AUTH_PIN or AUTH_PIN_HASH must be provided")
	case c.Auth.PIN != "" && !pinPattern.MatchString(c.Auth.PIN):
		return errors.New("AUTH_PIN must be exactly 4 digits")
	case c.Auth.TokenSecret == "":
		return errors.New("AUTH_TOKEN_SECRET must be provided")
	case c.Auth.CookieName == "":
		return errors.New("AUTH_COOKIE_NAME must not be empty")
	case c.Auth.SessionTTL < 0:
		return errors.New("AUTH_SESSION_TTL must not be negative")
	}

	if c.MongoDB.URI != "" && c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided with MONGODB_URI")
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.PhoneNumberID == "" {
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided with WHATSAPP_TOKEN")
		}
		if c.WhatsApp.BaseURL == "" {
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		}
		if c.WhatsApp.APIVersion == "" {
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Sheets.Enabled() {
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided with GOOGLE_SHEET_DATABASE_ID")
		}
		if c.Sheets.ExportRange == "" {
			return errors.New("GOOGLE_SHEET_EXPORT_RANGE must not be empty")
		}
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Reporting.Timezone, err)
	}

	if len(c.Payments.Receivers) == 0 || len(c.Payments.Methods) == 0 {
		return errors.New("PAYMENT_RECEIVERS and PAYMENT_METHODS must not be empty")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := getenvWithDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
