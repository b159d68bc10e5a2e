package config

import (
	"errors"
	"fmt"
	"os"

	"courtbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Managers   []string         `yaml:"managers"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type BookingConfig struct {
	GenerationDays  int `yaml:"generation_days"`
	MaxBookingDays  int `yaml:"max_booking_days"`
	MinAdvanceHours int `yaml:"min_advance_hours"`
	SlotBatchSize   int `yaml:"slot_batch_size"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	HeaderUserID string         `yaml:"header_user_id"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN builds a pgx-compatible connection string.
func (p PostgresConfig) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, sslMode)
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	ScheduleSpreadsheetID string `yaml:"schedule_spreadsheet_id"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен, переменные могут прийти из окружения
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite3")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" || c.Database.Postgres.DBName == "" {
			return errors.New("postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
	}

	if c.Booking.GenerationDays < 0 || c.Booking.MaxBookingDays < 0 {
		return errors.New("booking windows must not be negative")
	}

	return nil
}

// ValidateCoaches checks seed data loaded alongside the config.
func ValidateCoaches(coaches []models.Coach) error {
	coachIDs := make(map[int64]bool)
	for _, coach := range coaches {
		if coach.ID == 0 {
			return fmt.Errorf("coach '%s' has invalid ID 0", coach.Name)
		}
		if coachIDs[coach.ID] {
			return fmt.Errorf("duplicate coach ID found: %d", coach.ID)
		}
		coachIDs[coach.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		if c.Database.Postgres.Host != "" {
			c.Database.Driver = "postgres"
		} else {
			c.Database.Driver = "sqlite3"
		}
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Enabled && !c.API.HTTP.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.Auth.HeaderUserID == "" {
		c.API.Auth.HeaderUserID = "x-user-id"
	}

	if c.Booking.GenerationDays == 0 {
		c.Booking.GenerationDays = models.DefaultGenerationDays
	}
	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = 365
	}
	if c.Booking.SlotBatchSize == 0 {
		c.Booking.SlotBatchSize = models.DefaultSlotBatchSize
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
}
