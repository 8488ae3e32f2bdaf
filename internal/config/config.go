package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port        int      `yaml:"port" env:"SERVER_PORT,overwrite"`
	Mode        string   `yaml:"mode" env:"GIN_MODE,overwrite"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS,overwrite"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"url" env:"DATABASE_URL,overwrite"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS,overwrite"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS,overwrite"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME,overwrite"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET,overwrite"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"JWT_ACCESS_TTL,overwrite"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"JWT_REFRESH_TTL,overwrite"`
	ResetTTL   time.Duration `yaml:"password_reset_ttl" env:"PASSWORD_RESET_TTL,overwrite"`
}

// VerificationConfig holds the code windows for every verification flow.
type VerificationConfig struct {
	PhoneWindow       time.Duration `yaml:"phone_window" env:"VERIFY_PHONE_WINDOW,overwrite"`
	EmailWindow       time.Duration `yaml:"email_window" env:"VERIFY_EMAIL_WINDOW,overwrite"`
	SignupWindow      time.Duration `yaml:"signup_window" env:"VERIFY_SIGNUP_WINDOW,overwrite"`
	MaxSendsPerWindow int           `yaml:"max_sends_per_window" env:"VERIFY_MAX_SENDS,overwrite"`
	ThrottleWindow    time.Duration `yaml:"throttle_window" env:"VERIFY_THROTTLE_WINDOW,overwrite"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host" env:"SMTP_HOST,overwrite"`
	SMTPPort     int    `yaml:"smtp_port" env:"SMTP_PORT,overwrite"`
	SMTPUser     string `yaml:"smtp_user" env:"SMTP_USER,overwrite"`
	SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD,overwrite"`
	FromEmail    string `yaml:"from_email" env:"SMTP_FROM,overwrite"`
	DryRun       bool   `yaml:"dry_run" env:"SMTP_DRY_RUN,overwrite"`
	FrontendURL  string `yaml:"frontend_url" env:"FRONTEND_URL,overwrite"`
}

type SMSConfig struct {
	APIKey    string `yaml:"api_key" env:"SOLAPI_API_KEY,overwrite"`
	APISecret string `yaml:"api_secret" env:"SOLAPI_API_SECRET,overwrite"`
	Sender    string `yaml:"sender" env:"SOLAPI_CALLER_NUMBER,overwrite"`
	BaseURL   string `yaml:"base_url" env:"SOLAPI_BASE_URL,overwrite"`
	DryRun    bool   `yaml:"dry_run" env:"SOLAPI_DRY_RUN,overwrite"`
}

type StorageConfig struct {
	Bucket            string        `yaml:"bucket" env:"AWS_STORAGE_BUCKET_NAME,overwrite"`
	Region            string        `yaml:"region" env:"AWS_S3_REGION_NAME,overwrite"`
	Endpoint          string        `yaml:"endpoint" env:"AWS_S3_ENDPOINT,overwrite"`
	AccessKey         string        `yaml:"access_key" env:"AWS_ACCESS_KEY_ID,overwrite"`
	SecretKey         string        `yaml:"secret_key" env:"AWS_SECRET_ACCESS_KEY,overwrite"`
	UsePathStyle      bool          `yaml:"use_path_style" env:"AWS_S3_PATH_STYLE,overwrite"`
	PresignExpiration time.Duration `yaml:"presign_expiration" env:"AWS_S3_PRESIGN_TTL,overwrite"`
	PublicBaseURL     string        `yaml:"public_base_url" env:"AWS_S3_PUBLIC_URL,overwrite"`
	UserImageFolder   string        `yaml:"user_image_folder" env:"AWS_S3_IMAGE_FOLDER,overwrite"`
}

type CouponConfig struct {
	ValidFor    time.Duration `yaml:"valid_for" env:"COUPON_VALID_FOR,overwrite"`
	PhoneWindow time.Duration `yaml:"phone_window" env:"COUPON_PHONE_WINDOW,overwrite"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL,overwrite"`
	Format string `yaml:"format" env:"LOG_FORMAT,overwrite"`
	Output string `yaml:"output" env:"LOG_OUTPUT,overwrite"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Auth         AuthConfig         `yaml:"auth"`
	Verification VerificationConfig `yaml:"verification"`
	Email        EmailConfig        `yaml:"email"`
	SMS          SMSConfig          `yaml:"sms"`
	Storage      StorageConfig      `yaml:"storage"`
	Coupons      CouponConfig       `yaml:"coupons"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// Load reads the YAML file at path (missing file is fine), overlays
// environment variables and fills defaults.
func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return finish(ctx, &cfg, envconfig.OsLookuper())
}

func finish(ctx context.Context, cfg *Config, lookuper envconfig.Lookuper) (*Config, error) {
	if err := envconfig.ProcessWith(ctx, cfg, lookuper); err != nil {
		return nil, fmt.Errorf("resolve env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.Auth.ResetTTL == 0 {
		c.Auth.ResetTTL = time.Hour
	}
	if c.Verification.PhoneWindow == 0 {
		c.Verification.PhoneWindow = 5 * time.Minute
	}
	if c.Verification.EmailWindow == 0 {
		c.Verification.EmailWindow = 3 * time.Minute
	}
	if c.Verification.SignupWindow == 0 {
		c.Verification.SignupWindow = 10 * time.Minute
	}
	if c.Verification.ThrottleWindow == 0 {
		c.Verification.ThrottleWindow = 10 * time.Minute
	}
	if c.SMS.BaseURL == "" {
		c.SMS.BaseURL = "https://api.solapi.com"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "ap-northeast-2"
	}
	if c.Storage.PresignExpiration == 0 {
		c.Storage.PresignExpiration = 5 * time.Minute
	}
	if c.Storage.UserImageFolder == "" {
		c.Storage.UserImageFolder = "users"
	}
	if c.Coupons.ValidFor == 0 {
		c.Coupons.ValidFor = 30 * 24 * time.Hour
	}
	if c.Coupons.PhoneWindow == 0 {
		c.Coupons.PhoneWindow = 10 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database url is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth jwt_secret must be at least 16 characters")
	}
	if c.Verification.MaxSendsPerWindow < 0 {
		return errors.New("verification max_sends_per_window must not be negative")
	}
	return nil
}
