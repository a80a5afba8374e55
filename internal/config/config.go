package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds the runtime settings of the server and CLI.
type Config struct {
	Env  string
	Addr string

	DBPath    string
	UploadDir string

	EmailSuffix   string
	AdminEmail    string
	SeedUsersFile string
	SeedItemsFile string

	JWT    JWTConfig
	Log    LogConfig
	Upload UploadConfig
}

type JWTConfig struct {
	// Secret signs session tokens. Empty means a random secret persisted in
	// the database is used.
	Secret string
	TTL    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

type UploadConfig struct {
	MaxPhotos int
	MaxBytes  int64
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:           v.GetString("ENV"),
		Addr:          v.GetString("ADDR"),
		DBPath:        v.GetString("DB_PATH"),
		UploadDir:     v.GetString("UPLOAD_DIR"),
		EmailSuffix:   v.GetString("EMAIL_SUFFIX"),
		AdminEmail:    strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
		SeedUsersFile: v.GetString("SEED_USERS_FILE"),
		SeedItemsFile: v.GetString("SEED_ITEMS_FILE"),
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    parseDuration(v.GetString("TOKEN_TTL"), 24*time.Hour),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			File:   v.GetString("LOG_FILE"),
		},
		Upload: UploadConfig{
			MaxPhotos: v.GetInt("MAX_PHOTOS"),
			MaxBytes:  v.GetInt64("MAX_UPLOAD_BYTES"),
		},
	}

	if cfg.Upload.MaxPhotos <= 0 {
		cfg.Upload.MaxPhotos = 5
	}
	if cfg.Upload.MaxBytes <= 0 {
		cfg.Upload.MaxBytes = 32 << 20
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("ADDR", ":3000")
	v.SetDefault("DB_PATH", "swapshop.sqlite3")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("EMAIL_SUFFIX", ".edu")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("SEED_USERS_FILE", "")
	v.SetDefault("SEED_ITEMS_FILE", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("MAX_PHOTOS", 5)
	v.SetDefault("MAX_UPLOAD_BYTES", 32<<20)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
