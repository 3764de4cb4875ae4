package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server        ServerConfig
	Tables        TableConfig
	Uploads       UploadConfig
	Mail          MailConfig
	MongoDB       MongoDBConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	DownloadToken string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// TableConfig locates the two tabular files: the read-only reference table
// and the append-only submitted table.
type TableConfig struct {
	ReferencePath string
	SubmittedPath string
}

type UploadConfig struct {
	Dir string
	// Keep staged files after the request completes instead of deleting them.
	Keep bool
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5002")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("STUDENT_TABLE", "students.xlsx")
	viper.SetDefault("SUBMITTED_TABLE", "submitted_data.xlsx")
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("KEEP_UPLOADS", false)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("MONGODB_DATABASE", "intake")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_RPS", 5.0)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Tables: TableConfig{
			ReferencePath: viper.GetString("STUDENT_TABLE"),
			SubmittedPath: viper.GetString("SUBMITTED_TABLE"),
		},
		Uploads: UploadConfig{
			Dir:  viper.GetString("UPLOAD_DIR"),
			Keep: viper.GetBool("KEEP_UPLOADS"),
		},
		Mail: MailConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     viper.GetString("MAIL_FROM"),
			To:       viper.GetString("MAIL_TO"),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		DownloadToken: os.Getenv("DOWNLOAD_TOKEN"),
	}

	// Basic validation
	if cfg.DownloadToken == "" {
		log.Println("WARNING: DOWNLOAD_TOKEN is not set; the table download endpoint will reject all requests")
	}
	if cfg.Mail.Host == "" {
		log.Println("WARNING: SMTP_HOST is not set; submission notifications will fail (submissions still persist)")
	}

	return cfg, nil
}
