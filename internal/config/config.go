package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		URL string // optional; when set the threshold claim store runs on redis
	}
	Directory struct {
		BaseURL string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
	}
	Push struct {
		BotToken      string
		RatePerSecond int
	}
	API struct {
		Port     string
		BasePath string
	}
	Dispatch struct {
		QueueSize       int
		MaxWorkers      int
		FanOut          int
		DeliveryTimeout time.Duration
	}
	Usage struct {
		Thresholds []int
		Cooldown   time.Duration
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Storage
	cfg.DB.DSN = os.Getenv("DB_DSN")
	cfg.Redis.URL = os.Getenv("REDIS_URL")
	cfg.Directory.BaseURL = os.Getenv("DIRECTORY_BASE_URL")

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	// SMS settings
	cfg.SMS.AccountSID = os.Getenv("SMS_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("SMS_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("SMS_FROM_NUMBER")

	// Push settings
	cfg.Push.BotToken = os.Getenv("PUSH_BOT_TOKEN")
	if r, err := strconv.Atoi(os.Getenv("PUSH_RATE_PER_SECOND")); err == nil {
		cfg.Push.RatePerSecond = r
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Dispatch worker settings
	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Dispatch.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Dispatch.MaxWorkers = mw
	}
	if fo, err := strconv.Atoi(os.Getenv("FAN_OUT")); err == nil {
		cfg.Dispatch.FanOut = fo
	}
	if dt, err := time.ParseDuration(os.Getenv("DELIVERY_TIMEOUT")); err == nil {
		cfg.Dispatch.DeliveryTimeout = dt
	}

	// Usage-cap settings
	if raw := os.Getenv("USAGE_THRESHOLDS"); raw != "" {
		thresholds, err := parseThresholds(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Usage.Thresholds = thresholds
	}
	if cd, err := time.ParseDuration(os.Getenv("USAGE_COOLDOWN")); err == nil {
		cfg.Usage.Cooldown = cd
	}

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Directory.BaseURL == "" {
		missing = append(missing, "DIRECTORY_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "notification_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "notification-engine"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Dispatch.QueueSize == 0 {
		cfg.Dispatch.QueueSize = 500
	}
	if cfg.Dispatch.MaxWorkers == 0 {
		cfg.Dispatch.MaxWorkers = 10
	}
	if cfg.Dispatch.FanOut == 0 {
		cfg.Dispatch.FanOut = 8
	}
	if cfg.Dispatch.DeliveryTimeout == 0 {
		cfg.Dispatch.DeliveryTimeout = 10 * time.Second
	}
	if len(cfg.Usage.Thresholds) == 0 {
		cfg.Usage.Thresholds = []int{80, 90, 100}
	}
	if cfg.Usage.Cooldown == 0 {
		cfg.Usage.Cooldown = 24 * time.Hour
	}
	if cfg.Push.RatePerSecond == 0 {
		cfg.Push.RatePerSecond = 20
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

func parseThresholds(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	thresholds := make([]int, 0, len(parts))
	for _, part := range parts {
		t, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || t <= 0 || t > 100 {
			return nil, fmt.Errorf("invalid USAGE_THRESHOLDS entry %q", part)
		}
		thresholds = append(thresholds, t)
	}
	return thresholds, nil
}
