package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the engine's full runtime configuration, assembled from the
// process environment. Field grouping mirrors how each group gets handed
// to its consumer: Transport to internal/transport, Database to
// internal/storage, Telegram to internal/notify, Credentials to
// internal/credentials.
type Config struct {
	Env         string
	Transport   TransportConfig
	Chart       ChartConfig
	Database    DatabaseConfig
	Credentials CredentialsConfig
	Telegram    TelegramConfig
	MetricsAddr string
}

// ChartConfig names the symbol, timeframe and studies one engine process
// opens a session for — one process, one chart, per spec.md's scope.
type ChartConfig struct {
	Symbol      string
	Timeframe   string
	BarsRange   int
	IndicatorID string
	Version     string
}

// TransportConfig configures the WebSocket connection to the chart data
// feed.
type TransportConfig struct {
	WSURL       string
	IdleTimeout time.Duration
	BufferSize  int
}

// DatabaseConfig configures the Postgres tick/indicator sink.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CredentialsConfig configures the local encrypted credential cache.
type CredentialsConfig struct {
	CachePath     string
	EncryptionKey string
}

// TelegramConfig configures the operator alert sink. BotToken empty
// disables Telegram alerting entirely.
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// LoadConfig reads the environment into a Config, defaulting fields the
// environment omits.
func LoadConfig() (*Config, error) {
	env := getEnv("ENV", "local")

	transport := TransportConfig{
		WSURL:       getEnv("TVCHART_WS_URL", "wss://data.tradingview.com/socket.io/websocket"),
		IdleTimeout: time.Duration(getEnvInt("TVCHART_IDLE_TIMEOUT_SECONDS", 30)) * time.Second,
		BufferSize:  getEnvInt("TVCHART_SUBSCRIBER_BUFFER_SIZE", 64),
	}

	chart := ChartConfig{
		Symbol:      getEnv("TVCHART_SYMBOL", "NASDAQ:AAPL"),
		Timeframe:   getEnv("TVCHART_TIMEFRAME", "60"),
		BarsRange:   getEnvInt("TVCHART_BARS_RANGE", 300),
		IndicatorID: getEnv("TVCHART_INDICATOR_ID", ""),
		Version:     getEnv("TVCHART_INDICATOR_VERSION", "last"),
	}

	database := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "tvchart"),
		Password: getEnv("DB_PASSWORD", "secret_password"),
		DBName:   getEnv("DB_NAME", "tvchart"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	credentials := CredentialsConfig{
		CachePath:     getEnv("TVCHART_CREDENTIAL_CACHE_PATH", "./tvchart_credentials.enc"),
		EncryptionKey: getEnv("TVCHART_ENCRYPTION_KEY", ""),
	}

	telegram := TelegramConfig{
		BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),
	}

	return &Config{
		Env:         env,
		Transport:   transport,
		Chart:       chart,
		Database:    database,
		Credentials: credentials,
		Telegram:    telegram,
		MetricsAddr: getEnv("TVCHART_METRICS_ADDR", ":9090"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		v, err := strconv.Atoi(value)
		if err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		v, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return v
		}
	}
	return defaultValue
}
