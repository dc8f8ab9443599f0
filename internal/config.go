package internal

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreBadger = "badger"
	StoreMongo  = "mongo"
)

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	StoreDriver    string        `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,default=./data/badger"`
	MongoURI       string        `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase  string        `env:"MONGO_DATABASE,default=chat"`
	MongoPoolSize  uint64        `env:"MONGO_POOL_SIZE,default=20"`
	LimitMessages  *int          `env:"LIMIT_MESSAGES"`
	StoreTimeout   time.Duration `env:"STORE_TIMEOUT,default=5s"`

	DefaultRoom          string        `env:"DEFAULT_ROOM,default=general"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=5000"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=65536"`
	TypingTTL            time.Duration `env:"TYPING_TTL,default=3s"`
	TypingSweepInterval  time.Duration `env:"TYPING_SWEEP_INTERVAL,default=500ms"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	RateLimitPerSecond   float64       `env:"RATE_LIMIT_PER_SECOND,default=20"`
	RateLimitBurst       int           `env:"RATE_LIMIT_BURST,default=40"`

	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	DebugPort       int           `env:"DEBUG_PORT,default=0"`
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreBadger, StoreMongo:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreBadger, StoreMongo, c.StoreDriver)
	}
	if c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	}
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	}
	if c.TypingTTL <= 0 || c.TypingSweepInterval <= 0 {
		return fmt.Errorf("TYPING_TTL and TYPING_SWEEP_INTERVAL must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	return nil
}
