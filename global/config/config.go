package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"PPLive/logger"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// MinTTLFactor is how many heartbeat intervals the presence TTL must cover,
// i.e. three missed heartbeats are tolerated.
const MinTTLFactor = 4

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*AppConfig, error) {
	if err := godotenv.Load(files...); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("read environ: %w", err)
	}
	return FromEnvSet(es)
}

// FromEnvSet decodes and validates a config from an explicit set of variables.
func FromEnvSet(es env.EnvSet) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Unmarshal(es, cfg); err != nil {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects missing secrets/endpoints and normalizes timing values.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.JwtSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if minTTL := MinTTLFactor * c.HeartbeatInterval; c.PresenceTTL < minTTL {
		logger.Warn("PRESENCE_TTL below heartbeat bound, raising it",
			zap.Duration("configured", c.PresenceTTL), zap.Duration("ttl", minTTL))
		c.PresenceTTL = minTTL
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 1
	}
	if c.FanoutQueue <= 0 {
		c.FanoutQueue = 1024
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	switch strings.ToLower(c.TapKind) {
	case "", "none", "nats", "kafka":
	default:
		return fmt.Errorf("TAP_KIND %q not one of none/nats/kafka", c.TapKind)
	}
	return nil
}

func (c *AppConfig) Origins() []string { return splitList(c.AllowedOrigins) }

func (c *AppConfig) Brokers() []string { return splitList(c.KafkaBrokers) }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
