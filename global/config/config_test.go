package config

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func baseEnv() env.EnvSet {
	return env.EnvSet{
		"JWT_SECRET":   "s3cret",
		"DATABASE_URL": "postgres://chat@localhost/chat",
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnvSet(baseEnv())
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	require.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, 120*time.Second, cfg.PresenceTTL)
	require.Equal(t, 256, cfg.SendQueueSize)
	require.Equal(t, "none", cfg.TapKind)
	require.Nil(t, cfg.Origins())
}

func TestRequiredSettings(t *testing.T) {
	for _, key := range []string{"JWT_SECRET", "DATABASE_URL"} {
		es := baseEnv()
		delete(es, key)
		_, err := FromEnvSet(es)
		require.ErrorContains(t, err, key)
	}
}

func TestPresenceTTLIsRaisedToCoverHeartbeats(t *testing.T) {
	es := baseEnv()
	es["HEARTBEAT_INTERVAL"] = "10s"
	es["PRESENCE_TTL"] = "15s"
	cfg, err := FromEnvSet(es)
	require.NoError(t, err)
	require.Equal(t, 40*time.Second, cfg.PresenceTTL)
}

func TestListsAndTapKind(t *testing.T) {
	es := baseEnv()
	es["ALLOWED_ORIGINS"] = "https://a.example, https://b.example,"
	es["KAFKA_BROKERS"] = "k1:9092,k2:9092"
	es["TAP_KIND"] = "kafka"
	cfg, err := FromEnvSet(es)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())

	es["TAP_KIND"] = "rabbit"
	_, err = FromEnvSet(es)
	require.Error(t, err)
}
