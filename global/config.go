package global

import (
	"context"
	"strings"

	"PPLive/global/config"
	"PPLive/logger"
	mid "PPLive/middleware"
	midsec "PPLive/middleware/security"
	"PPLive/service/chat"
	"PPLive/service/storage"
	"PPLive/service/storage/pg"
	redisx "PPLive/service/storage/redis"
	"PPLive/service/tap"
	jwtsec "PPLive/tools/security"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func JwtOptions(cfg *config.AppConfig) jwtsec.Options {
	opts := jwtsec.DefaultOptions([]byte(cfg.JwtSecret))
	opts.Alg = cfg.JwtAlg
	opts.Leeway = cfg.JwtLeeway
	return opts
}

func AuthOptions(cfg *config.AppConfig) *midsec.Options {
	return midsec.DefaultOptions(JwtOptions(cfg))
}

// ConfigRedis never fails: an unreachable Redis only degrades presence.
func ConfigRedis(ctx context.Context, cfg *config.AppConfig) (*redis.Client, *storage.RedisPresence) {
	rdb, err := redisx.NewClient(ctx, redisx.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		logger.Warn("redis not reachable at startup, presence degraded", zap.Error(err))
	}
	return rdb, storage.NewRedisPresence(rdb)
}

// ConfigLedger connects to Postgres; unlike Redis the gateway cannot run
// without it.
func ConfigLedger(ctx context.Context, cfg *config.AppConfig) (*pgxpool.Pool, *pg.Ledger, error) {
	pool, err := pg.NewPool(ctx, pg.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, nil, err
	}
	ledger := pg.NewLedger(pool)
	if cfg.DBAutoMigrate {
		if err := ledger.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("ledger schema ensured")
	}
	return pool, ledger, nil
}

// ConfigTap picks the event bus backend. A backend that cannot connect falls
// back to Noop so the live path keeps working.
func ConfigTap(cfg *config.AppConfig) *tap.Tap {
	var pub tap.Publisher = tap.Noop{}
	switch strings.ToLower(cfg.TapKind) {
	case "nats":
		p, err := tap.NewNatsPublisher(tap.NatsConfig{
			Servers: strings.Split(cfg.NatsURL, ","),
			Name:    "pplive-" + cfg.NodeType,
			Subject: cfg.NatsSubject,
		})
		if err != nil {
			logger.Error("nats tap disabled", zap.Error(err))
			break
		}
		pub = p
	case "kafka":
		p, err := tap.NewKafkaPublisher(tap.KafkaConfig{
			Brokers:           cfg.Brokers(),
			Topic:             cfg.KafkaTopic,
			EnsureTopic:       cfg.KafkaEnsureTopic,
			Partitions:        cfg.KafkaPartitions,
			ReplicationFactor: cfg.KafkaReplication,
		})
		if err != nil {
			logger.Error("kafka tap disabled", zap.Error(err))
			break
		}
		pub = p
	}
	logger.Info("event tap configured", zap.String("kind", cfg.TapKind))
	return tap.New(pub, cfg.FanoutQueue)
}

func GatewayOptions(cfg *config.AppConfig) chat.Options {
	return chat.Options{
		NodeID: cfg.NodeId,
		Presence: chat.PresenceOptions{
			TTL:       cfg.PresenceTTL,
			Heartbeat: cfg.HeartbeatInterval,
		},
		SendQueueSize:  cfg.SendQueueSize,
		FanoutWorkers:  cfg.FanoutWorkers,
		FanoutQueue:    cfg.FanoutQueue,
		PingInterval:   cfg.PingInterval,
		WriteWait:      cfg.WriteWait,
		ReadLimit:      cfg.ReadLimit,
		AllowedOrigins: cfg.Origins(),
	}
}

func ConfigMiddleware(cfg *config.AppConfig) {
	mid.Manager().Add(mid.Origin(cfg.Origins()))
}
