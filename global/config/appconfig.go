package config

import "time"

const NodeTypeMsgGateWay = "msgGateWay" // 网关节点

// AppConfig is read from the environment; see Load.
type AppConfig struct {
	NodeType string `env:"NODE_TYPE,default=msgGateWay"`
	NodeId   int64  `env:"NODE_ID,default=1"` // snowflake node number, 0..1023
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`
	GrpcAddr string `env:"GRPC_ADDR,default=:50052"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	JwtSecret string        `env:"JWT_SECRET"`
	JwtAlg    string        `env:"JWT_ALG,default=HS256"`
	JwtLeeway time.Duration `env:"JWT_LEEWAY,default=5s"`

	RedisAddr     string `env:"REDIS_ADDR,default=127.0.0.1:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE,default=20"`

	DatabaseURL   string `env:"DATABASE_URL"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS,default=10"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE,default=false"`

	PresenceTTL       time.Duration `env:"PRESENCE_TTL,default=120s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`

	SendQueueSize  int           `env:"SEND_QUEUE_SIZE,default=256"`
	FanoutWorkers  int           `env:"FANOUT_WORKERS,default=8"`
	FanoutQueue    int           `env:"FANOUT_QUEUE,default=1024"`
	PingInterval   time.Duration `env:"PING_INTERVAL,default=25s"`
	WriteWait      time.Duration `env:"WRITE_WAIT,default=10s"`
	ReadLimit      int64         `env:"READ_LIMIT,default=65536"`
	AllowedOrigins string        `env:"ALLOWED_ORIGINS"` // comma separated, empty = any

	TapKind      string `env:"TAP_KIND,default=none"` // none | nats | kafka
	NatsURL      string `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	NatsSubject  string `env:"NATS_SUBJECT,default=pplive.events"`
	KafkaBrokers string `env:"KAFKA_BROKERS,default=127.0.0.1:9092"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=pplive.events"`

	KafkaEnsureTopic bool  `env:"KAFKA_ENSURE_TOPIC,default=false"`
	KafkaPartitions  int32 `env:"KAFKA_PARTITIONS,default=6"`
	KafkaReplication int16 `env:"KAFKA_REPLICATION,default=1"`
}
