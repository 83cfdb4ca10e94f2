package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const configPathEnv = "MPESA_CONFIG_PATH"

type MpesaConfig struct {
	Env          string `yaml:"env" env:"MPESA_ENV" env-default:"local"`
	HTTPServer   `yaml:"http_server"`
	GRPCServer   `yaml:"grpc_server"`
	Storage      `yaml:"storage"`
	LogConfig    `yaml:"log_config"`
	Provider     `yaml:"mpesa"`
	KafkaService `yaml:"kafka-service"`
	Redis        `yaml:"redis"`
	Auth         `yaml:"auth"`
	Sweeper      `yaml:"sweeper"`
	AuditLog     `yaml:"audit_log"`
}

type HTTPServer struct {
	Host         string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"60s"`
}

type GRPCServer struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

type Storage struct {
	// Driver is "postgres" or "bolt".
	Driver         string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	Dsn            string `yaml:"dsn" env:"DATABASE_URL"`
	BoltPath       string `yaml:"bolt_path" env:"BOLT_PATH" env-default:"mpesa.db"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"MIGRATE_ON_START" env-default:"true"`
	MaxOpenConns   int    `yaml:"max_open_conns" env-default:"20"`
	MaxIdleConns   int    `yaml:"max_idle_conns" env-default:"5"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
	LogOutput string `yaml:"log_output" env:"LOG_OUTPUT" env-default:"stdout"`
}

type Provider struct {
	APIKey              string        `yaml:"api_key" env:"MPESA_API_KEY"`
	PublicKey           string        `yaml:"public_key" env:"MPESA_PUBLIC_KEY"`
	Host                string        `yaml:"host" env:"MPESA_API_HOST" env-default:"api.sandbox.vm.co.mz"`
	UseTLS              bool          `yaml:"use_tls" env:"MPESA_USE_TLS" env-default:"true"`
	PortC2B             string        `yaml:"port_c2b" env:"MPESA_API_PORT_C2B" env-default:"18352"`
	PortB2C             string        `yaml:"port_b2c" env:"MPESA_API_PORT_B2C" env-default:"18345"`
	PortB2B             string        `yaml:"port_b2b" env:"MPESA_API_PORT_B2B" env-default:"18349"`
	PortReversal        string        `yaml:"port_reversal" env:"MPESA_API_PORT_REVERSAL" env-default:"18354"`
	PortQueryTxn        string        `yaml:"port_query_txn" env:"MPESA_API_PORT_QUERY_TXN" env-default:"18353"`
	PortQueryCustomer   string        `yaml:"port_query_customer" env:"MPESA_API_PORT_QUERY" env-default:"19323"`
	ServiceProviderCode string        `yaml:"service_provider_code" env:"MPESA_SERVICE_PROVIDER_CODE" env-default:"171717"`
	SecurityCredential  string        `yaml:"security_credential" env:"MPESA_SECURITY_CREDENTIAL"`
	InitiatorIdentifier string        `yaml:"initiator_identifier" env:"MPESA_INITIATOR_IDENTIFIER"`
	Timeout             time.Duration `yaml:"timeout" env:"MPESA_TIMEOUT" env-default:"30s"`
	BreakerMaxFailures  uint32        `yaml:"breaker_max_failures" env-default:"5"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout" env-default:"30s"`
}

type KafkaService struct {
	Enabled        bool   `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Host           string `yaml:"host" env:"KAFKA_HOST" env-default:"localhost"`
	Port           string `yaml:"port" env:"KAFKA_PORT" env-default:"9092"`
	EventsTopic    string `yaml:"events_topic" env-default:"mpesa-transaction-events"`
	CallbacksTopic string `yaml:"callbacks_topic" env-default:"mpesa-callbacks"`
	ConsumerGroup  string `yaml:"consumer_group" env-default:"mpesa-service"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env-default:"24h"`
}

type Auth struct {
	APIKeys []string `yaml:"api_keys" env:"API_KEYS" env-separator:","`
}

type Sweeper struct {
	Enabled    bool          `yaml:"enabled" env:"SWEEPER_ENABLED" env-default:"true"`
	Interval   time.Duration `yaml:"interval" env-default:"1m"`
	StaleAfter time.Duration `yaml:"stale_after" env-default:"5m"`
	BatchSize  int           `yaml:"batch_size" env-default:"50"`
}

type AuditLog struct {
	BufferSize int           `yaml:"buffer_size" env-default:"1000"`
	MaxRetries int           `yaml:"max_retries" env-default:"3"`
	Backoff    time.Duration `yaml:"backoff" env-default:"500ms"`
}

func MustLoad() *MpesaConfig {
	cfg, err := Load(os.Getenv(configPathEnv))
	if err != nil {
		log.Fatalf("%v\n", err)
	}
	return cfg
}

// Load reads the YAML file at path, then applies environment overrides.
// An empty path loads from the environment only.
func Load(path string) (*MpesaConfig, error) {
	var cfg MpesaConfig

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	// YAML to struct object
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return &cfg, nil
}
