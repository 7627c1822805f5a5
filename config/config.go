package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	postgres_wrapper "github.com/minhpham-dev/orderdup/pkg/infra/postgres"
	redis_wrapper "github.com/minhpham-dev/orderdup/pkg/infra/redis"
)

type GatewayConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // fix | sim
	Enabled bool   `yaml:"enabled"`

	// FIX gateways
	FixConfigFile string `yaml:"fix_config_file"`

	// Sim gateways
	LatencyMs   int     `yaml:"latency_ms"`
	FailureRate float64 `yaml:"failure_rate"`
}

type IngestionConfig struct {
	QueueSize        int  `yaml:"queue_size"`
	EnableShardQueue bool `yaml:"enable_shard_queue"`
	NumShards        int  `yaml:"num_shards"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	AuditTopic  string   `yaml:"audit_topic"`
	IntentTopic string   `yaml:"intent_topic"`
	GroupID     string   `yaml:"group_id"`
}

type NotifyConfig struct {
	Channel string `yaml:"channel"`
}

type AppConfig struct {
	ServiceName string `yaml:"service_name"`

	ConnectPolicy     string          `yaml:"connect_policy"` // all_or_nothing | best_effort
	Gateways          []GatewayConfig `yaml:"gateways"`
	DispatchTimeoutMs int             `yaml:"dispatch_timeout_ms"`
	HealthIntervalSec int             `yaml:"health_interval_sec"`
	RetentionDays     int             `yaml:"retention_days"`
	TickSizeFile      string          `yaml:"tick_size_file"`

	Ingestion IngestionConfig `yaml:"ingestion"`
	Kafka     *KafkaConfig    `yaml:"kafka"`
	Notify    NotifyConfig    `yaml:"notify"`

	OrdersDB *postgres_wrapper.PostgresConfig `yaml:"orders_db"`
	Redis    *redis_wrapper.RedisConfig       `yaml:"redis"`
}

func (c *AppConfig) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutMs) * time.Millisecond
}

func (c *AppConfig) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSec) * time.Second
}

func (c *AppConfig) Retention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// EnabledGateways filters the configured gateway list.
func (c *AppConfig) EnabledGateways() []GatewayConfig {
	var out []GatewayConfig
	for _, g := range c.Gateways {
		if g.Enabled {
			out = append(out, g)
		}
	}
	return out
}

// Load reads config from file, falling back to the CONFIG_FILE env var.
// Environment references in the file are expanded.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	sugar := zap.S().With("func", "config.Load", "filePath", filePath)
	sugar.Debug("loading config")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("failed to read config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		sugar.Error("failed to parse config file")
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if len(c.EnabledGateways()) == 0 {
		return fmt.Errorf("no enabled gateways configured")
	}
	seen := map[string]bool{}
	for _, g := range c.EnabledGateways() {
		if g.Name == "" {
			return fmt.Errorf("gateway with empty name")
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate gateway name %q", g.Name)
		}
		seen[g.Name] = true
		switch g.Type {
		case "fix":
			if g.FixConfigFile == "" {
				return fmt.Errorf("gateway %s: fix_config_file required", g.Name)
			}
		case "sim":
		default:
			return fmt.Errorf("gateway %s: unsupported type %q", g.Name, g.Type)
		}
	}
	return nil
}
