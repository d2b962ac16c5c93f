// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/outbox"
	"eshop/internal/pkg/persistence"
	"eshop/internal/pkg/retry"

	"github.com/joho/godotenv"
	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 所有服务共享的配置，本地文件/环境变量打底，Nacos 配置中心覆盖
type Config struct {
	Infra    InfraConfig    `mapstructure:"infra" yaml:"infra"`
	Lock     lock.Config    `mapstructure:"lock" yaml:"lock"`
	Outbox   outbox.Config  `mapstructure:"outbox" yaml:"outbox"`
	Log      logger.Config  `mapstructure:"log" yaml:"log"`
	Lack     LackConfig     `mapstructure:"lack" yaml:"lack"`
	Consumer ConsumerConfig `mapstructure:"consumer" yaml:"consumer"`
	Retry    retry.Config   `mapstructure:"retry" yaml:"retry"`
}

type InfraConfig struct {
	Jaeger struct {
		Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	} `mapstructure:"jaeger" yaml:"jaeger"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	} `mapstructure:"kafka" yaml:"kafka"`
	Redis struct {
		Addrs string `mapstructure:"addrs" yaml:"addrs"`
	} `mapstructure:"redis" yaml:"redis"`
	MySQL     persistence.Config `mapstructure:"mysql" yaml:"mysql"`
	Zookeeper struct {
		Servers []string `mapstructure:"servers" yaml:"servers"`
	} `mapstructure:"zookeeper" yaml:"zookeeper"`
}

// LackConfig 缺品规则
type LackConfig struct {
	Rule string `mapstructure:"rule" yaml:"rule"`
}

// ConsumerConfig 消费失败后的重试策略
type ConsumerConfig struct {
	MaxRetries  int      `mapstructure:"max_retries" yaml:"max_retries"`
	DelayLevels []string `mapstructure:"delay_levels" yaml:"delay_levels"`
}

const (
	configDataID = "eshop.yaml"
)

var (
	currentConfig     atomic.Pointer[Config]
	nacosConfigClient config_client.IConfigClient
)

// GetCurrentConfig 返回当前生效的配置快照，调用方不要修改返回值
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	cfg := defaultConfig()
	return &cfg
}

func defaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Init 加载配置: .env -> 默认值 -> config.yaml -> 环境变量 -> Nacos 配置中心。
// Nacos 上的配置变更会整体替换当前快照。
func Init() error {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := loadLocal(os.Getenv("ESHOP_CONFIG"))
	if err != nil {
		return err
	}
	currentConfig.Store(cfg)

	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	if getEnv("NACOS_CONFIG_ENABLED", "false") == "true" {
		if err := loadRemote(); err != nil {
			return err
		}
	}
	return nil
}

func loadLocal(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("ESHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 兼容各服务原有的环境变量名
	_ = v.BindEnv("infra.jaeger.endpoint", "JAEGER_ENDPOINT")
	_ = v.BindEnv("infra.kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("infra.redis.addrs", "REDIS_ADDRS")
	_ = v.BindEnv("infra.mysql.dsn", "MYSQL_DSN")
	_ = v.BindEnv("infra.zookeeper.servers", "ZK_SERVERS")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("infra.jaeger.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("infra.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("infra.redis.addrs", "localhost:6379")
	v.SetDefault("infra.mysql.dsn", "root:root@tcp(localhost:3306)/eshop?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("infra.mysql.max_open_conns", 50)
	v.SetDefault("infra.mysql.max_idle_conns", 10)
	v.SetDefault("infra.mysql.conn_max_lifetime", "30m")
	v.SetDefault("infra.zookeeper.servers", []string{"localhost:2181"})

	v.SetDefault("lock.backend", lock.BackendRedis)
	v.SetDefault("lock.lease", "30s")
	v.SetDefault("lock.deduct_wait", "1s")
	v.SetDefault("lock.release_wait", "3s")
	v.SetDefault("lock.cache_wait", "500ms")

	v.SetDefault("outbox.relay_interval", "1s")
	v.SetDefault("outbox.check_delay", "30s")
	v.SetDefault("outbox.check_interval", "10s")
	v.SetDefault("outbox.max_checks", 15)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.rate", 500)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "logs/app.log")

	v.SetDefault("lack.rule", "status == 40 && !lacked")

	v.SetDefault("consumer.max_retries", 3)
	v.SetDefault("consumer.delay_levels", []string{"delay_topic_5s", "delay_topic_1m", "delay_topic_10m"})

	v.SetDefault("retry.enabled", true)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "100ms")
	v.SetDefault("retry.max_delay", "2s")
	v.SetDefault("retry.backoff_factor", 2.0)
	v.SetDefault("retry.jitter_enabled", true)
	v.SetDefault("retry.retry_on_deadlock", true)
	v.SetDefault("retry.retry_on_lock_timeout", true)
}

// loadRemote 从 Nacos 拉取 YAML 配置并监听变更
func loadRemote() error {
	serverConfigs, err := createNacosServerConfigs(getEnv("NACOS_SERVER_ADDRS", "localhost:8848"))
	if err != nil {
		return err
	}
	clientConfig := createNacosClientConfig(getEnv("NACOS_NAMESPACE", ""))
	group := getEnv("NACOS_GROUP", "DEFAULT_GROUP")

	client, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return fmt.Errorf("failed to create nacos config client: %w", err)
	}
	nacosConfigClient = client

	content, err := client.GetConfig(vo.ConfigParam{DataId: configDataID, Group: group})
	if err != nil {
		return fmt.Errorf("failed to get config %s from nacos: %w", configDataID, err)
	}
	if err := applyRemote(content); err != nil {
		return err
	}

	return client.ListenConfig(vo.ConfigParam{
		DataId: configDataID,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			if err := applyRemote(data); err != nil {
				logger.Get().Error().Err(err).Str("data_id", dataId).Msg("ignored invalid remote config")
				return
			}
			logger.Get().Info().Str("data_id", dataId).Msg("remote config reloaded")
		},
	})
}

// applyRemote 在本地配置的基础上覆盖远端配置，只有解析成功才替换快照
func applyRemote(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	local, err := loadLocal(os.Getenv("ESHOP_CONFIG"))
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal([]byte(content), local); err != nil {
		return fmt.Errorf("failed to decode remote config: %w", err)
	}
	currentConfig.Store(local)
	logger.UpdateLevel(local.Log.Level)
	return nil
}

// createNacosServerConfigs addrs 格式为 "ip1:port1,ip2:port2"
func createNacosServerConfigs(addrs string) ([]constant.ServerConfig, error) {
	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(addrs, ",") {
		host, portStr, ok := strings.Cut(strings.TrimSpace(addr), ":")
		if !ok {
			return nil, fmt.Errorf("invalid nacos address format: %s", addr)
		}
		port, err := strconv.ParseUint(portStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port in nacos address: %s", portStr)
		}
		serverConfigs = append(serverConfigs, *constant.NewServerConfig(host, port))
	}
	return serverConfigs, nil
}

func createNacosClientConfig(namespaceID string) constant.ClientConfig {
	return *constant.NewClientConfig(
		constant.WithNamespaceId(namespaceID),
		constant.WithTimeoutMs(5000),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
	)
}
