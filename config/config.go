package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 例如 LOCKDEAL_POSTGRES_HOST 覆盖 postgres.host
const EnvPrefix = "LOCKDEAL"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Pickup   PickupConfig   `mapstructure:"pickup"`
	Sweep    SweepConfig    `mapstructure:"sweep"`

	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`

	// Consume 为 true 时本进程同时消费通知 topic 并投递
	Consume       bool   `mapstructure:"consume"`
	ConsumerGroup string `mapstructure:"consumer_group"`

	// 异步发送通知的协程数与队列长度
	NotifyWorkers int `mapstructure:"notify_workers"`
	NotifyQueue   int `mapstructure:"notify_queue"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string `mapstructure:"level"`  // debug, info, warn, error, fatal
	Format   string `mapstructure:"format"` // json, console
	Output   string `mapstructure:"output"` // stdout, file
	FilePath string `mapstructure:"file_path"`
}

// PolicyConfig 信任分与权限档位
type PolicyConfig struct {
	DefaultTrustScore float64 `mapstructure:"default_trust_score"`

	TrustedMinScore float64 `mapstructure:"trusted_min_score"`

	StandardMinScore   float64 `mapstructure:"standard_min_score"`
	StandardMaxGroups  int     `mapstructure:"standard_max_groups"`
	StandardPriceLimit string  `mapstructure:"standard_price_limit"`

	RestrictedMaxGroups  int    `mapstructure:"restricted_max_groups"`
	RestrictedPriceLimit string `mapstructure:"restricted_price_limit"`

	// 可上架列表的门槛: 人数或总额满足其一
	AvailableMinMembers int    `mapstructure:"available_min_members"`
	AvailableMinTotal   string `mapstructure:"available_min_total"`
}

// RateLimitConfig 接口限流, 计数存 Redis; 未启用 Redis 时只做并发控制
type RateLimitConfig struct {
	APIPerMinute  int `mapstructure:"api_per_minute"`
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type PickupConfig struct {
	WeekendOnly       bool `mapstructure:"weekend_only"`
	AttemptsPerMinute int  `mapstructure:"attempts_per_minute"`
}

type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Weekday  string        `mapstructure:"weekday"`
	Interval time.Duration `mapstructure:"interval"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// ParseWeekday 解析 sweep.weekday, 大小写不敏感
func (c SweepConfig) ParseWeekday() (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(c.Weekday))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return time.Saturday, fmt.Errorf("无效的 sweep.weekday: %q", c.Weekday)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "lockdeal")
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.max_open_conns", 50)
	v.SetDefault("postgres.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("jwt.refresh_hours", 2)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "lockdeal.notifications")
	v.SetDefault("kafka.consume", false)
	v.SetDefault("kafka.consumer_group", "lockdeal-notifier")
	v.SetDefault("kafka.notify_workers", 4)
	v.SetDefault("kafka.notify_queue", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")

	v.SetDefault("policy.default_trust_score", 3.0)
	v.SetDefault("policy.trusted_min_score", 3.5)
	v.SetDefault("policy.standard_min_score", 2.5)
	v.SetDefault("policy.standard_max_groups", 50)
	v.SetDefault("policy.standard_price_limit", "20000")
	v.SetDefault("policy.restricted_max_groups", 20)
	v.SetDefault("policy.restricted_price_limit", "7000")
	v.SetDefault("policy.available_min_members", 10)
	v.SetDefault("policy.available_min_total", "1000")

	v.SetDefault("pickup.weekend_only", false)
	v.SetDefault("pickup.attempts_per_minute", 10)

	v.SetDefault("ratelimit.api_per_minute", 120)
	v.SetDefault("ratelimit.max_concurrent", 1000)

	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.weekday", "saturday")
	v.SetDefault("sweep.interval", time.Hour)
	v.SetDefault("sweep.lease_ttl", 23*time.Hour)
}

// LoadConfig 加载配置. path 为空时只使用默认值与环境变量
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 将配置反序列化到结构体
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if _, err := config.Sweep.ParseWeekday(); err != nil {
		return nil, err
	}
	return &config, nil
}
