package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CheckoutRPS     float64       `mapstructure:"checkout_rps"`
	CheckoutBurst   int           `mapstructure:"checkout_burst"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres 或 sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	QueueTTL time.Duration `mapstructure:"queue_ttl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

// GatewayConfig 外部支付网关配置
type GatewayConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Currency      string        `mapstructure:"currency"`
	SuccessURL    string        `mapstructure:"success_url"`
	CancelURL     string        `mapstructure:"cancel_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// 签名时间戳容忍窗口，超出即拒绝
	SignatureTolerance time.Duration `mapstructure:"signature_tolerance"`
}

// PricingConfig 计价参数
type PricingConfig struct {
	TaxRate     float64 `mapstructure:"tax_rate"`
	DeliveryFee float64 `mapstructure:"delivery_fee"`
	// 每消费 1 元累计的积分数
	PointsPerUnit float64 `mapstructure:"points_per_unit"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Service  string `mapstructure:"service"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load 加载配置：config.yaml + 环境变量（DINEFLOW_ 前缀）覆盖
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("DINEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件缺失时回退默认值，其他错误直接返回
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.checkout_rps", 5.0)
	v.SetDefault("server.checkout_burst", 10)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "dineflow.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_ttl", "30s")

	v.SetDefault("jwt.secret", "dev-secret-change-me")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("jwt.issuer", "dineflow")

	v.SetDefault("gateway.base_url", "https://checkout.example.com")
	v.SetDefault("gateway.currency", "usd")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.signature_tolerance", "5m")
	v.SetDefault("gateway.success_url", "http://localhost:8080/checkout/success")
	v.SetDefault("gateway.cancel_url", "http://localhost:8080/checkout/cancel")

	v.SetDefault("pricing.tax_rate", 0.1)
	v.SetDefault("pricing.delivery_fee", 2.0)
	v.SetDefault("pricing.points_per_unit", 1.0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service", "dineflow")

	v.SetDefault("log.level", "info")
}
