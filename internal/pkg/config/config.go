package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig         `mapstructure:"server"`
	Database  DatabaseConfig       `mapstructure:"database"`
	Redis     RedisConfig          `mapstructure:"redis"`
	JWT       JWTConfig            `mapstructure:"jwt"`
	App       AppConfig            `mapstructure:"app"`
	Log       LogConfig            `mapstructure:"log"`
	OSS       OSSConfig            `mapstructure:"oss"`
	Push      PushConfig           `mapstructure:"push"`
	Order     OrderConfig          `mapstructure:"order"`
	Payment   PaymentConfig        `mapstructure:"payment"`
	Telegram  TelegramConfig       `mapstructure:"telegram"`
	Notify    NotifyConfig         `mapstructure:"notify"`
	CORS      CORSConfig           `mapstructure:"cors"`
	RateLimit RateLimitConfig      `mapstructure:"ratelimit"`
	Admin     AdminBootstrapConfig `mapstructure:"admin"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN gorm/pgx 连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone)
}

// URL golang-migrate 使用的连接地址
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	OrderTTL time.Duration `mapstructure:"order_ttl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Name    string        `mapstructure:"name"`
	Env     string        `mapstructure:"env"`
	Debug   bool          `mapstructure:"debug"`
	SiteURL string        `mapstructure:"site_url"`
	Contact ContactConfig `mapstructure:"contact"`
}

// ContactConfig 店铺联系方式，对外接口直接返回
type ContactConfig struct {
	Email    string `mapstructure:"email" json:"email"`
	Phone    string `mapstructure:"phone" json:"phone"`
	Telegram string `mapstructure:"telegram" json:"telegram"`
	Address  string `mapstructure:"address" json:"address"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	Dir             string `mapstructure:"dir"`
}

type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	AppKey          int64  `mapstructure:"app_key"`
	RegionID        string `mapstructure:"region_id"` // e.g., "cn-hangzhou"
	Target          string `mapstructure:"target"`    // ALL, ACCOUNT, TAG
	TargetValue     string `mapstructure:"target_value"`
}

// OrderConfig 订单相关配置
type OrderConfig struct {
	Prefix              string `mapstructure:"prefix"`
	ExpireMinutes       int    `mapstructure:"expire_minutes"`
	DecreaseStockOnPaid bool   `mapstructure:"decrease_stock_on_paid"`
	CheckStock          bool   `mapstructure:"check_stock"`
	ExpireSweepSeconds  int    `mapstructure:"expire_sweep_seconds"`
	ShippingFee         string `mapstructure:"shipping_fee"`
}

type PaymentConfig struct {
	Wechat   WechatPayConfig `mapstructure:"wechat"`
	Alipay   AlipayConfig    `mapstructure:"alipay"`
	UnionPay UnionPayConfig  `mapstructure:"unionpay"`
	Stripe   StripeConfig    `mapstructure:"stripe"`
}

// GatewayOptions 各支付渠道通用的调用参数
type GatewayOptions struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type WechatPayConfig struct {
	GatewayOptions `mapstructure:",squash"`

	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	MchID     string `mapstructure:"mch_id"`
	APIKey    string `mapstructure:"api_key"`   // v2 API 密钥
	SignType  string `mapstructure:"sign_type"` // MD5 或 HMAC-SHA256
	NotifyURL string `mapstructure:"notify_url"`
	Gateway   string `mapstructure:"gateway"`
}

type AlipayConfig struct {
	GatewayOptions `mapstructure:",squash"`

	Enabled      bool   `mapstructure:"enabled"`
	AppID        string `mapstructure:"app_id"`
	PrivateKey   string `mapstructure:"private_key"`   // 应用私钥
	PublicKey    string `mapstructure:"public_key"`    // 支付宝公钥 (不是应用公钥)
	NotifyURL    string `mapstructure:"notify_url"`    // 异步通知地址
	ReturnURL    string `mapstructure:"return_url"`    // 同步跳转地址
	IsProduction bool   `mapstructure:"is_production"` // 是否生产环境
}

type UnionPayConfig struct {
	GatewayOptions `mapstructure:",squash"`

	Enabled    bool   `mapstructure:"enabled"`
	MerID      string `mapstructure:"mer_id"`
	CertID     string `mapstructure:"cert_id"`
	PrivateKey string `mapstructure:"private_key"` // 商户签名私钥 (PEM, PKCS8)
	PublicKey  string `mapstructure:"public_key"`  // 银联验签公钥或证书 (PEM)
	FrontURL   string `mapstructure:"front_url"`
	BackURL    string `mapstructure:"back_url"`
	Gateway    string `mapstructure:"gateway"`
}

type StripeConfig struct {
	GatewayOptions `mapstructure:",squash"`

	Enabled       bool   `mapstructure:"enabled"`
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Currency      string `mapstructure:"currency"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
}

type TelegramConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	BotToken      string            `mapstructure:"bot_token"`
	ChatID        string            `mapstructure:"chat_id"`
	ParseMode     string            `mapstructure:"parse_mode"`
	APIEndpoint   string            `mapstructure:"api_endpoint"`
	WebhookURL    string            `mapstructure:"webhook_url"`
	WebhookSecret string            `mapstructure:"webhook_secret"`
	AdminURL      string            `mapstructure:"admin_url"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	Templates     map[string]string `mapstructure:"templates"`
}

// NotifyConfig 异步通知派发
type NotifyConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

// AdminBootstrapConfig 首次启动时创建的管理员
type AdminBootstrapConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Email    string `mapstructure:"email"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	// JWT 配置验证
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	// 数据库配置验证
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	// Redis 配置验证
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	// 支付渠道: 启用即必须配置凭证
	p := c.Payment
	if p.Wechat.Enabled && (p.Wechat.AppID == "" || p.Wechat.MchID == "" || p.Wechat.APIKey == "") {
		return errors.New("wechat pay is enabled but app_id/mch_id/api_key is missing")
	}
	if p.Alipay.Enabled && (p.Alipay.AppID == "" || p.Alipay.PrivateKey == "" || p.Alipay.PublicKey == "") {
		return errors.New("alipay is enabled but app_id/private_key/public_key is missing")
	}
	if p.UnionPay.Enabled && (p.UnionPay.MerID == "" || p.UnionPay.PrivateKey == "" || p.UnionPay.PublicKey == "") {
		return errors.New("unionpay is enabled but mer_id/private_key/public_key is missing")
	}
	if p.Stripe.Enabled && (p.Stripe.SecretKey == "" || p.Stripe.WebhookSecret == "") {
		return errors.New("stripe is enabled but secret_key/webhook_secret is missing")
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return errors.New("telegram is enabled but bot_token/chat_id is missing")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "Asia/Shanghai")
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("jwt.expire", 24)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "nextspay:")
	v.SetDefault("redis.order_ttl", 5*time.Minute)
	v.SetDefault("app.name", "NextsPay")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("order.prefix", "NP")
	v.SetDefault("order.expire_minutes", 30)
	v.SetDefault("order.check_stock", true)
	v.SetDefault("order.decrease_stock_on_paid", false)
	v.SetDefault("order.expire_sweep_seconds", 60)
	v.SetDefault("order.shipping_fee", "0")
	v.SetDefault("payment.wechat.gateway", "https://api.mch.weixin.qq.com")
	v.SetDefault("payment.wechat.sign_type", "MD5")
	v.SetDefault("payment.unionpay.gateway", "https://gateway.95516.com/gateway/api")
	v.SetDefault("payment.stripe.currency", "cny")
	for _, p := range []string{"wechat", "alipay", "unionpay", "stripe"} {
		v.SetDefault("payment."+p+".timeout", 10*time.Second)
		v.SetDefault("payment."+p+".max_retries", 2)
		v.SetDefault("payment."+p+".retry_delay", 500*time.Millisecond)
	}
	v.SetDefault("telegram.parse_mode", "Markdown")
	v.SetDefault("telegram.api_endpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("telegram.timeout", 10*time.Second)
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("ratelimit.qps", 50)
	v.SetDefault("ratelimit.burst", 100)
}

// LoadConfig 加载配置
func LoadConfig() (*Config, error) {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}

	// 设置默认值
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量, 例如 DATABASE_HOST, PAYMENT_WECHAT_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 兼容旧的环境变量名
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
