package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Business  BusinessConfig  `mapstructure:"business"`
	FeePolicy FeePolicyConfig `mapstructure:"fee_policy"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PaymentEvents string `mapstructure:"payment_events"`
}

type BusinessConfig struct {
	MaxRetryCount                 int   `mapstructure:"max_retry_count"`
	LockTTLSeconds                int   `mapstructure:"lock_ttl_seconds"`
	HeldFundsWarningDays          int   `mapstructure:"held_funds_warning_days"`
	HeldFundsScanIntervalSeconds  int   `mapstructure:"held_funds_scan_interval_seconds"`
	PayoutDispatchIntervalSeconds int   `mapstructure:"payout_dispatch_interval_seconds"`
	MinWithdrawalAmount           int64 `mapstructure:"min_withdrawal_amount"`
}

func (b BusinessConfig) LockTTL() time.Duration {
	return time.Duration(b.LockTTLSeconds) * time.Second
}

// FeePolicyConfig 默认分账策略（首次启动时写入数据库）
// 费率用字符串配置，交给 decimal 精确解析
type FeePolicyConfig struct {
	Name            string `mapstructure:"name"`
	SystemFeeRate   string `mapstructure:"system_fee_rate"`
	MentorShareRate string `mapstructure:"mentor_share_rate"`
	TalentShareRate string `mapstructure:"talent_share_rate"`
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("kafka.topic.payment_events", "talentpay.payment.events")
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.lock_ttl_seconds", 30)
	v.SetDefault("business.held_funds_warning_days", 7)
	v.SetDefault("business.held_funds_scan_interval_seconds", 3600)
	v.SetDefault("business.payout_dispatch_interval_seconds", 30)
	v.SetDefault("business.min_withdrawal_amount", 1)
	v.SetDefault("fee_policy.name", "default")
	v.SetDefault("fee_policy.system_fee_rate", "0.10")
	v.SetDefault("fee_policy.mentor_share_rate", "0.20")
	v.SetDefault("fee_policy.talent_share_rate", "0.70")
}

// Load 读取配置文件，环境变量 TALENTPAY_* 覆盖同名配置项
// 例如 TALENTPAY_MYSQL_HOST 覆盖 mysql.host
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TALENTPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig 加载配置文件，失败直接退出
func LoadConfig(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	GlobalConfig = cfg
	return cfg
}

func (c *Config) Validate() error {
	var errs []error
	if c.MySQL.Host == "" || c.MySQL.Database == "" {
		errs = append(errs, errors.New("mysql.host 和 mysql.database 不能为空"))
	}
	if c.Redis.Host == "" {
		errs = append(errs, errors.New("redis.host 不能为空"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers 不能为空"))
	}
	if c.Business.LockTTLSeconds <= 0 {
		errs = append(errs, errors.New("business.lock_ttl_seconds 必须大于0"))
	}
	if c.Business.MinWithdrawalAmount <= 0 {
		errs = append(errs, errors.New("business.min_withdrawal_amount 必须大于0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("配置不合法: %w", errors.Join(errs...))
	}
	return nil
}
