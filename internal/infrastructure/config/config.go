package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
// 设计说明：使用Viper管理配置，支持YAML文件、环境变量覆盖
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	LateFee     LateFeeConfig     `mapstructure:"late_fee"`
	Reservation ReservationConfig `mapstructure:"reservation"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug | release | test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql | postgres | memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	SSLMode         string        `mapstructure:"sslmode"` // 仅postgres
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN 生成数据库连接字符串
// MySQL格式：user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
// Postgres格式：host=... port=... user=... password=... dbname=... sslmode=disable TimeZone=...
// 注意：MySQL的loc参数需要URL编码（Asia/Shanghai → Asia%2FShanghai）
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		sslMode := d.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, sslMode, d.Loc)
	}
	loc := url.QueryEscape(d.Loc)
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.ParseTime, loc)
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr 返回Redis地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpire  time.Duration `mapstructure:"access_token_expire"`
	RefreshTokenExpire time.Duration `mapstructure:"refresh_token_expire"`
}

type LogConfig struct {
	Level        string `mapstructure:"level"`  // debug | info | warn | error
	Format       string `mapstructure:"format"` // console | json
	Output       string `mapstructure:"output"` // stdout | stderr | /path/to/file
	EnableCaller bool   `mapstructure:"enable_caller"`
}

// SchedulerConfig 到期提醒扫描
type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	IntervalMinutes  int           `mapstructure:"interval_minutes"`  // 扫描间隔(分钟)
	LookaheadMinutes int           `mapstructure:"lookahead_minutes"` // 提前提醒窗口(分钟)
	TickTimeout      time.Duration `mapstructure:"tick_timeout"`      // 单次扫描的执行时限
	BatchSize        int           `mapstructure:"batch_size"`        // 单次扫描最多处理的订单数
	LockTTL          time.Duration `mapstructure:"lock_ttl"`          // 多实例互斥锁过期时间(0表示不加锁)
}

// Lookahead 提前提醒窗口
func (s SchedulerConfig) Lookahead() time.Duration {
	return time.Duration(s.LookaheadMinutes) * time.Minute
}

// LateFeeConfig 滞纳金
type LateFeeConfig struct {
	Rate             float64 `mapstructure:"rate"`
	GracePeriodHours int     `mapstructure:"grace_period_hours"`
}

// RateDecimal 费率(decimal)
func (l LateFeeConfig) RateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(l.Rate)
}

// ReservationConfig 预留
type ReservationConfig struct {
	MaxConflictRetries int `mapstructure:"max_conflict_retries"` // 锁冲突(死锁/锁等待超时)时的重试次数
}

// NotifyConfig 通知端
type NotifyConfig struct {
	Driver   string `mapstructure:"driver"` // log | mq
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

// TracingConfig 链路追踪
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// Load 加载配置文件
// 支持：
// 1. 默认加载config/config.yaml
// 2. 通过环境变量RENTAL_ENV指定环境（如config.prod.yaml）
// 3. 环境变量覆盖（如RENTAL_DATABASE_PASSWORD）
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if env := os.Getenv("RENTAL_ENV"); env != "" {
		v.SetConfigName("config." + env)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return unmarshal(v)
}

// LoadFromViper 从已有的viper实例加载(测试使用)
func LoadFromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	// 环境变量绑定（如RENTAL_DATABASE_PASSWORD → database.password）
	v.SetEnvPrefix("RENTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults 默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.loc", "Local")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_minutes", 5)
	v.SetDefault("scheduler.lookahead_minutes", 10)
	v.SetDefault("scheduler.tick_timeout", 2*time.Minute)
	v.SetDefault("scheduler.batch_size", 200)
	v.SetDefault("scheduler.lock_ttl", 4*time.Minute)

	v.SetDefault("late_fee.rate", 0.1)
	v.SetDefault("late_fee.grace_period_hours", 0)

	v.SetDefault("reservation.max_conflict_retries", 3)

	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.exchange", "rental.events")

	v.SetDefault("tracing.service_name", "rentalhub")
}

// validate 配置校验
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务端口: %d", cfg.Server.Port)
	}

	if cfg.JWT.Secret == "your-secret-key-change-in-production" && cfg.Server.Mode == "release" {
		return fmt.Errorf("生产环境必须修改JWT密钥")
	}

	switch cfg.Database.Driver {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", cfg.Database.Driver)
	}

	if cfg.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("扫描间隔必须大于0: %d", cfg.Scheduler.IntervalMinutes)
	}

	if cfg.LateFee.Rate < 0 {
		return fmt.Errorf("滞纳金费率不能为负: %v", cfg.LateFee.Rate)
	}

	if cfg.LateFee.GracePeriodHours < 0 {
		return fmt.Errorf("宽限期不能为负: %d", cfg.LateFee.GracePeriodHours)
	}

	if cfg.Reservation.MaxConflictRetries < 0 {
		return fmt.Errorf("冲突重试次数不能为负: %d", cfg.Reservation.MaxConflictRetries)
	}

	if cfg.Notify.Driver == "mq" && cfg.Notify.AMQPURL == "" {
		return fmt.Errorf("notify.driver=mq时必须配置amqp_url")
	}

	return nil
}
