package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Seed      SeedConfig      `mapstructure:"seed"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// EngineConfig 自适应出题与评分相关参数
type EngineConfig struct {
	InitialDifficulty  float64       `mapstructure:"initial_difficulty"`
	AssessmentLength   int           `mapstructure:"assessment_length"`
	LessonQuizLength   int           `mapstructure:"lesson_quiz_length"`
	HistoryTTL         time.Duration `mapstructure:"history_ttl"`
	InactivityTimeout  time.Duration `mapstructure:"inactivity_timeout"`
	LessonPassPolicy   string        `mapstructure:"lesson_pass_policy"`
	LessonPassMinScore int           `mapstructure:"lesson_pass_min_score"`
}

type SeedConfig struct {
	DummyScores bool `mapstructure:"dummy_scores"`
}

const (
	PassPolicyMaxDifficulty = "max_difficulty"
	PassPolicyPercentage    = "percentage"
)

// DefaultEngineConfig 与线上行为一致的默认值
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		InitialDifficulty:  5,
		AssessmentLength:   24,
		LessonQuizLength:   10,
		HistoryTTL:         5 * time.Minute,
		InactivityTimeout:  5 * time.Minute,
		LessonPassPolicy:   PassPolicyMaxDifficulty,
		LessonPassMinScore: 7,
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultEngineConfig()
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("engine.initial_difficulty", d.InitialDifficulty)
	v.SetDefault("engine.assessment_length", d.AssessmentLength)
	v.SetDefault("engine.lesson_quiz_length", d.LessonQuizLength)
	v.SetDefault("engine.history_ttl", d.HistoryTTL)
	v.SetDefault("engine.inactivity_timeout", d.InactivityTimeout)
	v.SetDefault("engine.lesson_pass_policy", d.LessonPassPolicy)
	v.SetDefault("engine.lesson_pass_min_score", d.LessonPassMinScore)
	v.SetDefault("seed.dummy_scores", true)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CREDAHEAD")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")
	v.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "PORT")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (e EngineConfig) Validate() error {
	if e.InitialDifficulty < 1 || e.InitialDifficulty > 10 {
		return fmt.Errorf("engine.initial_difficulty must be within [1,10], got %v", e.InitialDifficulty)
	}
	if e.AssessmentLength <= 0 || e.LessonQuizLength <= 0 {
		return fmt.Errorf("engine quiz lengths must be positive")
	}
	switch e.LessonPassPolicy {
	case PassPolicyMaxDifficulty, PassPolicyPercentage:
	default:
		return fmt.Errorf("unknown engine.lesson_pass_policy %q", e.LessonPassPolicy)
	}
	return nil
}
