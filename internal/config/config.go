package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Quiz     QuizConfig     `yaml:"quiz"`
	Attempt  AttemptConfig  `yaml:"attempt"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"PORT"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
	Env   string `yaml:"env" env:"APP_ENV"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	TTL      string `yaml:"ttl" env:"REDIS_TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"POSTGRES_URL"`
}

type QuizConfig struct {
	TTL      string `yaml:"ttl" env:"QUIZ_CACHE_TTL"`
	SeedFile string `yaml:"seedFile" env:"QUIZ_SEED_FILE"`
}

type AttemptConfig struct {
	TickInterval  string `yaml:"tickInterval" env:"ATTEMPT_TICK_INTERVAL"`
	RecentResults int    `yaml:"recentResults" env:"ATTEMPT_RECENT_RESULTS"`
}

// Load reads YAML config from path, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
