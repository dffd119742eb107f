package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/xxxsen/common/logger"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port            int              `json:"port"`
	JWTSecret       string           `json:"jwt_secret"`
	BcryptCost      int              `json:"bcrypt_cost"`
	LogConfig       logger.LogConfig `json:"log_config"`
	Store           StoreConfig      `json:"store"`
	Cache           CacheConfig      `json:"cache"`
	TokenCache      TokenCacheConfig `json:"token_cache"`
	HealthCheckSpec string           `json:"health_check_spec"`
	CORSAllowlist   []string         `json:"cors_allowlist"`
}

type StoreConfig struct {
	Type     string         `json:"type"`
	Mongo    MongoConfig    `json:"mongo"`
	Postgres PostgresConfig `json:"postgres"`
}

type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type PostgresConfig struct {
	DSN          string `json:"dsn"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	DBName       string `json:"dbname"`
	SSLMode      string `json:"sslmode"`
	MaxOpenConns int    `json:"max_open_conns"`
}

// CacheConfig enables the redis todo cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	TTLSeconds    int    `json:"ttl_seconds"`
}

type TokenCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PORT: %w", err)
		}
		cfg.Port = port
	}
	if v, ok := lookup("JWT_SECRET"); ok && v != "" {
		cfg.JWTSecret = v
	}
	if v, ok := lookup("MONGODB_URI"); ok && v != "" {
		cfg.Store.Mongo.URI = v
		if cfg.Store.Type == "" {
			cfg.Store.Type = StoreMongo
		}
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		cfg.Store.Postgres.DSN = v
		if cfg.Store.Type == "" {
			cfg.Store.Type = StorePostgres
		}
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		cfg.Cache.RedisAddr = v
	}
	return nil
}

func (c *Config) normalize() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreMemory
	}
	switch c.Store.Type {
	case StoreMongo:
		if c.Store.Mongo.URI == "" {
			return fmt.Errorf("store.mongo.uri is required for mongo store")
		}
		if c.Store.Mongo.Database == "" {
			c.Store.Mongo.Database = "mtodo"
		}
	case StorePostgres:
		pg := c.Store.Postgres
		if pg.DSN == "" && (pg.Host == "" || pg.DBName == "") {
			return fmt.Errorf("store.postgres dsn or host/dbname are required for postgres store")
		}
		if c.Store.Postgres.Port == 0 {
			c.Store.Postgres.Port = 5432
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.type must be mongo, postgres or memory")
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 300
	}
	if c.TokenCache.Size <= 0 {
		c.TokenCache.Size = 1024
	}
	if c.TokenCache.TTLSeconds <= 0 {
		c.TokenCache.TTLSeconds = 600
	}
	if c.HealthCheckSpec == "" {
		c.HealthCheckSpec = "@every 1m"
	}
	return nil
}
