// Package config loads the settings of the recipes service from a YAML file,
// RECIPES_ prefixed environment variables and built-in defaults, in that
// order of precedence from lowest to highest: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-repository-query/cache"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RECIPES_DATABASE_DSN.
const EnvPrefix = "RECIPES"

// Config is the complete service configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" json:"database"`
	Cache      CacheConfig      `mapstructure:"cache" json:"cache"`
	Repository RepositoryConfig `mapstructure:"repository" json:"repository"`
	Log        LogConfig        `mapstructure:"log" json:"log"`
}

type DatabaseConfig struct {
	// Driver is one of sqlite, sqlite3, postgres or pgx.
	Driver       string `mapstructure:"driver" json:"driver"`
	DSN          string `mapstructure:"dsn" json:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns" json:"max_open_conns"`
}

type CacheConfig struct {
	Enabled            bool          `mapstructure:"enabled" json:"enabled"`
	Backend            string        `mapstructure:"backend" json:"backend"`
	Capacity           int           `mapstructure:"capacity" json:"capacity"`
	Shards             int           `mapstructure:"shards" json:"shards"`
	TTL                time.Duration `mapstructure:"ttl" json:"ttl"`
	EvictionPercentage int           `mapstructure:"eviction_percentage" json:"eviction_percentage"`
	Redis              RedisConfig   `mapstructure:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
	Prefix   string `mapstructure:"prefix" json:"prefix"`
}

type RepositoryConfig struct {
	ChildTimeout time.Duration `mapstructure:"child_timeout" json:"child_timeout"`
	DefaultLimit int           `mapstructure:"default_limit" json:"default_limit"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	Development bool   `mapstructure:"development" json:"development"`
}

// Drivers accepted by DatabaseConfig.Driver.
var Drivers = []any{"sqlite", "sqlite3", "postgres", "pgx"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:recipes.db?cache=shared&_pragma=foreign_keys(1)")
	v.SetDefault("database.max_open_conns", 1)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", string(cache.BackendSturdyc))
	v.SetDefault("cache.capacity", 2000)
	v.SetDefault("cache.shards", 16)
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("cache.eviction_percentage", 10)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "recipes:")

	v.SetDefault("repository.child_timeout", 5*time.Second)
	v.SetDefault("repository.default_limit", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads path, when not empty, and applies environment overrides. A
// missing path is an error; an empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks every section.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Database),
		validation.Field(&c.Cache),
		validation.Field(&c.Repository),
		validation.Field(&c.Log),
	)
	if err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(Drivers...)),
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
	)
}

func (c CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(string(cache.BackendSturdyc), string(cache.BackendRedis))),
		validation.Field(&c.Capacity, validation.Min(1)),
		validation.Field(&c.Shards, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.EvictionPercentage, validation.Min(1), validation.Max(100)),
		validation.Field(&c.Redis, validation.Skip.When(c.Backend != string(cache.BackendRedis))),
	)
}

func (r RedisConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Addr, validation.Required),
		validation.Field(&r.DB, validation.Min(0)),
	)
}

func (r RepositoryConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ChildTimeout, validation.Min(time.Duration(0))),
		validation.Field(&r.DefaultLimit, validation.Min(0)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// CacheService converts the cache section to a cache.Config.
func (c CacheConfig) CacheService() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Backend = cache.Backend(c.Backend)
	cfg.Capacity = c.Capacity
	cfg.NumShards = c.Shards
	cfg.TTL = c.TTL
	cfg.EvictionPercentage = c.EvictionPercentage
	cfg.Redis = cache.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
	}
	return cfg
}

// ValidationError wraps the per-field errors of ozzo-validation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "config: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Fields returns the failing fields keyed by their dotted path, e.g.
// "database.driver".
func (e *ValidationError) Fields() map[string]string {
	out := map[string]string{}
	flatten("", e.Err, out)
	return out
}

func flatten(prefix string, err error, out map[string]string) {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		out[prefix] = err.Error()
		return
	}
	for field, fe := range errs {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		flatten(key, fe, out)
	}
}
