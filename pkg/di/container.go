// Package di wires the recipes service together from a config.Config.
package di

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-query/cache"
	"github.com/goliatone/go-repository-query/genericrepo"
	"github.com/goliatone/go-repository-query/pkg/config"
	"github.com/goliatone/go-repository-query/pkg/database"
	"github.com/goliatone/go-repository-query/recipes"
	"github.com/goliatone/go-repository-query/repositorycache"
)

// Container holds the singletons of one process. Build it once with New and
// Close it on shutdown.
type Container struct {
	config   *config.Config
	logger   *zap.Logger
	db       *bun.DB
	ownsDB   bool
	registry *prometheus.Registry
	metrics  *genericrepo.Metrics
	cache    cache.CacheService

	recipes recipes.RecipeStore
	authors recipes.AuthorStore
}

// Option overrides a dependency New would otherwise build.
type Option func(*Container)

// WithDB uses db instead of opening cfg.Database. The container does not
// close it.
func WithDB(db *bun.DB) Option {
	return func(c *Container) { c.db = db }
}

// WithLogger uses logger instead of building one from cfg.Log.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithCacheService uses svc instead of building one from cfg.Cache.
func WithCacheService(svc cache.CacheService) Option {
	return func(c *Container) { c.cache = svc }
}

// New builds every dependency in order: logger, database, metrics, cache and
// repositories.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		logger, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		c.logger = logger
	}

	if c.db == nil {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		c.db = db
		c.ownsDB = true
	}

	c.registry = prometheus.NewRegistry()
	c.metrics = genericrepo.NewMetrics(c.registry)

	if c.cache == nil && cfg.Cache.Enabled {
		svc, err := cache.NewCacheService(cfg.Cache.CacheService())
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("di: cache: %w", err)
		}
		c.cache = svc
	}

	if err := c.buildRepositories(); err != nil {
		c.Close()
		return nil, err
	}

	c.logger.Info("container ready",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("cache", c.cache != nil),
		zap.String("cache_backend", cfg.Cache.Backend),
	)
	return c, nil
}

func (c *Container) buildRepositories() error {
	repoOpts := []genericrepo.Option{
		genericrepo.WithLogger(c.logger.Named("repository")),
		genericrepo.WithMetrics(c.metrics),
		genericrepo.WithChildTimeout(c.config.Repository.ChildTimeout),
		genericrepo.WithDefaultLimit(c.config.Repository.DefaultLimit),
	}

	recipeRepo, err := recipes.NewRecipeRepository(c.db, c.logger.Named("recipe"), repoOpts...)
	if err != nil {
		return fmt.Errorf("di: recipe repository: %w", err)
	}
	authorRepo, err := recipes.NewAuthorRepository(c.db, repoOpts...)
	if err != nil {
		return fmt.Errorf("di: author repository: %w", err)
	}

	c.recipes, c.authors = recipeRepo, authorRepo
	if c.cache != nil {
		cacheLogger := c.logger.Named("cache")
		cachedRecipes := repositorycache.New[*recipes.Recipe](recipeRepo, c.cache, repositorycache.WithLogger(cacheLogger))
		// Recipe counts and facets join authors.
		c.recipes = cachedRecipes
		c.authors = repositorycache.New[*recipes.Author](authorRepo, c.cache,
			repositorycache.WithLogger(cacheLogger),
			repositorycache.WithDependents(cachedRecipes),
		)
	}
	return nil
}

// NewLogger builds a zap logger from the log section.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("di: log level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}

func (c *Container) Config() *config.Config           { return c.config }
func (c *Container) Logger() *zap.Logger              { return c.logger }
func (c *Container) DB() *bun.DB                      { return c.db }
func (c *Container) Registry() *prometheus.Registry   { return c.registry }
func (c *Container) CacheService() cache.CacheService { return c.cache }
func (c *Container) Recipes() recipes.RecipeStore     { return c.recipes }
func (c *Container) Authors() recipes.AuthorStore     { return c.authors }

// Migrate creates the schema when it does not exist.
func (c *Container) Migrate(ctx context.Context) error {
	return recipes.CreateSchema(ctx, c.db)
}

// Close releases the database when the container opened it.
func (c *Container) Close() error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if c.ownsDB && c.db != nil {
		return c.db.Close()
	}
	return nil
}
