package cli

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"itef-puzzle-service/internal/app"
	"itef-puzzle-service/internal/config"
	"itef-puzzle-service/internal/infra/memory"
	pgstore "itef-puzzle-service/internal/infra/postgres"
	redisstore "itef-puzzle-service/internal/infra/redis"
)

// backends holds the storage selected by configuration.
type backends struct {
	locals  app.LocalStorageProvider
	remote  app.RemoteStore
	catalog app.CatalogRepository
	pool    *pgxpool.Pool
	redis   *redis.Client
}

func (b *backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// openBackends picks Postgres for remote documents and the catalog when a URL
// is configured, Redis for local storage (and remote documents without
// Postgres) when an address is configured, and memory for everything else.
func openBackends(ctx context.Context, cfg config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.pool = pool
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(memory.DefaultCatalog())
	if b.pool != nil {
		loader = pgstore.NewCatalogLoader(b.pool)
	}
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)

	switch {
	case b.redis != nil:
		b.locals = redisstore.NewLocalStore(b.redis, config.TTLDuration(cfg.Redis.TTL, 0))
		b.catalog = redisstore.NewCatalogRepository(b.redis, loader, catalogTTL)
	default:
		b.locals = memory.NewLocalStore()
		b.catalog = memory.NewCatalogRepository(loader, catalogTTL)
	}

	switch {
	case b.pool != nil:
		b.remote = pgstore.NewRemoteStore(b.pool)
		log.Info("remote store: postgres")
	case b.redis != nil:
		b.remote = redisstore.NewRemoteStore(b.redis)
		log.Info("remote store: redis", zap.String("addr", cfg.Redis.Addr))
	default:
		b.remote = memory.NewRemoteStore()
		log.Info("remote store: memory")
	}
	return b, nil
}

func newService(cfg config.Config, b *backends, mirror *app.Mirror, log *zap.Logger) *app.Service {
	return app.NewService(b.locals, b.remote, b.catalog, mirror, log, app.Options{
		IdentityTTL:        config.TTLDuration(cfg.Identity.TTL, 24*time.Hour),
		ExcludeParticipant: cfg.Leaderboard.ExcludeParticipant,
	})
}

func newMirror(cfg config.Config, log *zap.Logger) *app.Mirror {
	return app.NewMirror(log.Named("mirror"), cfg.Mirror.QueueSize, config.TTLDuration(cfg.Mirror.Timeout, 5*time.Second))
}

// loadConfig falls back to defaults when the file does not exist.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		return cfg, err
	}
	return cfg, nil
}
