package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
	"itef-puzzle-service/internal/app"
	"itef-puzzle-service/internal/domain"
	"itef-puzzle-service/internal/infra/memory"
	pgstore "itef-puzzle-service/internal/infra/postgres"
	pgmigrations "itef-puzzle-service/internal/infra/postgres/migrations"
	infraredis "itef-puzzle-service/internal/infra/redis"
)

func TestLeaderboardEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	if err := pgstore.SeedCatalog(ctx, pool, memory.DefaultCatalog()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	mirror := app.NewMirror(zap.NewNop(), 64, 5*time.Second)
	defer mirror.Close()
	catalog := infraredis.NewCatalogRepository(redisClient, pgstore.NewCatalogLoader(pool), 5*time.Minute)
	service := app.NewService(
		infraredis.NewLocalStore(redisClient, time.Hour),
		pgstore.NewRemoteStore(pool),
		catalog,
		mirror,
		zap.NewNop(),
		app.Options{ExcludeParticipant: "master@example.com"},
	)

	alice := service.Device("alice-phone")
	if _, err := alice.Identity.Register(ctx, "Alice", "alice@example.com", "12345678"); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	for _, p := range memory.DefaultCatalog() {
		score := 95
		if _, err := alice.Progress.RecordAttempt(ctx, domain.AttemptInput{PuzzleID: p.ID, IsCorrect: true, Score: &score}); err != nil {
			t.Fatalf("record %s: %v", p.ID, err)
		}
	}

	bob := service.Device("bob-laptop")
	if _, err := bob.Identity.Register(ctx, "Bob", "bob@example.com", "87654321"); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := bob.Progress.RecordAttempt(ctx, domain.AttemptInput{PuzzleID: "thermodynamics", IsCorrect: false}); err != nil {
			t.Fatalf("record bob: %v", err)
		}
	}

	if err := mirror.Flush(ctx); err != nil {
		t.Fatalf("flush mirror: %v", err)
	}

	board := service.Leaderboard()
	champions := board.Winners(ctx, nil, "")
	if len(champions) != 1 || champions[0].Email != "alice@example.com" || champions[0].Score != 95 {
		t.Fatalf("expected alice as the only champion, got %+v", champions)
	}

	attendees := board.Attendees(ctx, nil, "thermodynamics")
	if len(attendees) != 2 {
		t.Fatalf("expected two attendees on thermodynamics, got %+v", attendees)
	}
	for _, row := range attendees {
		if row.Email == "bob@example.com" && row.TotalAttempts != 2 {
			t.Fatalf("expected bob with 2 attempts, got %+v", row)
		}
	}

	puzzleWinners := board.Winners(ctx, nil, "thermodynamics")
	if len(puzzleWinners) != 1 || puzzleWinners[0].Email != "alice@example.com" {
		t.Fatalf("expected alice as the thermodynamics winner, got %+v", puzzleWinners)
	}

	roster := board.Roster(ctx, "")
	if len(roster) != 2 || roster[0].Email != "bob@example.com" || roster[0].AttemptCount != 2 {
		t.Fatalf("expected bob first in roster by attempt count, got %+v", roster)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "puzzle", "POSTGRES_PASSWORD": "puzzlepass", "POSTGRES_DB": "puzzledb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://puzzle:puzzlepass@%s:%s/puzzledb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
