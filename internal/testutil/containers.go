// Package testutil starts disposable backing services for integration tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cloo-solutions/agentkb/internal/database"
)

const (
	pgImage     = "pgvector/pgvector:0.8.1-pg18"
	pgCreds     = "agentkb"
	rustfsImage = "rustfs/rustfs:latest"
	redisImage  = "redis:7-alpine"

	// RustFSAccessKey and RustFSSecretKey are the credentials the RustFS
	// container is started with.
	RustFSAccessKey = "rustfsadmin"
	RustFSSecretKey = "rustfsadmin"
)

// Service is a started container and the host:port its service port maps to.
type Service struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

func (s *Service) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(s.Container)
}

func (s *Service) Addr() string {
	return s.Host + ":" + s.Port
}

func start(ctx context.Context, t *testing.T, port nat.Port, req testcontainers.ContainerRequest) *Service {
	t.Helper()
	req.ExposedPorts = []string{string(port)}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("%s port: %v", req.Image, err)
	}
	return &Service{Container: c, Host: host, Port: mapped.Port()}
}

type PostgresContainer struct {
	*Service
}

// NewPostgresContainer starts Postgres with the pgvector extension available.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	return &PostgresContainer{start(ctx, t, "5432/tcp", testcontainers.ContainerRequest{
		Image:        pgImage,
		Env: map[string]string{
			"POSTGRES_USER":     pgCreds,
			"POSTGRES_PASSWORD": pgCreds,
			"POSTGRES_DB":       pgCreds,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(time.Minute),
	})}
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgCreds, pgCreds, pc.Addr(), pgCreds)
}

type RustFSContainer struct {
	*Service
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	return &RustFSContainer{start(ctx, t, "9000/tcp", testcontainers.ContainerRequest{
		Image:        rustfsImage,
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSAccessKey,
			"RUSTFS_SECRET_KEY": RustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	})}
}

func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.Addr()
}

type RedisContainer struct {
	*Service
}

func NewRedisContainer(ctx context.Context, t *testing.T) *RedisContainer {
	return &RedisContainer{start(ctx, t, "6379/tcp", testcontainers.ContainerRequest{
		Image:        redisImage,
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})}
}

// NewTestPool migrates the container's database with the files in
// migrationsDir and returns a pool connected to it.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	pool, err := database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 8})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	dir, err := filepath.Abs(migrationsDir)
	if err != nil {
		pool.Close()
		t.Fatalf("migrations dir: %v", err)
	}
	if err := database.Migrate(pc.ConnectionString(), "file://"+filepath.ToSlash(dir)); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	return pool
}
