package sharestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/AssetVal/HeatMap/pkg/share"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS heatmaps (
	id         TEXT PRIMARY KEY,
	addresses  JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveHeatmap(ctx context.Context, addresses []share.Address) (string, error) {
	id := uuid.New().String()

	data, err := json.Marshal(addresses)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal addresses")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO heatmaps (id, addresses, created_at) VALUES ($1, $2, $3)`,
		id, data, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert heatmap")
	}
	return id, nil
}

func (s *PostgresStore) LoadHeatmap(ctx context.Context, id string) ([]share.Address, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT addresses FROM heatmaps WHERE id = $1`, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: heatmap %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load heatmap %s", id)
	}

	var addresses []share.Address
	if err := json.Unmarshal(data, &addresses); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal heatmap %s", id)
	}
	return addresses, nil
}
