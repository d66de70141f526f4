// Package sharestore persists saved heatmap point-sets behind an opaque
// identifier. It is the storage half of the share endpoints served by
// internal/server.
package sharestore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/AssetVal/HeatMap/pkg/share"
)

// ErrNotFound indicates no heatmap exists for the identifier.
var ErrNotFound = eris.New("sharestore: heatmap not found")

// Store is the persistence interface for shared heatmaps.
type Store interface {
	// SaveHeatmap stores a point-set and returns its new identifier.
	SaveHeatmap(ctx context.Context, addresses []share.Address) (string, error)
	// LoadHeatmap returns the point-set stored under id, or ErrNotFound.
	LoadHeatmap(ctx context.Context, id string) ([]share.Address, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool the postgres store uses. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}
