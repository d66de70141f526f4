package sharestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/AssetVal/HeatMap/pkg/share"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS heatmaps (
	id         TEXT PRIMARY KEY,
	addresses  TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveHeatmap(ctx context.Context, addresses []share.Address) (string, error) {
	id := uuid.New().String()

	data, err := json.Marshal(addresses)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal addresses")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO heatmaps (id, addresses, created_at) VALUES (?, ?, ?)`,
		id, string(data), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert heatmap")
	}
	return id, nil
}

func (s *SQLiteStore) LoadHeatmap(ctx context.Context, id string) ([]share.Address, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT addresses FROM heatmaps WHERE id = ?`, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: heatmap %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load heatmap %s", id)
	}

	var addresses []share.Address
	if err := json.Unmarshal([]byte(data), &addresses); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal heatmap %s", id)
	}
	return addresses, nil
}
