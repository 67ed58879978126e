/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
)

const (
	createServersSQL = `
CREATE TABLE IF NOT EXISTS %s (
	key            TEXT PRIMARY KEY,
	address        TEXT NOT NULL,
	port           INTEGER NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	version        TEXT NOT NULL DEFAULT '',
	protocol_id    INTEGER NOT NULL DEFAULT 0,
	players_online INTEGER NOT NULL DEFAULT 0,
	players_max    INTEGER NOT NULL DEFAULT 0,
	players        TEXT NOT NULL DEFAULT '',
	country        TEXT NOT NULL DEFAULT '',
	asn            BIGINT NOT NULL DEFAULT 0,
	as_org         TEXT NOT NULL DEFAULT '',
	scan_id        TEXT NOT NULL DEFAULT '',
	last_seen      TIMESTAMPTZ NOT NULL
)`

	upsertServerSQL = `
INSERT INTO %s (
	key,
	address,
	port,
	description,
	version,
	protocol_id,
	players_online,
	players_max,
	players,
	country,
	asn,
	as_org,
	scan_id,
	last_seen
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
ON CONFLICT (key) DO UPDATE SET
	description = EXCLUDED.description,
	version = EXCLUDED.version,
	protocol_id = EXCLUDED.protocol_id,
	players_online = EXCLUDED.players_online,
	players_max = EXCLUDED.players_max,
	players = EXCLUDED.players,
	country = EXCLUDED.country,
	asn = EXCLUDED.asn,
	as_org = EXCLUDED.as_org,
	scan_id = EXCLUDED.scan_id,
	last_seen = EXCLUDED.last_seen`
)

// execer is the subset of *pgxpool.Pool used for writes.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore upserts records into one table keyed by "address:port".
type PostgresStore struct {
	db        execer
	close     func()
	upsertSQL string
	logger    logger.Logger
}

// NewPostgresStore opens a pool and creates the table if it does not exist.
func NewPostgresStore(ctx context.Context, connString, table string, log logger.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to initialize pool: %w", err)
	}

	s := newPostgresStore(pool, pool.Close, table, log)

	if err := s.EnsureSchema(ctx, table); err != nil {
		pool.Close()

		return nil, err
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("table", table).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connected to Postgres")

	return s, nil
}

func newPostgresStore(db execer, closeFn func(), table string, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:        db,
		close:     closeFn,
		upsertSQL: fmt.Sprintf(upsertServerSQL, pgx.Identifier{table}.Sanitize()),
		logger:    log,
	}
}

// EnsureSchema creates the servers table.
func (s *PostgresStore) EnsureSchema(ctx context.Context, table string) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createServersSQL, pgx.Identifier{table}.Sanitize())); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", table, err)
	}

	return nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, key string, r models.ServerRecord) error {
	_, err := s.db.Exec(ctx, s.upsertSQL,
		key,
		r.Address,
		int32(r.Port),
		r.Description,
		r.Version,
		r.ProtocolID,
		r.PlayersOnline,
		r.PlayersMax,
		r.Players,
		r.Country,
		int64(r.ASN),
		r.ASOrg,
		r.ScanID,
		r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", ErrPersistence, key, err)
	}

	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}

	return nil
}
