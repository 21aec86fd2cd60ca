// Package postgres stores entities in a single table with their attributes as jsonb.
package postgres

import (
	"context"
	"errors"
	"fmt"

	mapperrors "github.com/diwise/entity-mapper/pkg/errors"
	"github.com/diwise/entity-mapper/pkg/store"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/entity-mapper/pkg/types/entities"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("entity-mapper/store/postgres")

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "diwise"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

// Enabled reports whether a database host has been configured
func (c Config) Enabled() bool {
	return c.host != ""
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, err
}

type pgStore struct {
	pool *pgxpool.Pool
}

// New creates the entities table if needed and returns a store backed by the pool
func New(ctx context.Context, pool *pgxpool.Pool) (store.Store, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS entities (
			id          TEXT PRIMARY KEY,
			type        TEXT NOT NULL,
			remote_id   TEXT NOT NULL,
			attributes  JSONB NOT NULL,
			modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`)
	if err != nil {
		return nil, fmt.Errorf("failed to create entities table: %w", err)
	}

	// remote ids are not unique on purpose, see the mapping-cleaner
	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS entities_type_remote_id_idx ON entities (type, remote_id);`)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote id index: %w", err)
	}

	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Find(ctx context.Context, entityType string) (found []types.Entity, err error) {
	ctx, span := tracer.Start(ctx, "find-entities", trace.WithAttributes(attribute.String("entity-type", entityType)))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	rows, err := t.tx.Query(ctx, `SELECT attributes FROM entities WHERE type=$1 ORDER BY remote_id, id`, entityType)
	if err != nil {
		return nil, mapTxError(err)
	}
	defer rows.Close()

	found = make([]types.Entity, 0)

	for rows.Next() {
		var body []byte
		err = rows.Scan(&body)
		if err != nil {
			return nil, err
		}

		var e types.Entity
		e, err = entities.NewFromJSON(body)
		if err != nil {
			return nil, err
		}

		found = append(found, e)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return found, nil
}

func (t *pgTx) Retrieve(ctx context.Context, entityType, remoteID string) (types.Entity, error) {
	var body []byte

	err := t.tx.QueryRow(ctx,
		`SELECT attributes FROM entities WHERE type=$1 AND remote_id=$2 ORDER BY id LIMIT 1`,
		entityType, remoteID,
	).Scan(&body)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mapperrors.NewNotFoundError(fmt.Sprintf("no %s with remote id %s found", entityType, remoteID))
	}

	if err != nil {
		return nil, mapTxError(err)
	}

	return entities.NewFromJSON(body)
}

func (t *pgTx) Save(ctx context.Context, e types.Entity) error {
	body, err := e.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal entity %s: %w", e.ID(), err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO entities (id, type, remote_id, attributes, modified_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET remote_id = EXCLUDED.remote_id, attributes = EXCLUDED.attributes, modified_at = EXCLUDED.modified_at`,
		e.ID(), e.Type(), e.RemoteID(), body,
	)

	return mapTxError(err)
}

func (t *pgTx) Delete(ctx context.Context, e types.Entity) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM entities WHERE id=$1`, e.ID())
	return mapTxError(err)
}

func (t *pgTx) Commit(ctx context.Context) error {
	return mapTxError(t.tx.Commit(ctx))
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func mapTxError(err error) error {
	if errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: %s", mapperrors.ErrTxDone, err.Error())
	}
	return err
}
