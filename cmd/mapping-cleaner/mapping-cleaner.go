package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/diwise/entity-mapper/pkg/store/postgres"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	appName string = "mapping-cleaner"
)

// mapping-cleaner removes redundant copies of entities, i.e. entities that share remote
// identifier and contents with a more recently modified entity of the same type
func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	log.Debug("begin clean mappings")

	cfg := postgres.LoadConfiguration(ctx)
	if !cfg.Enabled() {
		log.Error("no database host configured")
		os.Exit(1)
	}

	p, err := postgres.Connect(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "err", err.Error())
		os.Exit(1)
	}
	defer p.Close()

	entityTypes, err := getEntityTypes(ctx, p)
	if err != nil {
		log.Error("failed to get entity types", "err", err.Error())
		os.Exit(1)
	}

	log.Debug("number of entity types", "count", len(entityTypes))

	var totalCount int64 = 0

	for _, entityType := range entityTypes {
		l := log.With(slog.String("entity_type", entityType))

		l.Debug("find duplicates for entity type", slog.Time("start_time", time.Now()))

		dups, err := findDuplicates(ctx, p, entityType)
		if err != nil {
			l.Error("failed to get duplicates", "err", err.Error())
			os.Exit(1)
		}

		if len(dups) == 0 {
			l.Debug("found no duplicates", slog.Time("end_time", time.Now()))
			continue
		}

		totalCount += int64(len(dups))

		err = deleteDuplicates(ctx, p, dups)
		if err != nil {
			l.Error("failed to delete duplicates", "err", err.Error())
			os.Exit(1)
		}

		l.Debug("done cleaning duplicates", slog.Int("count", len(dups)), slog.Time("end_time", time.Now()))
	}

	log.Debug("vacuum")

	err = vacuum(ctx, p)
	if err != nil {
		log.Error("failed to vacuum table", "err", err.Error())
		os.Exit(1)
	}

	log.Info("done cleaning", slog.Int64("total", totalCount))
}

func getEntityTypes(ctx context.Context, p *pgxpool.Pool) ([]string, error) {
	rows, err := p.Query(ctx, `SELECT DISTINCT type FROM entities ORDER BY type;`)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// findDuplicates returns the ids of redundant copies: entities that share remote id and
// every attribute with a more recently modified entity of the type. Entities with the
// same remote id but different contents, e.g. ones created by mappings with different
// filters, are left alone, as are copies that some entity still links to.
func findDuplicates(ctx context.Context, p *pgxpool.Pool, entityType string) ([]string, error) {
	sql := `
		SELECT dups.id FROM (
			SELECT id, ROW_NUMBER() OVER(PARTITION BY type, remote_id, attributes - 'id' ORDER BY modified_at DESC, id) AS row
			FROM entities
			WHERE type=$1
		) dups
		WHERE dups.row > 1
		AND NOT EXISTS (
			SELECT 1 FROM entities r
			WHERE r.id <> dups.id AND strpos(r.attributes::text, '"' || dups.id || '"') > 0
		)
		ORDER BY dups.id;`

	rows, err := p.Query(ctx, sql, entityType)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func deleteDuplicates(ctx context.Context, p *pgxpool.Pool, dups []string) error {
	if len(dups) == 0 {
		return nil
	}

	tx, err := p.Begin(ctx)
	if err != nil {
		return err
	}

	for _, d := range dups {
		_, err := tx.Exec(ctx, `DELETE FROM entities WHERE id=$1;`, d)
		if err != nil {
			tx.Rollback(ctx)
			return err
		}
	}

	return tx.Commit(ctx)
}

func vacuum(ctx context.Context, p *pgxpool.Pool) error {
	_, err := p.Exec(ctx, "VACUUM ANALYZE entities;")
	return err
}
