package mapping

import (
	"context"
	"fmt"

	"github.com/diwise/entity-mapper/internal/pkg/application/notifications"
	"github.com/diwise/entity-mapper/pkg/mapper"
	"github.com/diwise/entity-mapper/pkg/schema"
	"github.com/diwise/entity-mapper/pkg/store"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

//go:generate moq -rm -out mapping_mock.go . EntityMapper

// EntityMapper reconciles the stored entities of a type with records from a remote source
type EntityMapper interface {
	DecodeRecords(entityType string, body []byte) ([]mapper.Record, error)
	MapEntities(ctx context.Context, entityType string, records []mapper.Record, options ...mapper.MapOption) (*mapper.Result, error)

	QueryEntities(ctx context.Context, entityType string) ([]types.Entity, error)
	RetrieveEntity(ctx context.Context, entityType, remoteID string) (types.Entity, error)

	Start() error
	Stop() error
}

var tracer = otel.Tracer("entity-mapper/mapping")

type app struct {
	registry *schema.Registry
	mapper   *mapper.Mapper
	store    store.Store
	notifier notifications.Notifier
}

func New(ctx context.Context, cfg Config, s store.Store) (EntityMapper, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	var notifier notifications.Notifier

	notifierEndpoint := env.GetVariableOrDefault(ctx, "NOTIFIER_ENDPOINT", cfg.Notifications.Endpoint)
	if notifierEndpoint != "" {
		notifier, err = notifications.NewNotifier(ctx, notifierEndpoint)
		if err != nil {
			return nil, err
		}
	}

	return newApp(registry, s, notifier), nil
}

func newApp(registry *schema.Registry, s store.Store, notifier notifications.Notifier) *app {
	return &app{
		registry: registry,
		mapper:   mapper.New(registry),
		store:    s,
		notifier: notifier,
	}
}

func (a *app) Start() error {
	if a.notifier != nil {
		return a.notifier.Start()
	}
	return nil
}

func (a *app) Stop() error {
	if a.notifier != nil {
		return a.notifier.Stop()
	}
	return nil
}

func (a *app) DecodeRecords(entityType string, body []byte) ([]mapper.Record, error) {
	descriptor, err := a.registry.Lookup(entityType)
	if err != nil {
		return nil, err
	}

	return mapper.DecodeRecords(body, descriptor)
}

// MapEntities runs a single mapping in its own transaction. Nothing is persisted
// unless the whole mapping succeeds.
func (a *app) MapEntities(ctx context.Context, entityType string, records []mapper.Record, options ...mapper.MapOption) (result *mapper.Result, err error) {
	ctx, span := tracer.Start(ctx, "map-entities", trace.WithAttributes(attribute.String(mapper.TraceAttributeEntityType, entityType)))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)

	tx, err := a.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err = a.mapper.Map(ctx, tx, entityType, records, options...)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error("failed to roll back transaction", "err", rbErr.Error())
		}
		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to commit %s mapping: %w", entityType, err)
	}

	log.Info("entities mapped", "type", entityType,
		"created", len(result.Created), "updated", len(result.Updated),
		"deleted", len(result.Deleted), "skipped", result.Skipped,
	)

	if a.notifier != nil {
		a.notifier.EntitiesChanged(ctx, entityType, result)
	}

	return result, nil
}

func (a *app) QueryEntities(ctx context.Context, entityType string) (found []types.Entity, err error) {
	ctx, span := tracer.Start(ctx, "query-entities", trace.WithAttributes(attribute.String(mapper.TraceAttributeEntityType, entityType)))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if _, err = a.registry.Lookup(entityType); err != nil {
		return nil, err
	}

	tx, err := a.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	return tx.Find(ctx, entityType)
}

func (a *app) RetrieveEntity(ctx context.Context, entityType, remoteID string) (e types.Entity, err error) {
	ctx, span := tracer.Start(ctx, "retrieve-entity", trace.WithAttributes(attribute.String(mapper.TraceAttributeEntityType, entityType)))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if _, err = a.registry.Lookup(entityType); err != nil {
		return nil, err
	}

	tx, err := a.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	return tx.Retrieve(ctx, entityType, remoteID)
}
