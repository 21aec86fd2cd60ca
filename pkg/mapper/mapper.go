// Package mapper reconciles a set of locally stored entities with an array of records
// received from a remote source.
package mapper

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/diwise/entity-mapper/pkg/coerce"
	"github.com/diwise/entity-mapper/pkg/filter"
	"github.com/diwise/entity-mapper/pkg/schema"
	"github.com/diwise/entity-mapper/pkg/store"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/entity-mapper/pkg/types/entities"
	"github.com/diwise/entity-mapper/pkg/types/relationships"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("entity-mapper/mapper")

const (
	TraceAttributeEntityType  string = "entity-type"
	TraceAttributeRecordCount string = "record-count"
)

// Record is a single decoded object from a remote response
type Record = map[string]any

// assignFunc applies the raw value of an attribute to an entity
type assignFunc func(ctx context.Context, s *session, e types.Entity, a schema.Attribute, raw any) error

type Mapper struct {
	registry *schema.Registry
	coercer  *coerce.Coercer
	handlers map[schema.TypeTag]assignFunc
}

type Option func(*Mapper)

func WithCoercer(c *coerce.Coercer) Option {
	return func(m *Mapper) {
		m.coercer = c
	}
}

func New(registry *schema.Registry, options ...Option) *Mapper {
	m := &Mapper{
		registry: registry,
		coercer:  coerce.New(),
	}

	for _, option := range options {
		option(m)
	}

	m.handlers = map[schema.TypeTag]assignFunc{
		schema.ToOne:  m.assignToOne,
		schema.ToMany: m.assignToMany,
	}

	return m
}

type mapOptions struct {
	filter        filter.Predicate
	deleteMissing bool
}

type MapOption func(*mapOptions)

// Filter limits the existing entities that are considered for matching and deletion
func Filter(p filter.Predicate) MapOption {
	return func(o *mapOptions) {
		o.filter = p
	}
}

// DeleteMissing removes in scope entities whose remote id is absent from the records
func DeleteMissing(enabled bool) MapOption {
	return func(o *mapOptions) {
		o.deleteMissing = enabled
	}
}

// Map creates or updates one entity per record and stages the changes in tx. It is up
// to the caller to commit or roll back the transaction.
func (m *Mapper) Map(ctx context.Context, tx store.Tx, entityType string, records []Record, options ...MapOption) (result *Result, err error) {
	ctx, span := tracer.Start(ctx, "map-records",
		trace.WithAttributes(
			attribute.String(TraceAttributeEntityType, entityType),
			attribute.Int(TraceAttributeRecordCount, len(records)),
		),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	opts := &mapOptions{}
	for _, option := range options {
		option(opts)
	}

	descriptor, err := m.registry.Lookup(entityType)
	if err != nil {
		return nil, err
	}

	log := logging.GetFromContext(ctx)

	s := &session{
		tx:        tx,
		indexes:   map[string]map[string]types.Entity{},
		found:     map[string][]types.Entity{},
		existing:  map[string]bool{},
		tracked:   map[string]bool{},
		scopeType: entityType,
		result:    &Result{},
	}

	s.scope, err = m.buildScope(ctx, s, descriptor, opts.filter)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}

	for idx, record := range records {
		record = unwrapElement(record, descriptor)

		remoteID, ok := remoteIdentifier(record, descriptor)
		if !ok {
			log.Debug("skipping record without remote identifier", "index", idx, "type", entityType, "field", descriptor.RemoteIDField())
			s.result.Skipped++
			continue
		}

		var e types.Entity
		e, err = s.scoped(entityType, remoteID)
		if err != nil {
			return nil, err
		}

		err = m.apply(ctx, s, descriptor, e, record)
		if err != nil {
			return nil, err
		}

		if !seen[remoteID] {
			seen[remoteID] = true
			s.result.Entities = append(s.result.Entities, e)
		}
	}

	if opts.deleteMissing {
		missing := make([]types.Entity, 0)
		for remoteID, e := range s.scope {
			// entities saved through a nested record are part of the input as well
			if !seen[remoteID] && !s.tracked[e.ID()] {
				missing = append(missing, e)
			}
		}

		sort.Slice(missing, func(i, j int) bool { return missing[i].RemoteID() < missing[j].RemoteID() })

		for _, e := range missing {
			err = tx.Delete(ctx, e)
			if err != nil {
				return nil, fmt.Errorf("failed to delete %s %s: %w", entityType, e.RemoteID(), err)
			}

			s.result.Deleted = append(s.result.Deleted, e)
		}
	}

	log.Debug("records mapped", "type", entityType,
		"created", len(s.result.Created), "updated", len(s.result.Updated),
		"deleted", len(s.result.Deleted), "skipped", s.result.Skipped,
	)

	return s.result, nil
}

// buildScope indexes the existing entities of the type by remote id, keeping only
// those accepted by the filter. Every stored entity is tested, so an in scope entity
// is found even when an out of scope one shares its remote id.
func (m *Mapper) buildScope(ctx context.Context, s *session, descriptor schema.Entity, p filter.Predicate) (map[string]types.Entity, error) {
	err := s.load(ctx, descriptor.Type)
	if err != nil {
		return nil, err
	}

	scope := map[string]types.Entity{}

	for _, e := range s.found[descriptor.Type] {
		remoteID := e.RemoteID()
		if _, duplicate := scope[remoteID]; duplicate {
			continue
		}

		if p != nil {
			match, err := p.Match(ctx, e)
			if err != nil {
				return nil, fmt.Errorf("failed to apply filter to %s: %w", e.ID(), err)
			}
			if !match {
				continue
			}
		}

		scope[remoteID] = e
	}

	return scope, nil
}

// apply assigns every declared attribute present in the record and stages the entity
func (m *Mapper) apply(ctx context.Context, s *session, descriptor schema.Entity, e types.Entity, record Record) error {
	for _, a := range descriptor.Attributes {
		raw, present := record[a.RecordField()]
		if !present {
			continue
		}

		if raw == nil {
			e.RemoveAttribute(a.Name)
			continue
		}

		assign, ok := m.handlers[a.Type]
		if !ok {
			assign = m.assignProperty
		}

		err := assign(ctx, s, e, a, raw)
		if err != nil {
			return err
		}
	}

	err := s.tx.Save(ctx, e)
	if err != nil {
		return fmt.Errorf("failed to save %s %s: %w", e.Type(), e.RemoteID(), err)
	}

	s.track(e)

	return nil
}

func (m *Mapper) assignProperty(ctx context.Context, s *session, e types.Entity, a schema.Attribute, raw any) error {
	p, ok := m.coercer.Coerce(a.Type, raw)
	if !ok {
		logging.GetFromContext(ctx).Debug("ignoring value that could not be coerced",
			"type", e.Type(), "attribute", a.Name, "tag", string(a.Type))
		return nil
	}

	e.SetAttribute(a.Name, p)
	return nil
}

func (m *Mapper) assignToOne(ctx context.Context, s *session, e types.Entity, a schema.Attribute, raw any) error {
	target, err := m.resolve(ctx, s, a.Target, raw)
	if err != nil {
		return err
	}

	if target != nil {
		e.SetAttribute(a.Name, relationships.NewToOne(target))
	}

	return nil
}

func (m *Mapper) assignToMany(ctx context.Context, s *session, e types.Entity, a schema.Attribute, raw any) error {
	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}

	targets := make([]types.Entity, 0, len(items))

	for _, item := range items {
		target, err := m.resolve(ctx, s, a.Target, item)
		if err != nil {
			return err
		}

		if target != nil {
			targets = append(targets, target)
		}
	}

	e.SetAttribute(a.Name, relationships.NewToMany(a.Target, targets))

	return nil
}

// resolve maps a nested record into the target type, or looks up an existing target
// when the value is a bare remote identifier. A nil entity means nothing to link.
// Targets of the mapped type itself are matched within the scope, like top level records.
func (m *Mapper) resolve(ctx context.Context, s *session, targetType string, raw any) (types.Entity, error) {
	descriptor, err := m.registry.Lookup(targetType)
	if err != nil {
		return nil, err
	}

	err = s.load(ctx, targetType)
	if err != nil {
		return nil, err
	}

	index := s.index(targetType)

	inScope := targetType == s.scopeType

	nested, isRecord := raw.(map[string]any)
	if !isRecord {
		remoteID, ok := identifierValue(raw)
		if !ok {
			return nil, nil
		}
		if e, ok := s.scope[remoteID]; ok && inScope {
			return e, nil
		}
		return index[remoteID], nil
	}

	nested = unwrapElement(nested, descriptor)

	remoteID, ok := remoteIdentifier(nested, descriptor)
	if !ok {
		return nil, nil
	}

	var target types.Entity

	if inScope {
		target, err = s.scoped(targetType, remoteID)
		if err != nil {
			return nil, err
		}
	} else {
		target, ok = index[remoteID]
		if !ok {
			target, err = entities.New(targetType, remoteID)
			if err != nil {
				return nil, err
			}
			index[remoteID] = target
		}
	}

	err = m.apply(ctx, s, descriptor, target, nested)
	if err != nil {
		return nil, err
	}

	return target, nil
}

func remoteIdentifier(record Record, descriptor schema.Entity) (string, bool) {
	raw, ok := record[descriptor.RemoteIDField()]
	if !ok {
		return "", false
	}
	return identifierValue(raw)
}

func identifierValue(raw any) (string, bool) {
	if raw == nil {
		return "", false
	}

	switch raw.(type) {
	case map[string]any, []any, bool:
		return "", false
	}

	id, ok := coerce.ToString(raw)
	if !ok {
		return "", false
	}

	id = strings.TrimSpace(id)
	return id, id != ""
}

// unwrapElement handles records that wrap their fields in a root element, such as
// {"person": {"id": 1}}
func unwrapElement(record Record, descriptor schema.Entity) Record {
	if descriptor.Element == "" || len(record) != 1 {
		return record
	}

	if inner, ok := record[descriptor.Element].(map[string]any); ok {
		return inner
	}

	return record
}

type session struct {
	tx      store.Tx
	indexes map[string]map[string]types.Entity
	found   map[string][]types.Entity

	scopeType string
	scope     map[string]types.Entity

	existing map[string]bool
	tracked  map[string]bool
	result   *Result
}

// scoped returns the in scope entity with the remote id. Entities created earlier in the
// same session, e.g. through a nested record, are reused before a new one is created.
func (s *session) scoped(entityType, remoteID string) (types.Entity, error) {
	if e, ok := s.scope[remoteID]; ok {
		return e, nil
	}

	idx := s.index(entityType)

	if e, ok := idx[remoteID]; ok && !s.existing[e.ID()] {
		s.scope[remoteID] = e
		return e, nil
	}

	e, err := entities.New(entityType, remoteID)
	if err != nil {
		return nil, err
	}

	s.scope[remoteID] = e
	idx[remoteID] = e

	return e, nil
}

func (s *session) index(entityType string) map[string]types.Entity {
	idx, ok := s.indexes[entityType]
	if !ok {
		idx = map[string]types.Entity{}
		s.indexes[entityType] = idx
	}
	return idx
}

// load fills the index of a type from the transaction the first time it is needed
func (s *session) load(ctx context.Context, entityType string) error {
	if _, loaded := s.indexes[entityType]; loaded {
		return nil
	}

	found, err := s.tx.Find(ctx, entityType)
	if err != nil {
		return fmt.Errorf("failed to load existing %s entities: %w", entityType, err)
	}

	s.found[entityType] = found

	idx := s.index(entityType)
	for _, e := range found {
		if _, duplicate := idx[e.RemoteID()]; duplicate {
			logging.GetFromContext(ctx).Debug("remote identifier shared by several entities",
				"type", entityType, "remote_id", e.RemoteID(), "entity_id", e.ID())
			continue
		}
		idx[e.RemoteID()] = e
	}

	for _, e := range found {
		s.existing[e.ID()] = true
	}

	return nil
}

// track records an entity as created or updated the first time it is saved
func (s *session) track(e types.Entity) {
	if s.tracked[e.ID()] {
		return
	}
	s.tracked[e.ID()] = true

	if s.existing[e.ID()] {
		s.result.Updated = append(s.result.Updated, e)
	} else {
		s.result.Created = append(s.result.Created, e)
	}
}
