package entities

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/entity-mapper/pkg/types/properties"
	"github.com/diwise/entity-mapper/pkg/types/relationships"
	"github.com/google/uuid"
)

type EntityDecoratorFunc func(e *EntityImpl)

// New creates an entity of the given type with a freshly generated internal identity
// unless one is provided through the ID decorator
func New(entityType, remoteID string, decorators ...EntityDecoratorFunc) (types.Entity, error) {
	if entityType == "" {
		return nil, fmt.Errorf("entities must have a type")
	}

	e := &EntityImpl{
		entityID:      uuid.NewString(),
		entityType:    entityType,
		remoteID:      remoteID,
		properties:    map[string]types.Property{},
		relationships: map[string]types.Relationship{},
	}

	for _, decorator := range decorators {
		decorator(e)
	}

	return e, nil
}

func NewFromJSON(body []byte) (types.Entity, error) {
	e := &EntityImpl{}
	err := json.Unmarshal(body, e)

	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	if e.ID() == "" || e.Type() == "" {
		return nil, fmt.Errorf("failed to parse entity")
	}

	return e, nil
}

func NewFromSlice(body []byte) ([]types.Entity, error) {
	impls := []*EntityImpl{}
	err := json.Unmarshal(body, &impls)
	if err != nil {
		return nil, err
	}

	arr := make([]types.Entity, 0, len(impls))

	for _, e := range impls {
		arr = append(arr, e)
	}

	return arr, nil
}

// Clone returns a copy of the entity that can be modified without affecting the original
func Clone(e types.Entity) (types.Entity, error) {
	if impl, ok := e.(*EntityImpl); ok {
		return impl.clone(), nil
	}

	b, err := e.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity for cloning: %w", err)
	}

	return NewFromJSON(b)
}

type EntityImpl struct {
	entityID   string
	entityType string
	remoteID   string

	properties    map[string]types.Property
	relationships map[string]types.Relationship
}

func (e *EntityImpl) ID() string {
	return e.entityID
}

func (e *EntityImpl) Type() string {
	return e.entityType
}

func (e *EntityImpl) RemoteID() string {
	return e.remoteID
}

func (e *EntityImpl) Attribute(name string) (types.Attribute, bool) {
	if p, ok := e.properties[name]; ok {
		return p, true
	}

	if r, ok := e.relationships[name]; ok {
		return r, true
	}

	return nil, false
}

func (e *EntityImpl) SetAttribute(name string, value types.Attribute) {
	switch v := value.(type) {
	case types.Relationship:
		delete(e.properties, name)
		e.relationships[name] = v
	case types.Property:
		delete(e.relationships, name)
		e.properties[name] = v
	}
}

func (e *EntityImpl) RemoveAttribute(name string) {
	delete(e.properties, name)
	delete(e.relationships, name)
}

func (e *EntityImpl) ForEachAttribute(callback func(attributeType, attributeName string, contents any)) error {

	for k, v := range e.properties {
		callback(v.Type(), k, v)
	}

	for k, v := range e.relationships {
		callback(v.Type(), k, v)
	}

	return nil
}

func (e *EntityImpl) clone() *EntityImpl {
	c := &EntityImpl{
		entityID:      e.entityID,
		entityType:    e.entityType,
		remoteID:      e.remoteID,
		properties:    make(map[string]types.Property, len(e.properties)),
		relationships: make(map[string]types.Relationship, len(e.relationships)),
	}

	// attribute values are replaced, never mutated, so sharing them is safe
	for k, v := range e.properties {
		c.properties[k] = v
	}

	for k, v := range e.relationships {
		c.relationships[k] = v
	}

	return c
}

func (e *EntityImpl) MarshalJSON() ([]byte, error) {
	contents := map[string]any{
		"id":       e.ID(),
		"type":     e.Type(),
		"remoteId": e.RemoteID(),
	}

	for k, p := range e.properties {
		contents[k] = p
	}

	for k, r := range e.relationships {
		contents[k] = r
	}

	return json.Marshal(&contents)
}

func (e *EntityImpl) UnmarshalJSON(data []byte) error {
	// numbers are kept as json.Number so that integers keep their precision
	var contents map[string]any
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	err := d.Decode(&contents)
	if err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	header := struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		RemoteID string `json:"remoteId"`
	}{}

	err = json.Unmarshal(data, &header)
	if err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	// Delete the properties we have already dealt with
	delete(contents, "id")
	delete(contents, "type")
	delete(contents, "remoteId")

	e.entityID = header.ID
	e.entityType = header.Type
	e.remoteID = header.RemoteID

	e.properties = map[string]types.Property{}
	e.relationships = map[string]types.Relationship{}

	for k, v := range contents {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}

		objType, ok := obj["type"].(string)
		if !ok {
			continue
		}

		if objType == types.PropertyType {
			p, err := properties.UnmarshalP(obj)
			if err != nil {
				return fmt.Errorf("failed to unmarshal property %s: %w", k, err)
			}
			e.properties[k] = p
		} else if objType == types.RelationshipType {
			r, err := relationships.UnmarshalR(obj)
			if err != nil {
				return fmt.Errorf("failed to unmarshal relationship %s: %w", k, err)
			}
			e.relationships[k] = r
		}
	}

	return nil
}

// ID overrides the generated internal identity, e.g. when an entity is loaded from storage
func ID(entityID string) EntityDecoratorFunc {
	return func(e *EntityImpl) {
		e.entityID = entityID
	}
}

func P(name string, value types.Property) EntityDecoratorFunc {
	return func(e *EntityImpl) { e.properties[name] = value }
}

func R(name string, value types.Relationship) EntityDecoratorFunc {
	return func(e *EntityImpl) { e.relationships[name] = value }
}
