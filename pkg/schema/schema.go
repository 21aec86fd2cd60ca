// Package schema holds the statically declared entity descriptors that tell the
// mapper which record fields to read and how to interpret their values.
package schema

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/diwise/entity-mapper/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

type TypeTag string

const (
	String   TypeTag = "string"
	TextList TypeTag = "text-list"
	Integer  TypeTag = "integer"
	Decimal  TypeTag = "decimal"
	Boolean  TypeTag = "boolean"
	Date     TypeTag = "date"
	ToOne    TypeTag = "to-one"
	ToMany   TypeTag = "to-many"
)

var aliases = map[string]TypeTag{
	"text":         String,
	"int":          Integer,
	"number":       Decimal,
	"double":       Decimal,
	"float":        Decimal,
	"bool":         Boolean,
	"datetime":     Date,
	"relationship": ToOne,
}

// Normalize folds case and known aliases into the canonical tag
func (t TypeTag) Normalize() TypeTag {
	lower := strings.ToLower(strings.TrimSpace(string(t)))
	if canonical, ok := aliases[lower]; ok {
		return canonical
	}
	return TypeTag(lower)
}

func (t TypeTag) IsRelationship() bool {
	n := t.Normalize()
	return n == ToOne || n == ToMany
}

const DefaultIDField string = "id"

var reservedNames = []string{"id", "type", "remoteId"}

type Attribute struct {
	Name   string  `yaml:"name"`
	Field  string  `yaml:"field"`
	Type   TypeTag `yaml:"type"`
	Target string  `yaml:"target"`
}

// RecordField returns the name of the record field that holds this attribute's value
func (a Attribute) RecordField() string {
	if a.Field != "" {
		return a.Field
	}
	return a.Name
}

type Entity struct {
	Type       string      `yaml:"type"`
	IDField    string      `yaml:"idField"`
	Element    string      `yaml:"element"`
	Collection string      `yaml:"collection"`
	Attributes []Attribute `yaml:"attributes"`
}

func (e Entity) RemoteIDField() string {
	if e.IDField != "" {
		return e.IDField
	}
	return DefaultIDField
}

type Registry struct {
	entities map[string]Entity
}

// NewRegistry validates the descriptors and returns a read only registry. All
// relationship targets must be part of the same registry.
func NewRegistry(descriptors ...Entity) (*Registry, error) {
	r := &Registry{
		entities: make(map[string]Entity, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.Type == "" {
			return nil, errors.NewInvalidDescriptorError("entity descriptors must declare a type")
		}

		if _, exists := r.entities[d.Type]; exists {
			return nil, errors.NewInvalidDescriptorError(fmt.Sprintf("entity type %s is declared more than once", d.Type))
		}

		d.IDField = d.RemoteIDField()

		names := map[string]bool{}
		attributes := make([]Attribute, 0, len(d.Attributes))

		for _, a := range d.Attributes {
			if a.Name == "" {
				return nil, errors.NewInvalidDescriptorError(fmt.Sprintf("attribute without name in %s", d.Type))
			}

			if isReserved(a.Name) {
				return nil, errors.NewInvalidDescriptorError(fmt.Sprintf("attribute name %s in %s is reserved", a.Name, d.Type))
			}

			if names[a.Name] {
				return nil, errors.NewInvalidDescriptorError(fmt.Sprintf("attribute %s is declared more than once in %s", a.Name, d.Type))
			}
			names[a.Name] = true

			a.Type = a.Type.Normalize()
			if a.Type == "" {
				a.Type = String
			}

			if a.Type.IsRelationship() && a.Target == "" {
				return nil, errors.NewInvalidDescriptorError(fmt.Sprintf("relationship %s in %s has no target", a.Name, d.Type))
			}

			attributes = append(attributes, a)
		}

		d.Attributes = attributes
		r.entities[d.Type] = d
	}

	for _, d := range r.entities {
		for _, a := range d.Attributes {
			if !a.Type.IsRelationship() {
				continue
			}
			if _, ok := r.entities[a.Target]; !ok {
				return nil, errors.NewInvalidDescriptorError(
					fmt.Sprintf("relationship %s in %s targets unknown entity type %s", a.Name, d.Type, a.Target),
				)
			}
		}
	}

	return r, nil
}

func (r *Registry) Lookup(entityType string) (Entity, error) {
	d, ok := r.entities[entityType]
	if !ok {
		return Entity{}, errors.NewUnknownEntityTypeError(entityType)
	}
	return d, nil
}

// Types returns the registered entity types in alphabetical order
func (r *Registry) Types() []string {
	t := make([]string, 0, len(r.entities))
	for k := range r.entities {
		t = append(t, k)
	}
	sort.Strings(t)
	return t
}

type descriptorFile struct {
	Entities []Entity `yaml:"entities"`
}

// LoadRegistry reads descriptors from a yaml document with a top level entities list
func LoadRegistry(data io.Reader) (*Registry, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	f := &descriptorFile{}
	err = yaml.Unmarshal(buf, f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity descriptors: %w", err)
	}

	return NewRegistry(f.Entities...)
}

func isReserved(name string) bool {
	for _, r := range reservedNames {
		if r == name {
			return true
		}
	}
	return false
}
