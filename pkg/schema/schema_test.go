package schema

import (
	"bytes"
	"errors"
	"testing"

	mapperrors "github.com/diwise/entity-mapper/pkg/errors"
	"github.com/matryer/is"
)

func TestLoadRegistry(t *testing.T) {
	is, r := setupRegistryTest(t)

	is.Equal(r.Types(), []string{"Organisation", "Person"})

	p, err := r.Lookup("Person")
	is.NoErr(err)
	is.Equal(p.IDField, "id")
	is.Equal(p.Element, "person")
	is.Equal(len(p.Attributes), 4)
}

func TestAttributeDefaults(t *testing.T) {
	is, r := setupRegistryTest(t)

	p, _ := r.Lookup("Person")

	// missing type should default to string
	is.Equal(p.Attributes[0].Type, String)

	is.Equal(p.Attributes[1].RecordField(), "birth_date")
	is.Equal(p.Attributes[1].Type, Date)

	// number is an alias for decimal
	is.Equal(p.Attributes[2].Type, Decimal)
	is.Equal(p.Attributes[3].RecordField(), "employer")
}

func TestCustomIDField(t *testing.T) {
	is, r := setupRegistryTest(t)

	o, _ := r.Lookup("Organisation")
	is.Equal(o.RemoteIDField(), "orgNo")
}

func TestLookupUnknownType(t *testing.T) {
	is, r := setupRegistryTest(t)

	_, err := r.Lookup("Beach")
	is.True(errors.Is(err, mapperrors.ErrUnknownEntityType))
}

func TestUnknownRelationshipTargetIsRejected(t *testing.T) {
	is := is.New(t)

	_, err := NewRegistry(Entity{
		Type:       "Person",
		Attributes: []Attribute{{Name: "employer", Type: ToOne, Target: "Organisation"}},
	})

	is.True(errors.Is(err, mapperrors.ErrInvalidDescriptor))
}

func TestDuplicateAttributeIsRejected(t *testing.T) {
	is := is.New(t)

	_, err := NewRegistry(Entity{
		Type:       "Person",
		Attributes: []Attribute{{Name: "name"}, {Name: "name", Type: Integer}},
	})

	is.True(errors.Is(err, mapperrors.ErrInvalidDescriptor))
}

func TestReservedAttributeNameIsRejected(t *testing.T) {
	is := is.New(t)

	_, err := NewRegistry(Entity{
		Type:       "Person",
		Attributes: []Attribute{{Name: "remoteId"}},
	})

	is.True(errors.Is(err, mapperrors.ErrInvalidDescriptor))
}

func TestNormalizeTypeTags(t *testing.T) {
	is := is.New(t)

	is.Equal(TypeTag("Number").Normalize(), Decimal)
	is.Equal(TypeTag(" BOOL ").Normalize(), Boolean)
	is.Equal(TypeTag("relationship").Normalize(), ToOne)
	is.Equal(TypeTag("geometry").Normalize(), TypeTag("geometry"))
	is.True(TypeTag("to-many").IsRelationship())
}

func setupRegistryTest(t *testing.T) (*is.I, *Registry) {
	is := is.New(t)
	r, err := LoadRegistry(bytes.NewBufferString(descriptors))
	is.NoErr(err)

	return is, r
}

const descriptors string = `
entities:
  - type: Person
    element: person
    collection: people
    attributes:
      - name: name
      - name: birthDate
        field: birth_date
        type: date
      - name: height
        type: number
      - name: employer
        type: to-one
        target: Organisation
  - type: Organisation
    idField: orgNo
    attributes:
      - name: name
        type: string
`
