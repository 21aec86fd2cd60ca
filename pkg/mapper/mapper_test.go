package mapper

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	mapperrors "github.com/diwise/entity-mapper/pkg/errors"
	"github.com/diwise/entity-mapper/pkg/filter"
	"github.com/diwise/entity-mapper/pkg/schema"
	"github.com/diwise/entity-mapper/pkg/store"
	"github.com/diwise/entity-mapper/pkg/store/memory"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/entity-mapper/pkg/types/entities"
	"github.com/matryer/is"
)

func TestCreateThenUpdateAndDeleteMissing(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	result := mapJSON(is, ctx, m, s, "Person", `[{"id":"1","name":"A"},{"id":"2","name":"B"}]`)
	is.Equal(len(result.Created), 2)
	is.Equal(len(result.Updated), 0)

	people := findAll(is, ctx, s, "Person")
	is.Equal(len(people), 2)
	is.Equal(text(people[0], "name"), "A")
	is.Equal(text(people[1], "name"), "B")

	firstID := people[0].ID()

	result = mapJSON(is, ctx, m, s, "Person", `[{"id":"1","name":"A2"}]`, DeleteMissing(true))
	is.Equal(len(result.Created), 0)
	is.Equal(len(result.Updated), 1)
	is.Equal(len(result.Deleted), 1)
	is.Equal(result.Deleted[0].RemoteID(), "2")

	people = findAll(is, ctx, s, "Person")
	is.Equal(len(people), 1)
	is.Equal(people[0].ID(), firstID) // entity should have been updated in place
	is.Equal(text(people[0], "name"), "A2")
}

func TestMappingTheSameInputIsIdempotent(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)
	input := `[{"id":"1","name":"A"},{"id":"2","name":"B"}]`

	mapJSON(is, ctx, m, s, "Person", input)
	before := findAll(is, ctx, s, "Person")

	result := mapJSON(is, ctx, m, s, "Person", input, DeleteMissing(true))
	is.Equal(len(result.Created), 0)
	is.Equal(len(result.Deleted), 0)

	after := findAll(is, ctx, s, "Person")
	is.Equal(len(after), 2)
	is.Equal(after[0].ID(), before[0].ID())
	is.Equal(after[1].ID(), before[1].ID())
}

func TestMissingEntitiesAreKeptWithoutDeleteMissing(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1"},{"id":"2"}]`)
	result := mapJSON(is, ctx, m, s, "Person", `[{"id":"1"}]`, DeleteMissing(false))

	is.Equal(len(result.Deleted), 0)
	is.Equal(len(findAll(is, ctx, s, "Person")), 2)
}

func TestEmptyInputWithDeleteMissingRemovesEverythingInScope(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1"},{"id":"2"}]`)
	result := mapJSON(is, ctx, m, s, "Person", `[]`, DeleteMissing(true))

	is.Equal(len(result.Deleted), 2)
	is.Equal(len(findAll(is, ctx, s, "Person")), 0)
}

func TestFilterLimitsMatchingAndDeletion(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","owner":"alice","name":"A"},{"id":"2","owner":"bob","name":"B"}]`)

	result := mapJSON(is, ctx, m, s, "Person", `[{"id":"3","owner":"alice"}]`,
		Filter(filter.AttributeEquals("owner", "alice")),
		DeleteMissing(true),
	)

	is.Equal(len(result.Deleted), 1)
	is.Equal(result.Deleted[0].RemoteID(), "1") // only alice's entities are in scope

	people := findAll(is, ctx, s, "Person")
	is.Equal(len(people), 2)
	is.Equal(people[0].RemoteID(), "2")
	is.Equal(text(people[0], "name"), "B")
	is.Equal(people[1].RemoteID(), "3")
}

func TestFilteredMappingIsIdempotentNextToOutOfScopeDuplicate(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	// an entity id that sorts before any generated one
	alice, _ := entities.New("Person", "1",
		entities.ID("00000000-0000-0000-0000-000000000000"),
		entities.Text("owner", "alice"),
	)

	tx, _ := s.Begin(ctx)
	is.NoErr(tx.Save(ctx, alice))
	is.NoErr(tx.Commit(ctx))

	byBob := Filter(filter.AttributeEquals("owner", "bob"))

	result := mapJSON(is, ctx, m, s, "Person", `[{"id":"1","owner":"bob"}]`, byBob)
	is.Equal(len(result.Created), 1)
	bobID := result.Created[0].ID()

	for range 3 {
		result = mapJSON(is, ctx, m, s, "Person", `[{"id":"1","owner":"bob"}]`, byBob, DeleteMissing(true))
		is.Equal(len(result.Created), 0)
		is.Equal(len(result.Deleted), 0)
		is.Equal(result.Entities[0].ID(), bobID)

		people := findAll(is, ctx, s, "Person")
		is.Equal(len(people), 2) // the out of scope entity and the one owned by bob
		is.Equal(text(people[0], "owner"), "alice")
	}
}

func TestNestedRecordsOfTheMappedTypeAreNotDeleted(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","name":"A"},{"id":"2","name":"B"}]`)

	result := mapJSON(is, ctx, m, s, "Person", `[{"id":"1","friends":[{"id":"2","name":"X"}]}]`, DeleteMissing(true))
	is.Equal(len(result.Deleted), 0)
	is.Equal(len(result.Updated), 2)

	people := findAll(is, ctx, s, "Person")
	is.Equal(len(people), 2)
	is.Equal(text(people[1], "name"), "X")
	is.Equal(object(is, people[0], "friends"), []string{people[1].ID()})
}

func TestRecordsWithoutIdentifierAreSkipped(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	result := mapJSON(is, ctx, m, s, "Person", `[{"name":"nobody"},{"id":null},{"id":""},{"id":{"x":1}},{"id":"1"}]`)

	is.Equal(result.Skipped, 4)
	is.Equal(len(result.Entities), 1)
	is.Equal(len(findAll(is, ctx, s, "Person")), 1)
}

func TestNumericIdentifiersMatchTextualOnes(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":17,"name":"A"}]`)
	result := mapJSON(is, ctx, m, s, "Person", `[{"id":"17","name":"B"}]`)

	is.Equal(len(result.Updated), 1)

	people := findAll(is, ctx, s, "Person")
	is.Equal(len(people), 1)
	is.Equal(people[0].RemoteID(), "17")
	is.Equal(text(people[0], "name"), "B")
}

func TestDuplicateRecordsMapToOneEntity(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	result := mapJSON(is, ctx, m, s, "Person", `[{"id":"1","name":"A"},{"id":"1","name":"A2"}]`)

	is.Equal(len(result.Entities), 1)
	is.Equal(len(result.Created), 1)

	people := findAll(is, ctx, s, "Person")
	is.Equal(len(people), 1)
	is.Equal(text(people[0], "name"), "A2") // last record should win
}

func TestValuesAreCoercedToDeclaredTypes(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","age":"42","height":"1.85","active":"yes","birth_date":"2023-05-01T12:00:00.000Z","tags":["a","b"],"extra":{"k":"v"}}]`)

	p := findAll(is, ctx, s, "Person")[0]

	is.Equal(value(is, p, "age"), int64(42))
	is.Equal(value(is, p, "height"), 1.85)
	is.Equal(value(is, p, "active"), true)
	is.True(value(is, p, "birthDate").(time.Time).Equal(time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)))
	is.Equal(value(is, p, "tags"), []string{"a", "b"})
	is.Equal(value(is, p, "extra"), map[string]any{"k": "v"})
}

func TestUnparseableValuesAreLeftUnset(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","age":"abc","birth_date":"not-a-date","name":"A"}]`)

	p := findAll(is, ctx, s, "Person")[0]

	_, ok := p.Attribute("age")
	is.True(!ok)
	_, ok = p.Attribute("birthDate")
	is.True(!ok)
	is.Equal(text(p, "name"), "A") // the rest of the record should still be mapped
}

func TestUnparseableValueDoesNotOverwriteExistingValue(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","age":41}]`)
	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","age":"abc"}]`)

	p := findAll(is, ctx, s, "Person")[0]
	is.Equal(value(is, p, "age"), int64(41))
}

func TestNullRemovesAttribute(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","name":"A","age":41}]`)
	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","name":null}]`)

	p := findAll(is, ctx, s, "Person")[0]

	_, ok := p.Attribute("name")
	is.True(!ok)
	is.Equal(value(is, p, "age"), int64(41)) // absent fields should be left alone
}

func TestNestedToOneRecordIsMappedIntoTarget(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	result := mapJSON(is, ctx, m, s, "Person", `[{"id":"1","employer":{"orgNo":"556","name":"Diwise"}}]`)
	is.Equal(len(result.Created), 2)
	is.Equal(len(result.Entities), 1)

	orgs := findAll(is, ctx, s, "Organisation")
	is.Equal(len(orgs), 1)
	is.Equal(orgs[0].RemoteID(), "556")
	is.Equal(text(orgs[0], "name"), "Diwise")

	p := findAll(is, ctx, s, "Person")[0]
	is.Equal(object(is, p, "employer"), orgs[0].ID())

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","employer":{"orgNo":"556","name":"Diwise AB"}}]`)

	orgs = findAll(is, ctx, s, "Organisation")
	is.Equal(len(orgs), 1) // nested records should update existing targets
	is.Equal(text(orgs[0], "name"), "Diwise AB")
}

func TestToOneByRemoteIdentifier(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Organisation", `[{"orgNo":556,"name":"Diwise"}]`)
	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","employer":"556"},{"id":"2","employer":"999"}]`)

	org := findAll(is, ctx, s, "Organisation")[0]
	people := findAll(is, ctx, s, "Person")

	is.Equal(object(is, people[0], "employer"), org.ID())

	_, ok := people[1].Attribute("employer")
	is.True(!ok) // unknown references should not be linked
}

func TestNestedToManyRecords(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `[{"id":"1","friends":[{"id":"2","name":"B"},{"id":"3","name":"C"}]},{"id":"2","name":"B2"}]`)

	people := findAll(is, ctx, s, "Person")
	is.Equal(len(people), 3) // friend 2 should not be created twice

	is.Equal(object(is, people[0], "friends"), []string{people[1].ID(), people[2].ID()})
	is.Equal(text(people[1], "name"), "B2")
}

func TestElementWrappedRecords(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	mapJSON(is, ctx, m, s, "Person", `{"people":[{"person":{"id":"1","name":"A"}},{"id":"2","name":"B"}]}`)

	people := findAll(is, ctx, s, "Person")
	is.Equal(len(people), 2)
	is.Equal(text(people[0], "name"), "A")
}

func TestUnknownEntityTypeIsAnError(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	tx, _ := s.Begin(ctx)
	defer tx.Rollback(ctx)

	_, err := m.Map(ctx, tx, "Beach", []Record{{"id": "1"}})
	is.True(errors.Is(err, mapperrors.ErrUnknownEntityType))
}

func TestChangesArePendingUntilCommit(t *testing.T) {
	is, ctx, m, s := setupMapperTest(t)

	tx, _ := s.Begin(ctx)
	result, err := m.Map(ctx, tx, "Person", []Record{{"id": "1"}})
	is.NoErr(err)
	is.True(result.HasChanges())
	is.NoErr(tx.Rollback(ctx))

	is.Equal(len(findAll(is, ctx, s, "Person")), 0)
}

func TestDecodeRecords(t *testing.T) {
	is := is.New(t)
	d := schema.Entity{Type: "Person", Collection: "people"}

	records, err := DecodeRecords([]byte(`{"id":"1"}`), d)
	is.NoErr(err)
	is.Equal(len(records), 1)

	records, err = DecodeRecords([]byte(`{"people":[{"id":"1"},{"id":"2"}]}`), d)
	is.NoErr(err)
	is.Equal(len(records), 2)

	_, err = DecodeRecords([]byte(`[1,2]`), d)
	is.True(errors.Is(err, mapperrors.ErrBadRequest))

	_, err = DecodeRecords([]byte(`not json`), d)
	is.True(errors.Is(err, mapperrors.ErrBadRequest))

	_, err = DecodeRecords([]byte(`  `), d)
	is.True(errors.Is(err, mapperrors.ErrBadRequest))
}

func setupMapperTest(t *testing.T) (*is.I, context.Context, *Mapper, store.Store) {
	is := is.New(t)

	registry, err := schema.LoadRegistry(bytes.NewBufferString(descriptors))
	is.NoErr(err)

	return is, context.Background(), New(registry), memory.New()
}

func mapJSON(is *is.I, ctx context.Context, m *Mapper, s store.Store, entityType, body string, options ...MapOption) *Result {
	descriptor, err := m.registry.Lookup(entityType)
	is.NoErr(err)

	records, err := DecodeRecords([]byte(body), descriptor)
	is.NoErr(err)

	tx, err := s.Begin(ctx)
	is.NoErr(err)

	result, err := m.Map(ctx, tx, entityType, records, options...)
	if err != nil {
		tx.Rollback(ctx)
	}
	is.NoErr(err)
	is.NoErr(tx.Commit(ctx))

	return result
}

func findAll(is *is.I, ctx context.Context, s store.Store, entityType string) []types.Entity {
	tx, err := s.Begin(ctx)
	is.NoErr(err)
	defer tx.Rollback(ctx)

	found, err := tx.Find(ctx, entityType)
	is.NoErr(err)

	return found
}

func value(is *is.I, e types.Entity, name string) any {
	a, ok := e.Attribute(name)
	is.True(ok) // attribute should exist

	p, ok := a.(types.Property)
	is.True(ok) // attribute should be a property

	return p.Value()
}

func object(is *is.I, e types.Entity, name string) any {
	a, ok := e.Attribute(name)
	is.True(ok) // relationship should exist

	r, ok := a.(types.Relationship)
	is.True(ok) // attribute should be a relationship

	return r.Object()
}

func text(e types.Entity, name string) string {
	a, ok := e.Attribute(name)
	if !ok {
		return ""
	}
	s, _ := a.(types.Property).Value().(string)
	return s
}

const descriptors string = `
entities:
  - type: Person
    element: person
    collection: people
    attributes:
      - name: name
      - name: owner
      - name: age
        type: integer
      - name: height
        type: decimal
      - name: active
        type: boolean
      - name: birthDate
        field: birth_date
        type: date
      - name: tags
        type: text-list
      - name: extra
        type: json
      - name: employer
        type: to-one
        target: Organisation
      - name: friends
        type: to-many
        target: Person
  - type: Organisation
    idField: orgNo
    attributes:
      - name: name
`
