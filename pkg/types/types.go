package types

// EntityFragment is the attribute carrying part of an entity
type EntityFragment interface {
	ForEachAttribute(func(attributeType, attributeName string, contents any)) error
	Attribute(name string) (Attribute, bool)
	MarshalJSON() ([]byte, error)
}

// Entity is a locally persisted object, addressable by its internal identity and
// matched against remote records using its remote identifier
type Entity interface {
	EntityFragment

	ID() string
	Type() string
	RemoteID() string

	SetAttribute(name string, value Attribute)
	RemoveAttribute(name string)
}

type Attribute interface {
	Type() string
}

type Property interface {
	Attribute
	Value() any
}

type Relationship interface {
	Attribute
	Object() any
}

const (
	PropertyType     string = "Property"
	RelationshipType string = "Relationship"
)
