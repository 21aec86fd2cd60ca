// Package relationships links an entity to the entities that its remote record refers to.
// A link stores the internal identity of the target together with the target type and
// the remote identifier it was resolved from.
package relationships

import (
	"fmt"

	"github.com/diwise/entity-mapper/pkg/types"
)

// ToOne links to a single entity of the target type
type ToOne struct {
	Kind       string `json:"type"`
	TargetType string `json:"targetType,omitempty"`
	Obj        string `json:"object"`
	RemoteID   string `json:"remoteId,omitempty"`
}

func NewToOne(target types.Entity) *ToOne {
	return &ToOne{
		Kind:       types.RelationshipType,
		TargetType: target.Type(),
		Obj:        target.ID(),
		RemoteID:   target.RemoteID(),
	}
}

func (r *ToOne) Type() string {
	return r.Kind
}

// Object returns the internal identity of the target
func (r *ToOne) Object() any {
	return r.Obj
}

// RemoteObject returns the remote identifier of the target
func (r *ToOne) RemoteObject() any {
	return r.RemoteID
}

// ToMany links to an ordered list of entities of the target type. Obj and RemoteIDs
// have the same length and order.
type ToMany struct {
	Kind       string   `json:"type"`
	TargetType string   `json:"targetType,omitempty"`
	Obj        []string `json:"object"`
	RemoteIDs  []string `json:"remoteIds,omitempty"`
}

func NewToMany(targetType string, targets []types.Entity) *ToMany {
	r := &ToMany{
		Kind:       types.RelationshipType,
		TargetType: targetType,
		Obj:        make([]string, 0, len(targets)),
		RemoteIDs:  make([]string, 0, len(targets)),
	}

	for _, t := range targets {
		r.Obj = append(r.Obj, t.ID())
		r.RemoteIDs = append(r.RemoteIDs, t.RemoteID())
	}

	return r
}

func (r *ToMany) Type() string {
	return r.Kind
}

func (r *ToMany) Object() any {
	return r.Obj
}

func (r *ToMany) RemoteObject() any {
	return r.RemoteIDs
}

func UnmarshalR(body map[string]any) (types.Relationship, error) {
	object, ok := body["object"]
	if !ok {
		return nil, fmt.Errorf("relationships without an object attribute are not supported")
	}

	targetType, _ := body["targetType"].(string)

	switch typedObject := object.(type) {
	case string:
		remoteID, _ := body["remoteId"].(string)
		return &ToOne{
			Kind:       types.RelationshipType,
			TargetType: targetType,
			Obj:        typedObject,
			RemoteID:   remoteID,
		}, nil
	case []any:
		r := &ToMany{
			Kind:       types.RelationshipType,
			TargetType: targetType,
			Obj:        toStrings(typedObject),
		}
		if remoteIDs, ok := body["remoteIds"].([]any); ok {
			r.RemoteIDs = toStrings(remoteIDs)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("relationship object of type %T is not supported", typedObject)
	}
}

func toStrings(values []any) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result
}
