// Package filter contains predicates that decide which existing entities take part
// in a reconciliation.
package filter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/open-policy-agent/opa/rego"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("entity-mapper/filter")

type Predicate interface {
	Match(ctx context.Context, e types.Entity) (bool, error)
}

// Func adapts an ordinary function to a Predicate
type Func func(e types.Entity) bool

func (f Func) Match(_ context.Context, e types.Entity) (bool, error) {
	return f(e), nil
}

// All matches every entity
func All() Predicate {
	return Func(func(types.Entity) bool { return true })
}

// AttributeEquals matches entities that have a property with the given name and value.
// Relationships match either the internal identity or the remote identifier of their target.
func AttributeEquals(name string, value any) Predicate {
	return Func(func(e types.Entity) bool {
		a, ok := e.Attribute(name)
		if !ok {
			return false
		}

		switch v := a.(type) {
		case types.Property:
			return valuesEqual(v.Value(), value)
		case types.Relationship:
			if valuesEqual(v.Object(), value) {
				return true
			}
			if remote, ok := v.(interface{ RemoteObject() any }); ok {
				return valuesEqual(remote.RemoteObject(), value)
			}
		}

		return false
	})
}

func valuesEqual(actual, expected any) bool {
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

type regoPredicate struct {
	preparedQuery rego.PreparedEvalQuery
}

// NewRegoPredicate compiles a rego module that must define data.mapping.filter.include.
// Each entity is passed as input in its JSON form.
func NewRegoPredicate(ctx context.Context, policies io.Reader) (Predicate, error) {
	module, err := io.ReadAll(policies)
	if err != nil {
		return nil, fmt.Errorf("unable to read filter policies: %s", err.Error())
	}

	p := &regoPredicate{}

	p.preparedQuery, err = rego.New(
		rego.Query("x = data.mapping.filter.include"),
		rego.Module("filter.rego", string(module)),
	).PrepareForEval(ctx)

	if err != nil {
		return nil, err
	}

	return p, nil
}

func (p *regoPredicate) Match(ctx context.Context, e types.Entity) (match bool, err error) {
	ctx, span := tracer.Start(ctx, "rego-filter")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	b, err := e.MarshalJSON()
	if err != nil {
		return false, err
	}

	input := map[string]any{}
	err = json.Unmarshal(b, &input)
	if err != nil {
		return false, err
	}

	results, err := p.preparedQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		err = fmt.Errorf("opa eval failed: %w", err)
		return false, err
	}

	if len(results) == 0 {
		return false, nil
	}

	include, ok := results[0].Bindings["x"].(bool)
	if !ok {
		err = errors.New("opa error: filter did not evaluate to a boolean")
		return false, err
	}

	return include, nil
}
