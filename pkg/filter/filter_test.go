package filter

import (
	"bytes"
	"context"
	"testing"

	"github.com/diwise/entity-mapper/pkg/types/entities"
	"github.com/matryer/is"
)

func TestAttributeEquals(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	e, _ := entities.New("Person", "1", entities.Text("owner", "alice"), entities.Integer("age", 42))

	ok, err := AttributeEquals("owner", "alice").Match(ctx, e)
	is.NoErr(err)
	is.True(ok)

	ok, _ = AttributeEquals("owner", "bob").Match(ctx, e)
	is.True(!ok)

	ok, _ = AttributeEquals("age", "42").Match(ctx, e)
	is.True(ok) // values should be compared by their textual form as a fallback

	ok, _ = AttributeEquals("missing", "x").Match(ctx, e)
	is.True(!ok)
}

func TestAttributeEqualsOnRelationship(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	org, _ := entities.New("Organisation", "556")
	e, _ := entities.New("Person", "1", entities.Ref("employer", org))

	ok, _ := AttributeEquals("employer", org.ID()).Match(ctx, e)
	is.True(ok)

	ok, _ = AttributeEquals("employer", "556").Match(ctx, e)
	is.True(ok) // the remote identifier of the target should match as well

	ok, _ = AttributeEquals("employer", "557").Match(ctx, e)
	is.True(!ok)
}

func TestRegoPredicate(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	p, err := NewRegoPredicate(ctx, bytes.NewBufferString(policy))
	is.NoErr(err)

	alice, _ := entities.New("Person", "1", entities.Text("owner", "alice"))
	bob, _ := entities.New("Person", "2", entities.Text("owner", "bob"))

	ok, err := p.Match(ctx, alice)
	is.NoErr(err)
	is.True(ok)

	ok, err = p.Match(ctx, bob)
	is.NoErr(err)
	is.True(!ok)
}

func TestInvalidRegoModule(t *testing.T) {
	is := is.New(t)

	_, err := NewRegoPredicate(context.Background(), bytes.NewBufferString("this is not rego"))
	is.True(err != nil)
}

const policy string = `
package mapping.filter

default include := false

include {
    input.owner.value == "alice"
}
`
