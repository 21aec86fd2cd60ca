package properties

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestSanitizeEmptyString(t *testing.T) {
	is := is.New(t)
	is.Equal(SanitizeString(""), "")
}

func TestSanitizeInvalidEscapeString(t *testing.T) {
	is := is.New(t)
	is.Equal(SanitizeString("\\uqwab"), "\\uqwab")
}

func TestSanitizeAmpersandString(t *testing.T) {
	is := is.New(t)
	is.Equal(SanitizeString("\\u0026"), "&")
}

func TestSanitizeDoubleAmpersandString(t *testing.T) {
	is := is.New(t)
	is.Equal(SanitizeString("\\u0026\\u0026"), "&&")
}

func TestSanitizeEmbeddedAmpersandString(t *testing.T) {
	is := is.New(t)
	is.Equal(SanitizeString("A \\u0026 B"), "A & B")
}

func TestSanitizeCroppedString(t *testing.T) {
	is := is.New(t)
	is.Equal(SanitizeString("A \\u0026 \\u00"), "A & \\u00")
}

func TestIntegerPropertySurvivesJSON(t *testing.T) {
	is := is.New(t)

	b, err := json.Marshal(NewIntegerProperty(42))
	is.NoErr(err)
	is.Equal(string(b), `{"type":"Property","value":{"@type":"Integer","@value":42}}`)

	p, err := UnmarshalP(decode(is, b))
	is.NoErr(err)

	ip, ok := p.(*IntegerProperty)
	is.True(ok) // should be unmarshalled as an integer property
	is.Equal(ip.Val, int64(42))
}

func TestDateTimePropertySurvivesJSON(t *testing.T) {
	is := is.New(t)
	ts := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)

	b, err := json.Marshal(NewDateTimeProperty(ts))
	is.NoErr(err)
	is.Equal(string(b), `{"type":"Property","value":{"@type":"DateTime","@value":"2023-05-01T12:00:00Z"}}`)

	p, err := UnmarshalP(decode(is, b))
	is.NoErr(err)
	is.True(p.Value().(time.Time).Equal(ts))
}

func TestUnmarshalBooleanAndText(t *testing.T) {
	is := is.New(t)

	p, err := UnmarshalP(map[string]any{"type": "Property", "value": true})
	is.NoErr(err)
	is.Equal(p.Value(), true)

	p, err = UnmarshalP(map[string]any{"type": "Property", "value": "A \\u0026 B"})
	is.NoErr(err)
	is.Equal(p.Value(), "A & B")
}

func TestRawPropertySurvivesJSON(t *testing.T) {
	is := is.New(t)

	for _, raw := range []any{
		[]any{float64(1), float64(2)},
		map[string]any{"@type": "Foo", "@value": float64(1)},
		"plain",
	} {
		b, err := json.Marshal(NewRawProperty(raw))
		is.NoErr(err)

		p, err := UnmarshalP(decode(is, b))
		is.NoErr(err)

		_, ok := p.(*RawProperty)
		is.True(ok) // should stay a raw property
		is.Equal(p.Value(), raw)
	}
}

func TestUntaggedObjectWithUnknownTypeIsKeptRaw(t *testing.T) {
	is := is.New(t)

	obj := map[string]any{"@type": "Foo", "@value": float64(1)}

	p, err := UnmarshalP(map[string]any{"type": "Property", "value": obj})
	is.NoErr(err)
	is.Equal(p.Value(), obj)
}

func TestUnmarshalWithoutValueFails(t *testing.T) {
	is := is.New(t)

	_, err := UnmarshalP(map[string]any{"type": "Property"})
	is.True(err != nil)
}

func decode(is *is.I, b []byte) map[string]any {
	m := map[string]any{}
	is.NoErr(json.Unmarshal(b, &m))
	return m
}
