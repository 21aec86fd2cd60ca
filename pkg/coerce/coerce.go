// Package coerce converts loosely typed record values into typed entity properties.
// Values that cannot be converted are reported as absent instead of failing.
package coerce

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/entity-mapper/pkg/schema"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/entity-mapper/pkg/types/properties"
)

// DefaultDateLayouts are tried in order and the first successful parse wins
var DefaultDateLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Func converts a raw value into a property, returning false when the value is unusable
type Func func(raw any) (types.Property, bool)

type Coercer struct {
	handlers    map[schema.TypeTag]Func
	dateLayouts []string
	location    *time.Location
}

type Option func(*Coercer)

// DateLayouts replaces the default list of date layouts
func DateLayouts(layouts ...string) Option {
	return func(c *Coercer) {
		c.dateLayouts = layouts
	}
}

// Location sets the time zone used for layouts that carry no zone information.
// A nil location leaves the default, UTC, in place.
func Location(loc *time.Location) Option {
	return func(c *Coercer) {
		if loc != nil {
			c.location = loc
		}
	}
}

// Handler registers, or replaces, the conversion used for a type tag
func Handler(tag schema.TypeTag, fn Func) Option {
	return func(c *Coercer) {
		c.handlers[tag.Normalize()] = fn
	}
}

func New(options ...Option) *Coercer {
	c := &Coercer{
		handlers:    map[schema.TypeTag]Func{},
		dateLayouts: DefaultDateLayouts,
		location:    time.UTC,
	}

	c.handlers[schema.String] = func(raw any) (types.Property, bool) {
		s, ok := ToString(raw)
		if !ok {
			return nil, false
		}
		return properties.NewTextProperty(s), true
	}

	c.handlers[schema.TextList] = func(raw any) (types.Property, bool) {
		list, ok := raw.([]any)
		if !ok {
			return nil, false
		}
		values := make([]string, 0, len(list))
		for _, v := range list {
			if str, ok := v.(string); ok {
				values = append(values, properties.SanitizeString(str))
			}
		}
		return properties.NewTextListProperty(values), true
	}

	c.handlers[schema.Integer] = func(raw any) (types.Property, bool) {
		i, ok := ToInteger(raw)
		if !ok {
			return nil, false
		}
		return properties.NewIntegerProperty(i), true
	}

	c.handlers[schema.Decimal] = func(raw any) (types.Property, bool) {
		f, ok := ToDecimal(raw)
		if !ok {
			return nil, false
		}
		return properties.NewNumberProperty(f), true
	}

	c.handlers[schema.Boolean] = func(raw any) (types.Property, bool) {
		b, ok := ToBoolean(raw)
		if !ok {
			return nil, false
		}
		return properties.NewBooleanProperty(b), true
	}

	c.handlers[schema.Date] = func(raw any) (types.Property, bool) {
		t, ok := c.ParseDate(raw)
		if !ok {
			return nil, false
		}
		return properties.NewDateTimeProperty(t), true
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Coerce converts raw into a property of the declared type. Unknown tags yield the raw
// value unchanged. Relationship tags are not handled here and always report false.
func (c *Coercer) Coerce(tag schema.TypeTag, raw any) (types.Property, bool) {
	if raw == nil {
		return nil, false
	}

	tag = tag.Normalize()

	if fn, ok := c.handlers[tag]; ok {
		return fn(raw)
	}

	if tag.IsRelationship() {
		return nil, false
	}

	return properties.NewRawProperty(raw), true
}

// ParseDate tries the configured layouts in order. Numbers are interpreted as seconds
// since the Unix epoch.
func (c *Coercer) ParseDate(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range c.dateLayouts {
			t, err := time.ParseInLocation(layout, s, c.location)
			if err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}

	if f, ok := number(raw); ok {
		if !inInt64Range(f) {
			return time.Time{}, false
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}

	return time.Time{}, false
}

var defaultCoercer = New()

// ParseDate parses raw using the default layouts and UTC
func ParseDate(raw any) (time.Time, bool) {
	return defaultCoercer.ParseDate(raw)
}

func ToString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return properties.SanitizeString(v), true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// ToInteger accepts numbers and numeric strings. Fractions are truncated toward zero.
func ToInteger(raw any) (int64, bool) {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		raw = s
	}

	if jn, ok := raw.(json.Number); ok {
		if i, err := jn.Int64(); err == nil {
			return i, true
		}
	}

	f, ok := ToDecimal(raw)
	if !ok || !inInt64Range(f) {
		return 0, false
	}

	return int64(f), true
}

// inInt64Range reports whether f truncates to an int64 without overflowing.
// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
func inInt64Range(f float64) bool {
	return f >= math.MinInt64 && f < math.MaxInt64
}

func ToDecimal(raw any) (float64, bool) {
	if s, ok := raw.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}

	return number(raw)
}

var trueTokens = []string{"true", "yes", "y", "t", "on", "1"}
var falseTokens = []string{"false", "no", "n", "f", "off", "0"}

func ToBoolean(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		token := strings.ToLower(strings.TrimSpace(v))
		for _, t := range trueTokens {
			if token == t {
				return true, true
			}
		}
		for _, f := range falseTokens {
			if token == f {
				return false, true
			}
		}
		return false, false
	}

	if f, ok := number(raw); ok {
		switch f {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}

	return false, false
}

func number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
