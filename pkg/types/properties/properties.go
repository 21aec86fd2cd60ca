package properties

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/diwise/entity-mapper/pkg/types"
)

const (
	DateTimeValueType string = "DateTime"
	IntegerValueType  string = "Integer"
	RawValueType      string = "Raw"
)

// PropertyImpl contains the mandatory Type property
type PropertyImpl struct {
	Type string `json:"type"`
}

// NumberProperty holds a float64 Value
type NumberProperty struct {
	PropertyImpl
	Val float64 `json:"value"`
}

func (np *NumberProperty) Type() string {
	return np.PropertyImpl.Type
}

func (np *NumberProperty) Value() any {
	return np.Val
}

// NewNumberProperty is a convenience function for creating NumberProperty instances
func NewNumberProperty(value float64) *NumberProperty {
	return &NumberProperty{
		PropertyImpl: PropertyImpl{Type: types.PropertyType},
		Val:          value,
	}
}

// IntegerProperty holds an int64 value. It is tagged with an explicit value type
// when serialized so that it survives a round trip through JSON.
type IntegerProperty struct {
	PropertyImpl
	Val int64
}

func NewIntegerProperty(value int64) *IntegerProperty {
	return &IntegerProperty{
		PropertyImpl: PropertyImpl{Type: types.PropertyType},
		Val:          value,
	}
}

func (ip *IntegerProperty) Type() string {
	return ip.PropertyImpl.Type
}

func (ip *IntegerProperty) Value() any {
	return ip.Val
}

func (ip *IntegerProperty) MarshalJSON() ([]byte, error) {
	p := struct {
		Type string `json:"type"`
		Val  struct {
			Type  string `json:"@type"`
			Value int64  `json:"@value"`
		} `json:"value"`
	}{Type: ip.PropertyImpl.Type}

	p.Val.Type = IntegerValueType
	p.Val.Value = ip.Val

	return json.Marshal(&p)
}

// DateTimeProperty stores date and time values (surprise, surprise ...)
type DateTimeProperty struct {
	PropertyImpl
	Val time.Time
}

// NewDateTimeProperty creates a property from a time stamp. The time is stored in UTC.
func NewDateTimeProperty(value time.Time) *DateTimeProperty {
	return &DateTimeProperty{
		PropertyImpl: PropertyImpl{Type: types.PropertyType},
		Val:          value.UTC(),
	}
}

func (dtp *DateTimeProperty) Type() string {
	return dtp.PropertyImpl.Type
}

func (dtp *DateTimeProperty) Value() any {
	return dtp.Val
}

func (dtp *DateTimeProperty) MarshalJSON() ([]byte, error) {
	p := struct {
		Type string `json:"type"`
		Val  struct {
			Type  string `json:"@type"`
			Value string `json:"@value"`
		} `json:"value"`
	}{Type: dtp.PropertyImpl.Type}

	p.Val.Type = DateTimeValueType
	p.Val.Value = dtp.Val.Format(time.RFC3339Nano)

	return json.Marshal(&p)
}

// BooleanProperty stores true or false
type BooleanProperty struct {
	PropertyImpl
	Val bool `json:"value"`
}

func NewBooleanProperty(value bool) *BooleanProperty {
	return &BooleanProperty{
		PropertyImpl: PropertyImpl{Type: types.PropertyType},
		Val:          value,
	}
}

func (bp *BooleanProperty) Type() string {
	return bp.PropertyImpl.Type
}

func (bp *BooleanProperty) Value() any {
	return bp.Val
}

// TextProperty stores values of type text
type TextProperty struct {
	PropertyImpl
	Val string `json:"value"`
}

func (tp *TextProperty) Type() string {
	return tp.PropertyImpl.Type
}

func (tp *TextProperty) Value() any {
	return tp.Val
}

// NewTextProperty accepts a value as a string and returns a new TextProperty
func NewTextProperty(value string) *TextProperty {
	return &TextProperty{
		PropertyImpl: PropertyImpl{Type: types.PropertyType},
		Val:          value,
	}
}

// TextListProperty stores values of type text list
type TextListProperty struct {
	PropertyImpl
	Val []string `json:"value"`
}

func (tlp *TextListProperty) Type() string {
	return tlp.PropertyImpl.Type
}

func (tlp *TextListProperty) Value() any {
	return tlp.Val
}

// NewTextListProperty accepts a value as a string array and returns a new TextListProperty
func NewTextListProperty(value []string) *TextListProperty {
	return &TextListProperty{
		PropertyImpl: PropertyImpl{Type: types.PropertyType},
		Val:          value,
	}
}

// RawProperty carries a value of a type that has no dedicated representation
type RawProperty struct {
	PropertyImpl
	Val any `json:"value"`
}

func NewRawProperty(value any) *RawProperty {
	return &RawProperty{
		PropertyImpl: PropertyImpl{Type: types.PropertyType},
		Val:          value,
	}
}

func (rp *RawProperty) Type() string {
	return rp.PropertyImpl.Type
}

func (rp *RawProperty) Value() any {
	return rp.Val
}

// MarshalJSON wraps the value in a Raw envelope so that lists, objects and numbers are
// not reinterpreted as typed properties when loaded again
func (rp *RawProperty) MarshalJSON() ([]byte, error) {
	p := struct {
		Type string `json:"type"`
		Val  struct {
			Type  string `json:"@type"`
			Value any    `json:"@value"`
		} `json:"value"`
	}{Type: rp.PropertyImpl.Type}

	p.Val.Type = RawValueType
	p.Val.Value = rp.Val

	return json.Marshal(&p)
}

func UnmarshalP(body map[string]any) (types.Property, error) {
	value, ok := body["value"]
	if !ok {
		return nil, fmt.Errorf("properties without a value attribute are not supported")
	}

	if value == nil {
		return NewRawProperty(nil), nil
	}

	switch typedValue := value.(type) {
	case float64:
		return NewNumberProperty(typedValue), nil
	case json.Number:
		f, err := typedValue.Float64()
		if err != nil {
			return nil, fmt.Errorf("number property has an invalid value: %w", err)
		}
		return NewNumberProperty(f), nil
	case bool:
		return NewBooleanProperty(typedValue), nil
	case string:
		return NewTextProperty(SanitizeString(typedValue)), nil
	case map[string]any:
		return unmarshalPropertyObject(typedValue)
	case []any:
		values := []string{}
		for _, v := range typedValue {
			str, ok := v.(string)
			if ok {
				values = append(values, SanitizeString(str))
			}
		}
		return NewTextListProperty(values), nil
	default:
		return NewRawProperty(typedValue), nil
	}
}

// SanitizeString replaces literal \uXXXX escape sequences with the runes they represent
func SanitizeString(input string) string {
	if len(input) >= 6 {
		for runeIdx, stopIdx := 0, len(input)-6; runeIdx <= stopIdx; runeIdx++ {
			if input[runeIdx] == '\\' {
				if input[runeIdx+1] == 'u' {
					r, err := strconv.ParseInt(input[runeIdx+2:runeIdx+6], 16, 32)
					if err != nil {
						continue
					}

					return input[:runeIdx] + string(rune(r)) + SanitizeString(input[runeIdx+6:])
				}
			}
		}
	}

	return input
}

func unmarshalPropertyObject(object map[string]any) (types.Property, error) {
	objectType, ok := object["@type"]
	if !ok {
		return NewRawProperty(object), nil
	}

	objectValue, ok := object["@value"]
	if !ok {
		return NewRawProperty(object), nil
	}

	objectTypeStr, ok := objectType.(string)
	if !ok {
		return NewRawProperty(object), nil
	}

	switch objectTypeStr {
	case RawValueType:
		return NewRawProperty(objectValue), nil
	case DateTimeValueType:
		dateTimeStr, ok := objectValue.(string)
		if !ok {
			return nil, fmt.Errorf("datetime property @value not convertible to string")
		}
		t, err := time.Parse(time.RFC3339Nano, dateTimeStr)
		if err != nil {
			return nil, fmt.Errorf("datetime property @value is not a valid timestamp: %w", err)
		}
		return NewDateTimeProperty(t), nil
	case IntegerValueType:
		switch n := objectValue.(type) {
		case float64:
			return NewIntegerProperty(int64(n)), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("integer property @value is not an integer: %w", err)
			}
			return NewIntegerProperty(i), nil
		}
		return nil, fmt.Errorf("integer property @value not convertible to a number")
	default:
		// an untagged object that happens to carry @type and @value
		return NewRawProperty(object), nil
	}
}
