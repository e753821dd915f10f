package imports

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which variant a FieldValue holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FieldValue is a decoded column value. The zero value is Null.
type FieldValue struct {
	kind Kind
	str  string
	i    int64
	f    float64
}

func NullValue() FieldValue {
	return FieldValue{kind: KindNull}
}

func StringValue(s string) FieldValue {
	return FieldValue{kind: KindString, str: s}
}

func IntegerValue(i int64) FieldValue {
	return FieldValue{kind: KindInteger, i: i}
}

func FloatValue(f float64) FieldValue {
	return FieldValue{kind: KindFloat, f: f}
}

func (v FieldValue) Kind() Kind {
	return v.kind
}

func (v FieldValue) IsNull() bool {
	return v.kind == KindNull
}

func (v FieldValue) String() (string, bool) {
	return v.str, v.kind == KindString
}

func (v FieldValue) Integer() (int64, bool) {
	return v.i, v.kind == KindInteger
}

func (v FieldValue) Float() (float64, bool) {
	return v.f, v.kind == KindFloat
}

// Any returns the value as a driver-friendly Go value; Null becomes nil.
func (v FieldValue) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	default:
		return nil
	}
}

// TypeCode is the column type written by the exporter in the type attribute.
// The codes are part of the export format and never change.
type TypeCode int

const (
	TypeNull    TypeCode = 0
	TypeInteger TypeCode = 1
	TypeFloat   TypeCode = 2
	TypeString  TypeCode = 3
)

func (c TypeCode) valid() bool {
	return c >= TypeNull && c <= TypeString
}

// ParseTypeCode parses the text of a type attribute.
func ParseTypeCode(text string) (TypeCode, error) {
	code, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: type attribute %q is not an integer", ErrValueDecode, text)
	}
	if !TypeCode(code).valid() {
		return 0, fmt.Errorf("%w: unknown type code %d", ErrValueDecode, code)
	}
	return TypeCode(code), nil
}

// DecodeValue converts the text payload of a field element into a value of
// the kind named by code. STRING payloads are kept verbatim, numeric payloads
// are trimmed before parsing.
func DecodeValue(code TypeCode, text string) (FieldValue, error) {
	switch code {
	case TypeNull:
		return NullValue(), nil
	case TypeString:
		return StringValue(text), nil
	case TypeInteger:
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return FieldValue{}, fmt.Errorf("%w: invalid integer %q", ErrValueDecode, text)
		}
		return IntegerValue(i), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return FieldValue{}, fmt.Errorf("%w: invalid float %q", ErrValueDecode, text)
		}
		return FloatValue(f), nil
	default:
		return FieldValue{}, fmt.Errorf("%w: unknown type code %d", ErrValueDecode, int(code))
	}
}
