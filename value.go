package hashi

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindBytes
	KindBoolSlice
	KindInt64Slice
	KindFloat64Slice
	KindStringSlice
	KindError
)

// Value is a closed tagged variant for field values. Front-ends record
// open-ended typed fields; everything is coerced into one of these variants
// on the way in, so the rest of the bridge never deals with arbitrary types.
type Value struct {
	kind    ValueKind
	num     uint64 // bool, int64, float64 bit patterns
	str     string
	bytes   []byte
	boolSl  []bool
	intSl   []int64
	floatSl []float64
	strSl   []string
}

// Field is a key/value pair recorded on a span or event.
type Field struct {
	Key   string
	Value Value
}

// Bool returns a bool-valued field.
func Bool(key string, v bool) Field {
	return Field{Key: key, Value: BoolValue(v)}
}

// Int returns an int64-valued field.
func Int(key string, v int) Field {
	return Int64(key, int64(v))
}

// Int64 returns an int64-valued field.
func Int64(key string, v int64) Field {
	return Field{Key: key, Value: Int64Value(v)}
}

// Float64 returns a float64-valued field.
func Float64(key string, v float64) Field {
	return Field{Key: key, Value: Float64Value(v)}
}

// String returns a string-valued field.
func String(key, v string) Field {
	return Field{Key: key, Value: StringValue(v)}
}

// Bytes returns a byte-slice-valued field. Bytes are hex-encoded when
// converted to an attribute, since the OpenTelemetry attribute model has no
// bytes type.
func Bytes(key string, v []byte) Field {
	return Field{Key: key, Value: Value{kind: KindBytes, bytes: v}}
}

// BoolSlice returns a []bool-valued field.
func BoolSlice(key string, v []bool) Field {
	return Field{Key: key, Value: Value{kind: KindBoolSlice, boolSl: v}}
}

// Int64Slice returns a []int64-valued field.
func Int64Slice(key string, v []int64) Field {
	return Field{Key: key, Value: Value{kind: KindInt64Slice, intSl: v}}
}

// Float64Slice returns a []float64-valued field.
func Float64Slice(key string, v []float64) Field {
	return Field{Key: key, Value: Value{kind: KindFloat64Slice, floatSl: v}}
}

// StringSlice returns a []string-valued field.
func StringSlice(key string, v []string) Field {
	return Field{Key: key, Value: Value{kind: KindStringSlice, strSl: v}}
}

// Any coerces an arbitrary value into a field. Values outside the closed
// variant set are stringified with %v; recording never fails.
func Any(key string, v any) Field {
	return Field{Key: key, Value: AnyValue(v)}
}

// BoolValue returns a bool Value.
func BoolValue(v bool) Value {
	var n uint64
	if v {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// Int64Value returns an int64 Value.
func Int64Value(v int64) Value {
	return Value{kind: KindInt64, num: uint64(v)}
}

// Float64Value returns a float64 Value.
func Float64Value(v float64) Value {
	return Value{kind: KindFloat64, num: math.Float64bits(v)}
}

// StringValue returns a string Value.
func StringValue(v string) Value {
	return Value{kind: KindString, str: v}
}

// ErrorValue returns an error Value: the error's message plus its source
// chain, collected through errors.Unwrap. The chain lists the causes below
// the error itself, outermost first.
func ErrorValue(err error) Value {
	if err == nil {
		return Value{kind: KindError}
	}
	var chain []string
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		chain = append(chain, cause.Error())
	}
	return Value{kind: KindError, str: err.Error(), strSl: chain}
}

// AnyValue coerces an arbitrary value into a Value. The coercion table:
// native variants pass through; signed and unsigned integers widen to int64
// (uint64 above the int64 range is stringified); float32 widens to float64;
// time.Duration becomes its nanosecond count; error keeps its message and
// unwrap chain; fmt.Stringer uses its string form; anything else is
// stringified with %v.
func AnyValue(v any) Value {
	switch v := v.(type) {
	case Value:
		return v
	case bool:
		return BoolValue(v)
	case int:
		return Int64Value(int64(v))
	case int8:
		return Int64Value(int64(v))
	case int16:
		return Int64Value(int64(v))
	case int32:
		return Int64Value(int64(v))
	case int64:
		return Int64Value(v)
	case uint:
		return unsignedValue(uint64(v))
	case uint8:
		return Int64Value(int64(v))
	case uint16:
		return Int64Value(int64(v))
	case uint32:
		return Int64Value(int64(v))
	case uint64:
		return unsignedValue(v)
	case uintptr:
		return unsignedValue(uint64(v))
	case float32:
		return Float64Value(float64(v))
	case float64:
		return Float64Value(v)
	case string:
		return StringValue(v)
	case []byte:
		return Value{kind: KindBytes, bytes: v}
	case []bool:
		return Value{kind: KindBoolSlice, boolSl: v}
	case []int64:
		return Value{kind: KindInt64Slice, intSl: v}
	case []float64:
		return Value{kind: KindFloat64Slice, floatSl: v}
	case []string:
		return Value{kind: KindStringSlice, strSl: v}
	case time.Duration:
		return Int64Value(v.Nanoseconds())
	case error:
		return ErrorValue(v)
	case fmt.Stringer:
		return StringValue(v.String())
	case nil:
		return StringValue("")
	default:
		return StringValue(fmt.Sprintf("%v", v))
	}
}

// unsignedValue keeps unsigned integers numeric while they fit in int64 and
// falls back to the string form above that, rather than overflowing.
func unsignedValue(v uint64) Value {
	if v <= 1<<63-1 {
		return Int64Value(int64(v))
	}
	return StringValue(fmt.Sprintf("%d", v))
}

// Kind reports the variant held by the value.
func (v Value) Kind() ValueKind { return v.kind }

// AsBool returns the bool value. Valid only for KindBool.
func (v Value) AsBool() bool { return v.num == 1 }

// AsInt64 returns the int64 value. Valid only for KindInt64.
func (v Value) AsInt64() int64 { return int64(v.num) }

// AsFloat64 returns the float64 value. Valid only for KindFloat64.
func (v Value) AsFloat64() float64 { return math.Float64frombits(v.num) }

// AsString returns the string value. Valid only for KindString. For
// KindError it returns the error message.
func (v Value) AsString() string { return v.str }

// errChain returns the source chain of an error value, never nil.
func (v Value) errChain() []string {
	if v.strSl == nil {
		return []string{}
	}
	return v.strSl
}

// Emit renders any variant as a string, the terminal coercion for values
// that must become text (reserved fields, diagnostics).
func (v Value) Emit() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.AsBool())
	case KindInt64:
		return fmt.Sprintf("%d", v.AsInt64())
	case KindFloat64:
		return fmt.Sprintf("%g", v.AsFloat64())
	case KindString, KindError:
		return v.str
	case KindBytes:
		return hex.EncodeToString(v.bytes)
	case KindBoolSlice:
		return fmt.Sprintf("%v", v.boolSl)
	case KindInt64Slice:
		return fmt.Sprintf("%v", v.intSl)
	case KindFloat64Slice:
		return fmt.Sprintf("%v", v.floatSl)
	case KindStringSlice:
		return fmt.Sprintf("%v", v.strSl)
	default:
		return ""
	}
}

// attr converts the field to an OpenTelemetry attribute.
func (f Field) attr() attribute.KeyValue {
	k := attribute.Key(f.Key)
	v := f.Value
	switch v.kind {
	case KindBool:
		return k.Bool(v.AsBool())
	case KindInt64:
		return k.Int64(v.AsInt64())
	case KindFloat64:
		return k.Float64(v.AsFloat64())
	case KindString, KindError:
		return k.String(v.str)
	case KindBytes:
		return k.String(hex.EncodeToString(v.bytes))
	case KindBoolSlice:
		return k.BoolSlice(v.boolSl)
	case KindInt64Slice:
		return k.Int64Slice(v.intSl)
	case KindFloat64Slice:
		return k.Float64Slice(v.floatSl)
	case KindStringSlice:
		return k.StringSlice(v.strSl)
	default:
		return k.String("")
	}
}
