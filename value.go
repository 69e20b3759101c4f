package otd

import "fmt"

// ValueKind is the tag of a Value, standing in for the GVariant-style
// dynamically-typed config/option values the original C core passes
// around opaquely.
type ValueKind int

const (
	KindU64 ValueKind = iota
	KindI64
	KindF64
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindU64:
		return "u64"
	case KindI64:
		return "i64"
	case KindF64:
		return "f64"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a tagged union covering the option/metadata value kinds this
// core actually needs to distinguish. Any other incoming kind (from a
// frontend or script) is rejected at the boundary that accepts one.
type Value struct {
	Kind ValueKind
	U64  uint64
	I64  int64
	F64  float64
	Str  string
}

func U64(v uint64) Value  { return Value{Kind: KindU64, U64: v} }
func I64(v int64) Value   { return Value{Kind: KindI64, I64: v} }
func F64(v float64) Value { return Value{Kind: KindF64, F64: v} }
func Str(v string) Value  { return Value{Kind: KindString, Str: v} }

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindU64:
		return v.U64 == o.U64
	case KindI64:
		return v.I64 == o.I64
	case KindF64:
		return v.F64 == o.F64
	case KindString:
		return v.Str == o.Str
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindU64:
		return fmt.Sprintf("%d", v.U64)
	case KindI64:
		return fmt.Sprintf("%d", v.I64)
	case KindF64:
		return fmt.Sprintf("%g", v.F64)
	case KindString:
		return v.Str
	default:
		return "<invalid value>"
	}
}

// OptionSchema describes one decoder option: its id, default value, and
// (if non-empty) the closed set of values option_set will accept.
type OptionSchema struct {
	ID      string
	Desc    string
	Default Value
	Allowed []Value // empty means "any value of Default's kind"
}

// validate checks v against the schema: same kind as Default, and if
// Allowed is non-empty, present in it.
func (s OptionSchema) validate(v Value) error {
	if v.Kind != s.Default.Kind {
		return newErr(StatusArg, "option %q: expected kind %s, got %s", s.ID, s.Default.Kind, v.Kind)
	}
	if len(s.Allowed) == 0 {
		return nil
	}
	for _, a := range s.Allowed {
		if a.Equal(v) {
			return nil
		}
	}
	return newErr(StatusArg, "option %q: value %s not in allowed set", s.ID, v)
}
