// Package value implements the typed property values used by every kind.
//
// Values are carried as cty.Value. A property's declared Type decides how an
// incoming value is coerced: integers and floats convert into each other when
// the conversion is lossless, strings accept any textual form, and numeric
// values outside the declared Range are rejected rather than clamped.
package value

import (
	"fmt"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"github.com/specialistvlad/propshell/internal/shellerr"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Base is the primitive family of a property type.
type Base int

const (
	String Base = iota
	Int
	Float
	Bool
	Enum
)

// Type is the declared value type of a property.
type Type struct {
	Base Base
	// Members lists the accepted values of an Enum type, in declaration order.
	Members []string
}

// Primitive type shorthands.
var (
	StringType = Type{Base: String}
	IntType    = Type{Base: Int}
	FloatType  = Type{Base: Float}
	BoolType   = Type{Base: Bool}
)

// EnumType returns an enum type accepting exactly the given members.
func EnumType(members ...string) Type {
	return Type{Base: Enum, Members: members}
}

// Range is an inclusive numeric bound.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether f lies within the range.
func (r Range) Contains(f float64) bool {
	return f >= r.Min && f <= r.Max
}

// String renders the type the way manifests spell it.
func (t Type) String() string {
	switch t.Base {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Enum:
		quoted := make([]string, len(t.Members))
		for i, m := range t.Members {
			quoted[i] = strconv.Quote(m)
		}
		return "enum(" + strings.Join(quoted, ", ") + ")"
	default:
		return fmt.Sprintf("Base(%d)", int(t.Base))
	}
}

// IsNumeric reports whether values of this type are numbers.
func (t Type) IsNumeric() bool {
	return t.Base == Int || t.Base == Float
}

// CtyType returns the cty type values of t are stored as.
func (t Type) CtyType() cty.Type {
	switch t.Base {
	case Int, Float:
		return cty.Number
	case Bool:
		return cty.Bool
	default:
		return cty.String
	}
}

// Zero returns the value a property of type t holds when no default is declared.
func (t Type) Zero() cty.Value {
	switch t.Base {
	case Int, Float:
		return cty.Zero
	case Bool:
		return cty.False
	case Enum:
		if len(t.Members) > 0 {
			return cty.StringVal(t.Members[0])
		}
		return cty.StringVal("")
	default:
		return cty.StringVal("")
	}
}

// ZeroIn is the value a property of type t limited to r holds when no default
// is declared: Zero, or the bound nearest to zero when r excludes it. Integer
// types round that bound into the range.
func (t Type) ZeroIn(r *Range) cty.Value {
	if r == nil || !t.IsNumeric() || r.Contains(0) {
		return t.Zero()
	}
	if r.Min > 0 {
		if t.Base == Int {
			return cty.NumberFloatVal(math.Ceil(r.Min))
		}
		return cty.NumberFloatVal(r.Min)
	}
	if t.Base == Int {
		return cty.NumberFloatVal(math.Floor(r.Max))
	}
	return cty.NumberFloatVal(r.Max)
}

// Coerce converts in to type t and validates it against r, which may be nil.
// It fails with shellerr.ErrTypeMismatch when no lossless conversion exists
// and with shellerr.ErrRange when a number falls outside r.
func Coerce(t Type, r *Range, in cty.Value) (cty.Value, error) {
	if in == cty.NilVal || in.IsNull() || !in.IsKnown() {
		return cty.NilVal, fmt.Errorf("%w: no value to convert to %s", shellerr.ErrTypeMismatch, t)
	}

	out, err := convert.Convert(in, t.CtyType())
	if err != nil {
		return cty.NilVal, fmt.Errorf("%w: cannot use %q as %s", shellerr.ErrTypeMismatch, Format(in), t)
	}

	switch t.Base {
	case Int:
		if !out.AsBigFloat().IsInt() {
			return cty.NilVal, fmt.Errorf("%w: %s is not an integer", shellerr.ErrTypeMismatch, Format(out))
		}
	case Enum:
		if s := out.AsString(); !slices.Contains(t.Members, s) {
			return cty.NilVal, fmt.Errorf("%w: %q is not one of %s", shellerr.ErrTypeMismatch, s, t)
		}
	}

	if r != nil && t.IsNumeric() {
		f, _ := out.AsBigFloat().Float64()
		if !r.Contains(f) {
			return cty.NilVal, fmt.Errorf("%w: %s not in [%s, %s]", shellerr.ErrRange,
				Format(out), formatFloat(r.Min), formatFloat(r.Max))
		}
	}

	return out, nil
}

// Parse coerces user-typed text into type t. Surrounding blanks are ignored
// for every type except strings, which keep the text verbatim.
func Parse(t Type, r *Range, text string) (cty.Value, error) {
	if t.Base != String {
		text = strings.TrimSpace(text)
	}
	return Coerce(t, r, cty.StringVal(text))
}

// Format renders a value for display. Integers print without a fraction and
// floats use the shortest representation that round-trips.
func Format(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "(null)"
	}
	if !v.IsKnown() {
		return "(unknown)"
	}

	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return strconv.FormatBool(v.True())
	case cty.Number:
		return formatNumber(v.AsBigFloat())
	default:
		return v.GoString()
	}
}

// Equal reports whether two values hold the same data.
func Equal(a, b cty.Value) bool {
	if a == cty.NilVal || b == cty.NilVal {
		return a == b
	}
	return a.RawEquals(b) || (a.IsKnown() && b.IsKnown() && a.Type().Equals(b.Type()) && a.Equals(b).True())
}

func formatNumber(bf *big.Float) string {
	if bf.IsInt() {
		return bf.Text('f', 0)
	}
	f, _ := bf.Float64()
	return formatFloat(f)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
