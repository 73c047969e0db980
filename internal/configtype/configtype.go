// Package configtype defines the canonical configuration-type tree that
// schema inference produces and the value resolver consumes.
//
// The tree mirrors the shapes a raw config document can take: scalar
// leaves (optionally sourced from environment variables), enumerations,
// arrays, maps with a restricted key set, closed and permissive shapes,
// and selectors for discriminated unions. Scalar leaves carry cty types
// so coercion and error paths ride the same type system the rest of
// the module uses.
package configtype

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Type is a node in the canonical config-type tree.
type Type interface {
	// FriendlyName is the human-readable name used in error messages.
	FriendlyName() string

	configType()
}

type scalarKind int

const (
	scalarString scalarKind = iota
	scalarInt
	scalarBool
	scalarFloat
)

// Scalar is a leaf type. String, int, and bool scalars are "sourced":
// a raw value may be either a literal or an environment-variable
// reference of the form {"env": "VAR_NAME"}, resolved lazily at the
// point of use. Float has no source form.
type Scalar struct {
	kind scalarKind
}

var (
	StringSource = &Scalar{scalarString}
	IntSource    = &Scalar{scalarInt}
	BoolSource   = &Scalar{scalarBool}
	Float        = &Scalar{scalarFloat}
)

func (s *Scalar) configType() {}

func (s *Scalar) FriendlyName() string {
	switch s.kind {
	case scalarString:
		return "String"
	case scalarInt:
		return "Int"
	case scalarBool:
		return "Bool"
	default:
		return "Float"
	}
}

// Sourced reports whether values of this scalar may be supplied through
// an environment-variable reference.
func (s *Scalar) Sourced() bool { return s.kind != scalarFloat }

// CtyType is the cty type raw literals are converted to during
// validation. Int and Float both map to cty.Number; Int additionally
// requires the number to be integral.
func (s *Scalar) CtyType() cty.Type {
	switch s.kind {
	case scalarString:
		return cty.String
	case scalarBool:
		return cty.Bool
	default:
		return cty.Number
	}
}

// RequiresInteger reports whether a numeric value must be integral.
func (s *Scalar) RequiresInteger() bool { return s.kind == scalarInt }

// EnumValue is one member of an enumeration: the config-facing name and
// the runtime value it resolves to.
type EnumValue struct {
	Name  string
	Value any
}

// Enum is a closed name/value enumeration.
type Enum struct {
	Name   string
	Values []EnumValue
}

func (e *Enum) configType() {}

func (e *Enum) FriendlyName() string { return fmt.Sprintf("Enum[%s]", e.Name) }

// ValueFor resolves a config-facing name to its runtime value.
func (e *Enum) ValueFor(name string) (any, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// Names returns the config-facing member names in declaration order.
func (e *Enum) Names() []string {
	out := make([]string, len(e.Values))
	for i, v := range e.Values {
		out[i] = v.Name
	}
	return out
}

// Array is an ordered homogeneous collection.
type Array struct {
	Elem Type
}

func (a *Array) configType() {}

func (a *Array) FriendlyName() string { return fmt.Sprintf("Array[%s]", a.Elem.FriendlyName()) }

// Map is a homogeneous mapping with a scalar key type. Only the scalar
// set {string, int, bool, float} is permitted as keys; inference
// enforces this before a Map is ever constructed.
type Map struct {
	Key  *Scalar
	Elem Type
}

func (m *Map) configType() {}

func (m *Map) FriendlyName() string {
	return fmt.Sprintf("Map[%s,%s]", m.Key.FriendlyName(), m.Elem.FriendlyName())
}

// Shape is a named-field record. A closed shape rejects unknown keys;
// a permissive shape accepts and passes through arbitrary extra keys.
type Shape struct {
	Fields     map[string]*Field
	Permissive bool
}

func (s *Shape) configType() {}

func (s *Shape) FriendlyName() string {
	if s.Permissive {
		return "Permissive"
	}
	return "Shape"
}

// FieldNames returns the field names in sorted order, for deterministic
// iteration and error reporting.
func (s *Shape) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Selector models a discriminated union: raw input is a single-key map
// whose key picks the branch. DiscriminatorKey, when non-empty, is the
// field name the resolver re-injects into the resolved branch value so
// downstream consumers see which branch was chosen.
type Selector struct {
	Branches         map[string]*Field
	DiscriminatorKey string
}

func (s *Selector) configType() {}

func (s *Selector) FriendlyName() string { return "Selector" }

// BranchNames returns the branch keys in sorted order.
func (s *Selector) BranchNames() []string {
	names := make([]string, 0, len(s.Branches))
	for name := range s.Branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Noneable wraps a type to additionally permit an explicit null value.
type Noneable struct {
	Inner Type
}

func (n *Noneable) configType() {}

func (n *Noneable) FriendlyName() string { return fmt.Sprintf("Noneable[%s]", n.Inner.FriendlyName()) }

// Field pairs a type with its optionality, default, and description.
// Fields are immutable; WithDefault returns a copy.
type Field struct {
	Type         Type
	Required     bool
	HasDefault   bool
	DefaultValue any
	Description  string
}

// NewField returns a required field of the given type.
func NewField(t Type) *Field {
	return &Field{Type: t, Required: true}
}

// WithDefault returns a copy of the field carrying the given default.
// A field with a default is never required.
func (f *Field) WithDefault(v any) *Field {
	out := *f
	out.Required = false
	out.HasDefault = true
	out.DefaultValue = v
	return &out
}

// WithDescription returns a copy of the field with the description set.
func (f *Field) WithDescription(desc string) *Field {
	out := *f
	out.Description = desc
	return &out
}

// Optional returns a copy of the field marked not required, without
// attaching a default.
func (f *Field) Optional() *Field {
	out := *f
	out.Required = false
	return &out
}
