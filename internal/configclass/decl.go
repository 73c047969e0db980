package configclass

import (
	"github.com/vk/flowgrid/internal/configtype"
)

// Decl is a field declaration value: the semantic type a field was
// declared with, before inference lowers it into the canonical
// config-type tree.
type Decl interface {
	decl()
}

type scalarDecl struct {
	scalar *configtype.Scalar
}

func (scalarDecl) decl() {}

// Str declares a string field, sourced (env-indirectable).
func Str() Decl { return scalarDecl{configtype.StringSource} }

// Int declares an integer field, sourced.
func Int() Decl { return scalarDecl{configtype.IntSource} }

// Bool declares a boolean field, sourced.
func Bool() Decl { return scalarDecl{configtype.BoolSource} }

// Float declares a float field. Floats have no source form.
func Float() Decl { return scalarDecl{configtype.Float} }

type constrainedDecl struct {
	scalar  *configtype.Scalar
	pattern string
	min     float64
	max     float64
}

func (constrainedDecl) decl() {}

// StrMatching declares a constrained string field. Constraints are
// declaration metadata; the inferred schema type is the plain sourced
// string.
func StrMatching(pattern string) Decl {
	return constrainedDecl{scalar: configtype.StringSource, pattern: pattern}
}

// IntInRange declares a constrained integer field, inferred as the
// sourced integer type.
func IntInRange(min, max int64) Decl {
	return constrainedDecl{scalar: configtype.IntSource, min: float64(min), max: float64(max)}
}

// FloatInRange declares a constrained float field, inferred as the
// plain float type.
func FloatInRange(min, max float64) Decl {
	return constrainedDecl{scalar: configtype.Float, min: min, max: max}
}

type enumDecl struct {
	name   string
	values []configtype.EnumValue
}

func (enumDecl) decl() {}

// EnumOf declares an enumeration field with the given config-facing
// names and runtime values.
func EnumOf(name string, values ...configtype.EnumValue) Decl {
	return enumDecl{name: name, values: values}
}

type literalDecl struct {
	value string
}

func (literalDecl) decl() {}

// Literal declares a field fixed to a single string value. Its primary
// use is the discriminator field of a union branch.
func Literal(value string) Decl { return literalDecl{value} }

type classDecl struct {
	class *Class
}

func (classDecl) decl() {}

// Nested declares a field holding another config class.
func Nested(class *Class) Decl { return classDecl{class} }

type unionDecl struct {
	discriminator string
	branches      []Decl
}

func (unionDecl) decl() {}

// UnionOf declares a discriminated union. Each branch must be a Nested
// class declaring a Literal field named discriminatorKey; the literal
// value becomes the branch key users select with.
func UnionOf(discriminatorKey string, branches ...Decl) Decl {
	return unionDecl{discriminator: discriminatorKey, branches: branches}
}

type listDecl struct {
	elem Decl
}

func (listDecl) decl() {}

// List declares an ordered collection of the element declaration.
func List(elem Decl) Decl { return listDecl{elem} }

type mapDecl struct {
	key  Decl
	elem Decl
}

func (mapDecl) decl() {}

// MapOf declares a mapping. The key declaration must lower to one of
// the scalar types {string, int, bool, float}.
func MapOf(key, elem Decl) Decl { return mapDecl{key: key, elem: elem} }

type legacyFieldDecl struct {
	field *configtype.Field
}

func (legacyFieldDecl) decl() {}

// LegacyField wraps a raw canonical field for migration call sites.
// Structured classes reject it: mixing raw fields into a declarative
// class fails schema inference with a definition error.
func LegacyField(f *configtype.Field) Decl { return legacyFieldDecl{f} }
