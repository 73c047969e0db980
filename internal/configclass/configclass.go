// Package configclass provides the declarative builder for structured
// configuration classes and the inference engine that turns a class
// into its canonical config-type tree.
//
// Classes are constructed explicitly through the registration API at
// module load, producing a static declaration; there is no runtime
// reflection over user types. A class declares an ordered, closed set
// of named fields, each with a declaration value describing its
// semantic type, an optional container kind (list or map), optionality,
// default, and description.
package configclass

import (
	"github.com/vk/flowgrid/internal/errs"
)

// Class is a structured configuration class declaration. Build one
// with New; it is immutable once constructed.
type Class struct {
	name        string
	doc         string
	extrasAllow bool
	fields      []*FieldDecl
}

// FieldDecl is a single field declaration within a class.
type FieldDecl struct {
	name        string
	decl        Decl
	required    bool
	hasDefault  bool
	defaultVal  any
	doc         string
	allowNone   bool
}

// Name returns the field's config-facing name.
func (f *FieldDecl) Name() string { return f.name }

// ClassOption configures a Class under construction.
type ClassOption interface {
	applyClass(*Class) error
}

// FieldOption configures a field declaration.
type FieldOption interface {
	applyField(*FieldDecl)
}

type classOptionFunc func(*Class) error

func (fn classOptionFunc) applyClass(c *Class) error { return fn(c) }

type fieldOptionFunc func(*FieldDecl)

func (fn fieldOptionFunc) applyField(f *FieldDecl) { fn(f) }

// New builds a class declaration. Field names must be unique; a
// duplicate fails with a definition error. New panics on a malformed
// declaration because classes are declared once at module load, where
// a panic is the declaration-time analogue of a compile error; use
// Build for the error-returning form.
func New(name string, opts ...ClassOption) *Class {
	c, err := Build(name, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Build is the error-returning form of New.
func Build(name string, opts ...ClassOption) (*Class, error) {
	c := &Class{name: name}
	for _, opt := range opts {
		if err := opt.applyClass(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// ExtrasAllowed reports whether the class accepts undeclared keys.
func (c *Class) ExtrasAllowed() bool { return c.extrasAllow }

// Fields returns the field declarations in declaration order.
func (c *Class) Fields() []*FieldDecl { return c.fields }

// FieldNamed returns the declaration for the named field, if present.
func (c *Class) FieldNamed(name string) (*FieldDecl, bool) {
	for _, f := range c.fields {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

// Field declares a named field. Fields are required unless Default or
// Optional is applied.
func Field(name string, decl Decl, opts ...FieldOption) ClassOption {
	return classOptionFunc(func(c *Class) error {
		if _, exists := c.FieldNamed(name); exists {
			return errs.Definitionf("config class %q declares field %q more than once", c.name, name)
		}
		f := &FieldDecl{name: name, decl: decl, required: true}
		for _, opt := range opts {
			opt.applyField(f)
		}
		c.fields = append(c.fields, f)
		return nil
	})
}

// Permissive marks the class as accepting arbitrary extra keys at
// validation time.
func Permissive() ClassOption {
	return classOptionFunc(func(c *Class) error {
		c.extrasAllow = true
		return nil
	})
}

// Doc attaches a description to a class or a field.
func Doc(s string) interface {
	ClassOption
	FieldOption
} {
	return docOption(s)
}

type docOption string

func (d docOption) applyClass(c *Class) error { c.doc = string(d); return nil }
func (d docOption) applyField(f *FieldDecl)   { f.doc = string(d) }

// Default attaches a default value to a field; the field becomes
// optional.
func Default(v any) FieldOption {
	return fieldOptionFunc(func(f *FieldDecl) {
		f.required = false
		f.hasDefault = true
		f.defaultVal = v
	})
}

// Optional marks a field not required without attaching a default.
// The resolved value may then be absent only if the field's type
// permits absence (AllowNone).
func Optional() FieldOption {
	return fieldOptionFunc(func(f *FieldDecl) { f.required = false })
}

// AllowNone permits an explicit null value for the field.
func AllowNone() FieldOption {
	return fieldOptionFunc(func(f *FieldDecl) { f.allowNone = true })
}
