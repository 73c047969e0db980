package configclass

import (
	"github.com/vk/flowgrid/internal/configtype"
	"github.com/vk/flowgrid/internal/errs"
)

// InferSchema lowers a class declaration into a canonical config
// field. Fields named in fieldsToOmit are skipped; callers use this to
// strip nested-resource fields and union discriminators out of the
// config surface. The returned field's type is a Shape, or Permissive
// when the class allows extras.
func InferSchema(class *Class, fieldsToOmit map[string]struct{}) (*configtype.Field, error) {
	if class == nil {
		return nil, errs.Definitionf("schema inference requires a config class declaration, got nil")
	}

	fields := make(map[string]*configtype.Field, len(class.fields))
	for _, fd := range class.fields {
		if _, omit := fieldsToOmit[fd.name]; omit {
			continue
		}
		converted, err := convertFieldDecl(class, fd)
		if err != nil {
			return nil, err
		}
		fields[fd.name] = converted
	}

	shape := &configtype.Shape{Fields: fields, Permissive: class.extrasAllow}
	out := configtype.NewField(shape)
	if class.doc != "" {
		out = out.WithDescription(class.doc)
	}
	return out, nil
}

// convertFieldDecl lowers a single field declaration, applying the
// container wrapping, optionality, default, and none-ability.
func convertFieldDecl(class *Class, fd *FieldDecl) (*configtype.Field, error) {
	if _, isLegacy := fd.decl.(legacyFieldDecl); isLegacy {
		return nil, errs.Definitionf(
			"config class %q field %q: raw config fields are not supported within a structured"+
				" config class; raw fields belong to legacy schemas only", class.name, fd.name)
	}

	t, err := convertDecl(class, fd.name, fd.decl)
	if err != nil {
		return nil, err
	}
	if fd.allowNone {
		t = &configtype.Noneable{Inner: t}
	}

	out := configtype.NewField(t)
	if fd.doc != "" {
		out = out.WithDescription(fd.doc)
	}
	switch {
	case fd.hasDefault:
		out = out.WithDefault(fd.defaultVal)
	case !fd.required:
		out = out.Optional()
	case fd.required:
		if lit, ok := fd.decl.(literalDecl); ok {
			// A literal carries its own value; users never supply it.
			out = out.WithDefault(lit.value)
		}
	}
	return out, nil
}

func convertDecl(class *Class, fieldName string, decl Decl) (configtype.Type, error) {
	switch d := decl.(type) {
	case scalarDecl:
		return d.scalar, nil

	case constrainedDecl:
		// Constrained scalars lower to their source equivalents (plain
		// float for constrained floats); the constraint itself is
		// declaration metadata.
		return d.scalar, nil

	case literalDecl:
		return configtype.StringSource, nil

	case enumDecl:
		if len(d.values) == 0 {
			return nil, errs.Definitionf(
				"config class %q field %q: enum %q declares no values", class.name, fieldName, d.name)
		}
		return &configtype.Enum{Name: d.name, Values: d.values}, nil

	case classDecl:
		nested, err := InferSchema(d.class, nil)
		if err != nil {
			return nil, err
		}
		return nested.Type, nil

	case unionDecl:
		return convertUnionDecl(class, fieldName, d)

	case listDecl:
		elem, err := convertDecl(class, fieldName, d.elem)
		if err != nil {
			return nil, err
		}
		return &configtype.Array{Elem: elem}, nil

	case mapDecl:
		key, err := mapKeyScalar(class, fieldName, d.key)
		if err != nil {
			return nil, err
		}
		elem, err := convertDecl(class, fieldName, d.elem)
		if err != nil {
			return nil, err
		}
		return &configtype.Map{Key: key, Elem: elem}, nil

	case legacyFieldDecl:
		return nil, errs.Definitionf(
			"config class %q field %q: raw config fields are not supported within a structured"+
				" config class", class.name, fieldName)

	default:
		return nil, errs.Definitionf(
			"config class %q field %q: unsupported declaration value %T", class.name, fieldName, decl)
	}
}

// mapKeyScalar validates that a map key declaration lowers to one of
// the permitted scalar key types.
func mapKeyScalar(class *Class, fieldName string, key Decl) (*configtype.Scalar, error) {
	var scalar *configtype.Scalar
	switch k := key.(type) {
	case scalarDecl:
		scalar = k.scalar
	case constrainedDecl:
		scalar = k.scalar
	default:
		return nil, errs.NotImplementedf(
			"config class %q field %q: map key declaration %T is not a valid Map key type;"+
				" valid Map key types are string, int, bool, and float", class.name, fieldName, key)
	}
	return scalar, nil
}

// convertUnionDecl builds a Selector from a discriminated union
// declaration. Branch keys come from each branch class's discriminator
// literal, and branch schemas have the discriminator field stripped:
// the user selects the branch by key rather than supplying the
// discriminator explicitly.
func convertUnionDecl(class *Class, fieldName string, d unionDecl) (configtype.Type, error) {
	if d.discriminator == "" {
		return nil, errs.Definitionf(
			"config class %q field %q: discriminated union requires a discriminator key",
			class.name, fieldName)
	}
	if len(d.branches) == 0 {
		return nil, errs.Definitionf(
			"config class %q field %q: discriminated union declares no branches", class.name, fieldName)
	}

	branches := make(map[string]*configtype.Field, len(d.branches))
	for _, branch := range d.branches {
		cd, ok := branch.(classDecl)
		if !ok || cd.class == nil {
			return nil, errs.NotImplementedf(
				"config class %q field %q: discriminated unions over non-config branches are not"+
					" supported", class.name, fieldName)
		}
		branchClass := cd.class

		discField, ok := branchClass.FieldNamed(d.discriminator)
		if !ok {
			return nil, errs.Definitionf(
				"config class %q field %q: union branch %q does not declare discriminator field %q",
				class.name, fieldName, branchClass.name, d.discriminator)
		}
		lit, ok := discField.decl.(literalDecl)
		if !ok {
			return nil, errs.Definitionf(
				"config class %q field %q: union branch %q discriminator field %q must be a Literal",
				class.name, fieldName, branchClass.name, d.discriminator)
		}
		if _, dup := branches[lit.value]; dup {
			return nil, errs.Definitionf(
				"config class %q field %q: duplicate union branch key %q", class.name, fieldName, lit.value)
		}

		branchField, err := InferSchema(branchClass, map[string]struct{}{d.discriminator: {}})
		if err != nil {
			return nil, err
		}
		branches[lit.value] = branchField
	}

	return &configtype.Selector{Branches: branches, DiscriminatorKey: d.discriminator}, nil
}
