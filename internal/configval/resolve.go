package configval

import (
	"os"
	"strconv"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/flowgrid/internal/configtype"
)

// Process validates raw against the schema field and resolves it into
// a plain value tree: defaults filled in, enum names mapped to their
// declared values, selector discriminators injected, and environment
// references read. A reference to an unset variable fails here, never
// during validation.
func Process(field *configtype.Field, raw any) (any, error) {
	raw = orFieldDefault(field, raw)
	if err := Validate(field, raw); err != nil {
		return nil, err
	}
	return resolveTop(field, raw, resolveOpts{readEnv: true, finalize: true})
}

// ResolveDefaults resolves raw the way Process does, except that
// environment references are carried through intact. Used when a value
// tree must be composed ahead of the point where its environment is
// known.
func ResolveDefaults(field *configtype.Field, raw any) (any, error) {
	raw = orFieldDefault(field, raw)
	if err := Validate(field, raw); err != nil {
		return nil, err
	}
	return resolveTop(field, raw, resolveOpts{})
}

// orFieldDefault substitutes the field's own default for an absent
// top-level document.
func orFieldDefault(field *configtype.Field, raw any) any {
	if raw == nil && field.HasDefault {
		return field.DefaultValue
	}
	return raw
}

// ApplyAdditionalDefaults layers defaults onto a schema field,
// producing a new optional field. The new values must validate against
// the field on their own, before any layering; a document that only
// becomes complete through the old default tree is rejected. When the
// field already carries a default, the validated values are then
// merged over the old default tree, so entries absent from defaults
// keep their previously defaulted values. The combined document is
// validated and resolved (env references intact) into one merged
// default.
func ApplyAdditionalDefaults(field *configtype.Field, defaults any) (*configtype.Field, error) {
	standalone := &collector{}
	validateValue(field.Type, defaults, nil, standalone)
	if err := standalone.err("invalid additional defaults"); err != nil {
		return nil, err
	}

	doc := defaults
	if field.HasDefault {
		if base, ok := field.DefaultValue.(map[string]any); ok {
			if over, ok := defaults.(map[string]any); ok {
				doc = mergeTrees(base, over)
			}
		}
	}

	c := &collector{}
	validateValue(field.Type, doc, nil, c)
	if err := c.err("invalid additional defaults"); err != nil {
		return nil, err
	}
	merged, err := resolveTop(field, doc, resolveOpts{})
	if err != nil {
		return nil, err
	}
	return field.WithDefault(merged), nil
}

// ApplyPartialDefaults layers defaults the way ApplyAdditionalDefaults
// does, but tolerates missing required entries: the caller completes
// the document later and full validation happens then. Present values
// are still checked.
func ApplyPartialDefaults(field *configtype.Field, defaults any) (*configtype.Field, error) {
	doc := defaults
	if field.HasDefault {
		if base, ok := field.DefaultValue.(map[string]any); ok {
			if over, ok := defaults.(map[string]any); ok {
				doc = mergeTrees(base, over)
			}
		}
	}

	c := &collector{}
	validateValue(field.Type, doc, nil, c)
	kept := c.entries[:0]
	for _, entry := range c.entries {
		if !entry.Missing {
			kept = append(kept, entry)
		}
	}
	c.entries = kept
	if err := c.err("invalid partial defaults"); err != nil {
		return nil, err
	}
	merged, err := resolveTop(field, doc, resolveOpts{})
	if err != nil {
		return nil, err
	}
	return field.WithDefault(merged), nil
}

// mergeTrees layers override onto base, merging nested maps and
// letting override win elsewhere. Neither input is mutated.
func mergeTrees(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := out[k].(map[string]any); ok {
				out[k] = mergeTrees(bv, ov)
				continue
			}
		}
		out[k] = v
	}
	return out
}

type resolveOpts struct {
	// readEnv resolves environment references; finalize additionally
	// maps enum names to their values and injects selector
	// discriminators. Both are off when composing defaults, so the
	// result stays a valid input document for later processing.
	readEnv  bool
	finalize bool
}

func resolveTop(field *configtype.Field, raw any, opts resolveOpts) (any, error) {
	c := &collector{}
	out := resolveValue(field.Type, raw, nil, opts, c)
	if err := c.err("config resolution failed"); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveValue(t configtype.Type, v any, path cty.Path, opts resolveOpts, c *collector) any {
	if n, ok := t.(*configtype.Noneable); ok {
		if v == nil {
			return nil
		}
		return resolveValue(n.Inner, v, path, opts, c)
	}

	switch ct := t.(type) {
	case *configtype.Scalar:
		return resolveScalar(ct, v, path, opts, c)
	case *configtype.Enum:
		if !opts.finalize {
			return v
		}
		name, _ := v.(string)
		if member, ok := ct.ValueFor(name); ok {
			return member
		}
		return v
	case *configtype.Array:
		items, _ := v.([]any)
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = resolveValue(ct.Elem, item, pathIndex(path, cty.NumberIntVal(int64(i))), opts, c)
		}
		return out
	case *configtype.Map:
		entries, _ := v.(map[string]any)
		out := make(map[string]any, len(entries))
		for key, val := range entries {
			out[key] = resolveValue(ct.Elem, val, pathIndex(path, cty.StringVal(key)), opts, c)
		}
		return out
	case *configtype.Shape:
		return resolveShape(ct, v, path, opts, c)
	case *configtype.Selector:
		return resolveSelector(ct, v, path, opts, c)
	default:
		return v
	}
}

func resolveShape(s *configtype.Shape, v any, path cty.Path, opts resolveOpts, c *collector) any {
	values, _ := v.(map[string]any)
	out := make(map[string]any, len(s.Fields))

	for _, name := range s.FieldNames() {
		field := s.Fields[name]
		fieldPath := pathAttr(path, name)
		if raw, present := values[name]; present {
			out[name] = resolveValue(field.Type, raw, fieldPath, opts, c)
			continue
		}
		if field.HasDefault {
			out[name] = resolveValue(field.Type, field.DefaultValue, fieldPath, opts, c)
		}
	}

	if s.Permissive {
		for key, val := range values {
			if _, declared := s.Fields[key]; !declared {
				out[key] = val
			}
		}
	}
	return out
}

// resolveSelector resolves the chosen branch and injects the
// discriminator entry, so downstream consumers see a flat map that
// identifies which branch was taken.
func resolveSelector(s *configtype.Selector, v any, path cty.Path, opts resolveOpts, c *collector) any {
	values, _ := v.(map[string]any)
	for branch, branchVal := range values {
		field, ok := s.Branches[branch]
		if !ok {
			return v
		}
		resolved := resolveValue(field.Type, branchVal, pathAttr(path, branch), opts, c)
		if !opts.finalize {
			return map[string]any{branch: resolved}
		}
		if m, isMap := resolved.(map[string]any); isMap && s.DiscriminatorKey != "" {
			m[s.DiscriminatorKey] = branch
			return m
		}
		return map[string]any{branch: resolved}
	}
	return v
}

func resolveScalar(s *configtype.Scalar, v any, path cty.Path, opts resolveOpts, c *collector) any {
	name, isRef := IsEnvRef(v)
	if !isRef {
		return v
	}
	if !opts.readEnv {
		return v
	}
	value, set := os.LookupEnv(name)
	if !set {
		c.add(path, "attempted to read the environment variable %q, which is not set", name)
		return nil
	}
	parsed, err := parseEnvValue(s, value)
	if err != nil {
		c.add(path, "environment variable %q holds %q, which is not a valid %s",
			name, value, s.FriendlyName())
		return nil
	}
	return parsed
}

// parseEnvValue interprets an environment variable's text per the
// scalar it feeds. Environment values are always strings, so sourced
// scalars are where the one permitted string-to-scalar conversion
// happens.
func parseEnvValue(s *configtype.Scalar, value string) (any, error) {
	switch s.CtyType() {
	case cty.String:
		return value, nil
	case cty.Bool:
		return strconv.ParseBool(value)
	default:
		if s.RequiresInteger() {
			return strconv.ParseInt(value, 10, 64)
		}
		return strconv.ParseFloat(value, 64)
	}
}
