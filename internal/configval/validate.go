// Package configval validates raw configuration values against a
// canonical config-type tree and resolves them into value trees:
// defaults applied, discriminators injected, environment references
// resolved at the point of use.
//
// Validation never stops at the first problem; every violation in the
// document is collected and surfaced as a single structured error.
package configval

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/flowgrid/internal/configtype"
	"github.com/vk/flowgrid/internal/errs"
)

// EnvVar builds the environment-variable reference form of a sourced
// scalar value: {"env": name}. The variable is read when the value is
// processed, not when the reference is declared.
func EnvVar(name string) map[string]any {
	return map[string]any{"env": name}
}

// IsEnvRef reports whether a raw value is an environment-variable
// reference, returning the variable name.
func IsEnvRef(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	name, ok := m["env"].(string)
	return name, ok
}

// Validate checks raw against the schema field, collecting every
// violation. It returns nil on success and a *errs.ValidationError
// otherwise. Environment references are shape-checked but not read.
func Validate(field *configtype.Field, raw any) error {
	c := &collector{}
	validateValue(field.Type, raw, nil, c)
	return c.err("invalid config")
}

type collector struct {
	entries []errs.ValidationEntry
}

func (c *collector) add(path cty.Path, format string, args ...any) {
	c.entries = append(c.entries, errs.ValidationEntry{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

func (c *collector) addMissing(path cty.Path, format string, args ...any) {
	c.entries = append(c.entries, errs.ValidationEntry{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
		Missing: true,
	})
}

func (c *collector) err(header string) error {
	if len(c.entries) == 0 {
		return nil
	}
	return &errs.ValidationError{Header: header, Entries: c.entries}
}

// pathAttr extends a path without aliasing the caller's backing array.
func pathAttr(p cty.Path, name string) cty.Path {
	np := make(cty.Path, len(p), len(p)+1)
	copy(np, p)
	return append(np, cty.GetAttrStep{Name: name})
}

func pathIndex(p cty.Path, key cty.Value) cty.Path {
	np := make(cty.Path, len(p), len(p)+1)
	copy(np, p)
	return append(np, cty.IndexStep{Key: key})
}

func validateValue(t configtype.Type, v any, path cty.Path, c *collector) {
	if n, ok := t.(*configtype.Noneable); ok {
		if v == nil {
			return
		}
		validateValue(n.Inner, v, path, c)
		return
	}
	if v == nil {
		c.add(path, "got null where %s was expected", t.FriendlyName())
		return
	}

	switch ct := t.(type) {
	case *configtype.Scalar:
		validateScalar(ct, v, path, c)
	case *configtype.Enum:
		validateEnum(ct, v, path, c)
	case *configtype.Array:
		validateArray(ct, v, path, c)
	case *configtype.Map:
		validateMap(ct, v, path, c)
	case *configtype.Shape:
		validateShape(ct, v, path, c)
	case *configtype.Selector:
		validateSelector(ct, v, path, c)
	default:
		c.add(path, "unsupported schema type %T", t)
	}
}

// validateScalar checks a scalar leaf. Literals are checked strictly by
// their cty type: no cross-type coercion, so the string "3" is not a
// valid Int. Sourced scalars additionally accept an env reference map.
func validateScalar(s *configtype.Scalar, v any, path cty.Path, c *collector) {
	if m, isMap := v.(map[string]any); isMap {
		if !s.Sourced() {
			c.add(path, "got a map where %s was expected; %s values cannot be sourced from the environment",
				s.FriendlyName(), s.FriendlyName())
			return
		}
		if _, ok := IsEnvRef(m); !ok {
			c.add(path, `a sourced %s map value must have exactly the form {"env": "VAR_NAME"}`,
				s.FriendlyName())
		}
		return
	}

	val, ok := ctyScalar(v)
	if !ok {
		c.add(path, "got value %v of type %T where %s was expected", v, v, s.FriendlyName())
		return
	}
	if !val.Type().Equals(s.CtyType()) {
		c.add(path, "got value %v of type %s where %s was expected",
			v, val.Type().FriendlyName(), s.FriendlyName())
		return
	}
	if s.RequiresInteger() {
		if bf := val.AsBigFloat(); !bf.IsInt() {
			c.add(path, "got non-integer number %v where Int was expected", v)
		}
	}
}

// ctyScalar lifts a native scalar into its implied primitive cty value.
func ctyScalar(v any) (cty.Value, bool) {
	t, err := gocty.ImpliedType(v)
	if err != nil || !t.IsPrimitiveType() {
		return cty.NilVal, false
	}
	val, err := gocty.ToCtyValue(v, t)
	if err != nil {
		return cty.NilVal, false
	}
	return val, true
}

func validateEnum(e *configtype.Enum, v any, path cty.Path, c *collector) {
	name, ok := v.(string)
	if !ok {
		c.add(path, "got value %v of type %T where a member name of %s was expected",
			v, v, e.FriendlyName())
		return
	}
	if _, ok := e.ValueFor(name); !ok {
		c.add(path, "value %q is not a member of %s; permitted members are %v",
			name, e.FriendlyName(), e.Names())
	}
}

func validateArray(a *configtype.Array, v any, path cty.Path, c *collector) {
	items, ok := v.([]any)
	if !ok {
		c.add(path, "got value of type %T where %s was expected", v, a.FriendlyName())
		return
	}
	for i, item := range items {
		validateValue(a.Elem, item, pathIndex(path, cty.NumberIntVal(int64(i))), c)
	}
}

func validateMap(m *configtype.Map, v any, path cty.Path, c *collector) {
	entries, ok := v.(map[string]any)
	if !ok {
		c.add(path, "got value of type %T where %s was expected", v, m.FriendlyName())
		return
	}
	for _, key := range sortedKeys(entries) {
		if _, err := parseMapKey(m.Key, key); err != nil {
			c.add(path, "map key %q is not a valid %s", key, m.Key.FriendlyName())
		}
		validateValue(m.Elem, entries[key], pathIndex(path, cty.StringVal(key)), c)
	}
}

// parseMapKey checks a raw document key (always a string) against the
// declared key scalar.
func parseMapKey(key *configtype.Scalar, raw string) (any, error) {
	switch key.CtyType() {
	case cty.String:
		return raw, nil
	case cty.Bool:
		return strconv.ParseBool(raw)
	default:
		if key.RequiresInteger() {
			return strconv.ParseInt(raw, 10, 64)
		}
		return strconv.ParseFloat(raw, 64)
	}
}

func validateShape(s *configtype.Shape, v any, path cty.Path, c *collector) {
	values, ok := v.(map[string]any)
	if !ok {
		c.add(path, "got value of type %T where %s was expected", v, s.FriendlyName())
		return
	}

	for _, name := range s.FieldNames() {
		field := s.Fields[name]
		fieldPath := pathAttr(path, name)
		raw, present := values[name]
		if !present {
			if field.Required {
				c.addMissing(fieldPath, "missing required config entry %q", name)
			}
			continue
		}
		validateValue(field.Type, raw, fieldPath, c)
	}

	if !s.Permissive {
		for _, name := range sortedKeys(values) {
			if _, declared := s.Fields[name]; !declared {
				c.add(pathAttr(path, name), "received unexpected config entry %q", name)
			}
		}
	}
}

func validateSelector(s *configtype.Selector, v any, path cty.Path, c *collector) {
	values, ok := v.(map[string]any)
	if !ok {
		c.add(path, "got value of type %T where %s was expected", v, s.FriendlyName())
		return
	}
	if len(values) != 1 {
		c.add(path, "a selector value must have exactly one entry naming the chosen branch;"+
			" permitted branches are %v", s.BranchNames())
		return
	}
	for branch, branchVal := range values {
		field, ok := s.Branches[branch]
		if !ok {
			c.add(pathAttr(path, branch), "received unexpected selector branch %q; permitted branches are %v",
				branch, s.BranchNames())
			return
		}
		validateValue(field.Type, branchVal, pathAttr(path, branch), c)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
