// Package runconfig loads raw run-config documents from YAML, JSON or
// HCL into plain map trees suitable for validation. All numbers
// normalize to int64 when integral and float64 otherwise, regardless
// of source format.
package runconfig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// FromYAML parses a YAML document into a normalized config tree.
func FromYAML(src []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML run config: %w", err)
	}
	out, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

// FromJSON parses a JSON document into a normalized config tree.
func FromJSON(src []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing JSON run config: %w", err)
	}
	out, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

// FromHCL evaluates an attribute-only HCL body into a normalized
// config tree.
func FromHCL(src []byte, filename string) (map[string]any, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing HCL run config: %w", diags)
	}
	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("reading HCL attributes: %w", diags)
	}

	out := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(&hcl.EvalContext{})
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating attribute %q: %w", name, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = native
	}
	return out, nil
}

// ctyToNative lowers an evaluated cty value into the plain tree form.
func ctyToNative(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	t := val.Type()
	switch {
	case t == cty.String:
		return val.AsString(), nil
	case t == cty.Bool:
		return val.True(), nil
	case t == cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			n, _ := bf.Int64()
			return n, nil
		}
		f, _ := bf.Float64()
		return f, nil
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		items := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			native, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			items = append(items, native)
		}
		return items, nil
	case t.IsObjectType() || t.IsMapType():
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			native, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			out[kv.AsString()] = native
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported HCL value of type %s", t.FriendlyName())
}

// normalize rewrites a decoded YAML/JSON tree into string-keyed maps
// with canonical number types.
func normalize(v any) (any, error) {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			nv, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			ks, ok := k.(string)
			if !ok {
				ks = fmt.Sprintf("%v", k)
			}
			nv, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[ks] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(tv))
		for i, val := range tv {
			nv, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case json.Number:
		if n, err := tv.Int64(); err == nil {
			return n, nil
		}
		f, err := tv.Float64()
		if err != nil {
			return nil, fmt.Errorf("unparseable number %q", tv.String())
		}
		return f, nil
	case int:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case uint:
		return int64(tv), nil
	case uint32:
		return int64(tv), nil
	case uint64:
		return int64(tv), nil
	case float64:
		if tv == float64(int64(tv)) {
			return int64(tv), nil
		}
		return tv, nil
	case float32:
		return normalize(float64(tv))
	default:
		return v, nil
	}
}
