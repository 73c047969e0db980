package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/flowgrid/internal/configval"
	"github.com/vk/flowgrid/internal/ctxlog"
)

// InitEnv is the shared state of one init pass: the handle-to-key
// mapping of the assembly, launch-time config per key, and the
// registries of already-built values. Each declaration builds at most
// once per env.
type InitEnv struct {
	mapping map[Handle]string
	launch  map[string]map[string]any
	cache   map[Handle]any
	byKey   map[string]any
	logger  *slog.Logger
}

func NewInitEnv(ctx context.Context, mapping map[Handle]string, launch map[string]map[string]any) *InitEnv {
	return &InitEnv{
		mapping: mapping,
		launch:  launch,
		cache:   map[Handle]any{},
		byKey:   map[string]any{},
		logger:  ctxlog.FromContext(ctx),
	}
}

// Resources is the live registry of built values by top-level key.
func (e *InitEnv) Resources() map[string]any { return e.byKey }

// Instantiate builds the live value for a declaration, building its
// nested dependencies first. Environment references in the config are
// resolved here and nowhere earlier.
func Instantiate(b Bindable, env *InitEnv) (any, error) {
	return b.instantiate(env)
}

// InitContext is handed to a factory's create function.
type InitContext struct {
	// Config is the fully processed config document.
	Config map[string]any
	// Nested holds the live values of nested declarations by field
	// name.
	Nested map[string]any
	// Resources holds live values by top-level key, for everything
	// built so far in this pass.
	Resources map[string]any
	Logger    *slog.Logger

	handleToKey map[Handle]string
	byHandle    map[Handle]any
}

// ResourceByHandle looks up a live value by declaration handle.
func (ic *InitContext) ResourceByHandle(h Handle) (any, bool) {
	v, ok := ic.byHandle[h]
	return v, ok
}

// KeyFor reports the top-level key a handle is bound to, if any.
func (ic *InitContext) KeyFor(h Handle) (string, bool) {
	key, ok := ic.handleToKey[h]
	return key, ok
}

func (r *Instance) instantiate(env *InitEnv) (any, error) {
	if v, ok := env.cache[r.h]; ok {
		return v, nil
	}
	nestedVals, err := instantiateNested(r.nested, env)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", r.factory.name, err)
	}

	var doc any = map[string]any{}
	if r.schema.HasDefault {
		doc = r.schema.DefaultValue
	}
	key, mapped := env.mapping[r.h]
	if mapped {
		if override := env.launch[key]; override != nil {
			base, _ := doc.(map[string]any)
			doc = deepMerge(base, override)
		}
	}
	processed, err := configval.Process(r.schema, doc)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", r.factory.name, err)
	}

	v, err := create(r.factory, processed, nestedVals, env)
	if err != nil {
		return nil, err
	}
	env.cache[r.h] = v
	if mapped {
		env.byKey[key] = v
	}
	env.logger.Debug("resource initialized", "resource", r.factory.name, "handle", int64(r.h))
	return v, nil
}

func (p *Partial) instantiate(env *InitEnv) (any, error) {
	if v, ok := env.cache[p.h]; ok {
		return v, nil
	}
	key, mapped := env.mapping[p.h]
	if !mapped {
		return nil, fmt.Errorf("resource %q: partially configured declaration is not bound to a top-level key", p.factory.name)
	}
	nestedVals, err := instantiateNested(p.nested, env)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", p.factory.name, err)
	}

	doc := deepMerge(p.values, env.launch[key])
	processed, err := configval.Process(p.schema, doc)
	if err != nil {
		return nil, fmt.Errorf("resource %q (key %q): %w", p.factory.name, key, err)
	}

	v, err := create(p.factory, processed, nestedVals, env)
	if err != nil {
		return nil, err
	}
	env.cache[p.h] = v
	env.byKey[key] = v
	env.logger.Debug("resource initialized", "resource", p.factory.name, "key", key)
	return v, nil
}

func instantiateNested(nested map[string]Bindable, env *InitEnv) (map[string]any, error) {
	names := make([]string, 0, len(nested))
	for name := range nested {
		names = append(names, name)
	}
	sort.Strings(names)

	vals := make(map[string]any, len(nested))
	for _, name := range names {
		v, err := nested[name].instantiate(env)
		if err != nil {
			return nil, fmt.Errorf("nested resource %q: %w", name, err)
		}
		vals[name] = v
	}
	return vals, nil
}

func create(f *Factory, processed any, nestedVals map[string]any, env *InitEnv) (any, error) {
	cfg, _ := processed.(map[string]any)
	ic := &InitContext{
		Config:      cfg,
		Nested:      nestedVals,
		Resources:   env.byKey,
		Logger:      env.logger,
		handleToKey: env.mapping,
		byHandle:    env.cache,
	}
	v, err := f.create(ic)
	if err != nil {
		return nil, fmt.Errorf("resource %q: create: %w", f.name, err)
	}
	return v, nil
}

// deepMerge layers override onto base, merging nested maps and letting
// override win on scalars. Neither input is mutated.
func deepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(bv, ov)
				continue
			}
		}
		out[k] = v
	}
	return out
}
