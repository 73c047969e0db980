// Package resource turns config classes into instantiable resource
// declarations. A Factory describes a resource kind; binding config
// values to it yields an Instance, or a Partial when the remaining
// config arrives at launch time. Declarations nest: a value bound to a
// field may itself be an Instance or Partial, and nested declarations
// instantiate bottom-up, at most once per init pass.
//
// Bound declarations are immutable. Every state transition returns a
// fresh value; mutation attempts fail with an InvocationError.
package resource

import (
	"fmt"
	"sort"

	"github.com/vk/flowgrid/internal/configclass"
	"github.com/vk/flowgrid/internal/configtype"
	"github.com/vk/flowgrid/internal/configval"
	"github.com/vk/flowgrid/internal/errs"
)

// CreateFunc builds the live resource value for one bound declaration.
type CreateFunc func(*InitContext) (any, error)

// Factory declares a resource kind: the config class its instances are
// configured with, and the function that turns processed config into
// the live value.
type Factory struct {
	name   string
	class  *configclass.Class
	create CreateFunc
}

func NewFactory(name string, class *configclass.Class, create CreateFunc) *Factory {
	return &Factory{name: name, class: class, create: create}
}

func (f *Factory) Name() string { return f.name }

// State tracks how far a declaration has progressed toward a live
// value.
type State int

const (
	StateDeclared State = iota
	StatePartiallyBound
	StateKeyResolved
)

// Bindable is a declaration that can participate in a definitions
// assembly: an Instance or a Partial.
type Bindable interface {
	Handle() Handle
	FactoryName() string
	// FullyConfigured reports whether the declaration can instantiate
	// with no launch-time config.
	FullyConfigured() bool
	// RequiredResourceKeys resolves the top-level keys the declaration
	// needs supplied at launch, given the assembly's handle-to-key
	// mapping.
	RequiredResourceKeys(mapping map[Handle]string) (map[string]struct{}, error)

	nestedDeps() map[string]Bindable
	withMapping(mapping map[Handle]string) Bindable
	instantiate(env *InitEnv) (any, error)
}

// WithMapping returns a key-resolved copy of a declaration carrying
// the handle-to-key mapping of its assembly.
func WithMapping(b Bindable, mapping map[Handle]string) Bindable {
	return b.withMapping(mapping)
}

// Instance is a resource declaration with its definition-time config
// bound. The bound values become defaults on the schema, so launch-time
// config may still override individual entries.
type Instance struct {
	h       Handle
	factory *Factory
	schema  *configtype.Field
	nested  map[string]Bindable
	state   State
	mapping map[Handle]string
}

// New binds values to a factory. Values that are themselves resource
// declarations are split out as nested dependencies; the rest is
// plain config, validated against the schema inferred from the class
// (with the resource-valued fields omitted) and layered onto it as
// defaults. Environment references stay unresolved until
// instantiation.
func New(factory *Factory, values map[string]any) (*Instance, error) {
	nested, plain := splitValues(values)
	schema, err := configclass.InferSchema(factory.class, omitSet(nested))
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", factory.name, err)
	}
	schema, err = configval.ApplyPartialDefaults(schema, plain)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", factory.name, err)
	}
	return &Instance{
		h:       newHandle(),
		factory: factory,
		schema:  schema,
		nested:  nested,
		state:   StatePartiallyBound,
	}, nil
}

func splitValues(values map[string]any) (map[string]Bindable, map[string]any) {
	nested := map[string]Bindable{}
	plain := map[string]any{}
	for name, v := range values {
		if b, ok := v.(Bindable); ok {
			nested[name] = b
			continue
		}
		plain[name] = v
	}
	return nested, plain
}

func omitSet(nested map[string]Bindable) map[string]struct{} {
	omit := make(map[string]struct{}, len(nested))
	for name := range nested {
		omit[name] = struct{}{}
	}
	return omit
}

func (r *Instance) Handle() Handle            { return r.h }
func (r *Instance) FactoryName() string       { return r.factory.name }
func (r *Instance) State() State              { return r.state }
func (r *Instance) Schema() *configtype.Field { return r.schema }

func (r *Instance) nestedDeps() map[string]Bindable { return r.nested }

// FullyConfigured reports whether the schema validates against its own
// default (or an empty document when it has none). Nested declarations
// do not factor in: a partial nested dependency is satisfied through
// the assembly's handle-to-key mapping, not by the owner.
func (r *Instance) FullyConfigured() bool {
	var doc any = map[string]any{}
	if r.schema.HasDefault {
		doc = r.schema.DefaultValue
	}
	return configval.Validate(r.schema, doc) == nil
}

// WithMapping returns a key-resolved copy of the declaration carrying
// the handle-to-key mapping of its assembly.
func (r *Instance) WithMapping(mapping map[Handle]string) *Instance {
	next := *r
	next.mapping = mapping
	next.state = StateKeyResolved
	return &next
}

func (r *Instance) withMapping(mapping map[Handle]string) Bindable {
	return r.WithMapping(mapping)
}

// Set rejects post-bind mutation.
func (r *Instance) Set(name string, value any) error {
	return errs.Invocationf(
		"resource %q is bound and immutable; %q cannot be set."+
			" Build a separate stateful client object around the resource value instead",
		r.factory.name, name)
}

// SetNested rejects post-bind rebinding of a nested declaration.
func (r *Instance) SetNested(name string, dep Bindable) error {
	return errs.Invocationf(
		"resource %q is bound and immutable; nested resource %q cannot be replaced."+
			" Build a separate stateful client object around the resource value instead",
		r.factory.name, name)
}

// RequiredResourceKeys resolves the top-level keys this declaration
// needs at launch: the mapped key of every nested declaration that is
// not fully configured, recursively. A partially configured nested
// declaration absent from the mapping cannot be satisfied and is an
// invariant violation of the assembly.
func (r *Instance) RequiredResourceKeys(mapping map[Handle]string) (map[string]struct{}, error) {
	return requiredKeys(r.factory.name, r.nested, mapping)
}

func requiredKeys(owner string, nested map[string]Bindable, mapping map[Handle]string) (map[string]struct{}, error) {
	keys := map[string]struct{}{}
	var unresolved []string
	collectRequiredKeys(nested, mapping, keys, &unresolved)
	if len(unresolved) > 0 {
		sort.Strings(unresolved)
		return nil, errs.Invariantf(
			"resource %q depends on partially configured resources that are not provided under a top-level key: %v",
			owner, unresolved)
	}
	return keys, nil
}

func collectRequiredKeys(nested map[string]Bindable, mapping map[Handle]string, keys map[string]struct{}, unresolved *[]string) {
	for name, b := range nested {
		if !b.FullyConfigured() {
			key, ok := mapping[b.Handle()]
			if !ok {
				*unresolved = append(*unresolved, fmt.Sprintf("%s (resource %s)", name, b.FactoryName()))
				continue
			}
			keys[key] = struct{}{}
		}
		collectRequiredKeys(b.nestedDeps(), mapping, keys, unresolved)
	}
}
