package resource

import (
	"fmt"

	"github.com/vk/flowgrid/internal/configclass"
	"github.com/vk/flowgrid/internal/configtype"
	"github.com/vk/flowgrid/internal/errs"
)

// Partial is a resource declaration whose config is completed at
// launch time. The values given here are carried as a base document
// that the launch-time config is merged over; nothing is validated
// until the merged document is processed during instantiation.
type Partial struct {
	h       Handle
	factory *Factory
	schema  *configtype.Field
	values  map[string]any
	nested  map[string]Bindable
	mapping map[Handle]string
}

// ConfigureAtLaunch declares a resource whose remaining config is
// supplied through the launch-time context under the key it is bound
// to.
func ConfigureAtLaunch(factory *Factory, values map[string]any) (*Partial, error) {
	nested, plain := splitValues(values)
	schema, err := configclass.InferSchema(factory.class, omitSet(nested))
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", factory.name, err)
	}
	return &Partial{
		h:       newHandle(),
		factory: factory,
		schema:  schema,
		values:  plain,
		nested:  nested,
	}, nil
}

func (p *Partial) Handle() Handle      { return p.h }
func (p *Partial) FactoryName() string { return p.factory.name }

// FullyConfigured is always false for a partial; that is the point.
func (p *Partial) FullyConfigured() bool { return false }

func (p *Partial) nestedDeps() map[string]Bindable { return p.nested }

// WithMapping returns a key-resolved copy of the declaration carrying
// the handle-to-key mapping of its assembly.
func (p *Partial) WithMapping(mapping map[Handle]string) *Partial {
	next := *p
	next.mapping = mapping
	return &next
}

func (p *Partial) withMapping(mapping map[Handle]string) Bindable {
	return p.WithMapping(mapping)
}

// RequiredResourceKeys resolves the launch keys of the partial's own
// nested declarations.
func (p *Partial) RequiredResourceKeys(mapping map[Handle]string) (map[string]struct{}, error) {
	return requiredKeys(p.factory.name, p.nested, mapping)
}

// Set rejects post-declaration mutation.
func (p *Partial) Set(name string, value any) error {
	return errs.Invocationf(
		"resource %q is declared and immutable; %q cannot be set."+
			" Build a separate stateful client object around the resource value instead",
		p.factory.name, name)
}

// SetNested rejects post-declaration rebinding of a nested declaration.
func (p *Partial) SetNested(name string, dep Bindable) error {
	return errs.Invocationf(
		"resource %q is declared and immutable; nested resource %q cannot be replaced."+
			" Build a separate stateful client object around the resource value instead",
		p.factory.name, name)
}
