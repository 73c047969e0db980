// Package defs assembles resource declarations under top-level keys
// and drives their initialization for a run.
package defs

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/flowgrid/internal/events"
	"github.com/vk/flowgrid/internal/resource"
)

// Definitions is one assembly of resource declarations, each bound to
// a top-level key. The handle-to-key mapping is computed once at
// construction and shared by everything the assembly does.
type Definitions struct {
	resources map[string]resource.Bindable
	mapping   map[resource.Handle]string
}

func New(resources map[string]resource.Bindable) *Definitions {
	mapping := make(map[resource.Handle]string, len(resources))
	for key, b := range resources {
		mapping[b.Handle()] = key
	}
	return &Definitions{resources: resources, mapping: mapping}
}

// Keys lists the top-level keys of the assembly, sorted.
func (d *Definitions) Keys() []string {
	keys := make([]string, 0, len(d.resources))
	for key := range d.resources {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Mapping exposes the assembly's handle-to-key mapping.
func (d *Definitions) Mapping() map[resource.Handle]string { return d.mapping }

// Bound is a validated assembly: every partially configured
// declaration, nested ones included, resolved to a top-level key. It
// holds key-resolved copies of the declarations; the assembly's
// originals stay untouched.
type Bound struct {
	defs     *Definitions
	resolved map[string]resource.Bindable
	required map[string]struct{}
}

// Bind resolves every declaration against the mapping and computes the
// keys that must receive launch-time config. A nested partial that is
// not provided under any top-level key fails here, before any run
// starts.
func (d *Definitions) Bind() (*Bound, error) {
	resolved := make(map[string]resource.Bindable, len(d.resources))
	required := map[string]struct{}{}
	for _, key := range d.Keys() {
		b := d.resources[key]
		if !b.FullyConfigured() {
			required[key] = struct{}{}
		}
		keys, err := b.RequiredResourceKeys(d.mapping)
		if err != nil {
			return nil, fmt.Errorf("binding resource %q: %w", key, err)
		}
		for k := range keys {
			required[k] = struct{}{}
		}
		resolved[key] = resource.WithMapping(b, d.mapping)
	}
	return &Bound{defs: d, resolved: resolved, required: required}, nil
}

// RequiredKeys lists the keys that need launch-time config, sorted.
func (b *Bound) RequiredKeys() []string {
	keys := make([]string, 0, len(b.required))
	for key := range b.required {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// InitResources instantiates every resource of the assembly bottom-up,
// emitting resource-init events through the plan context. The first
// failing declaration aborts the remainder.
func (b *Bound) InitResources(ctx context.Context, pc *events.PlanContext, launch map[string]map[string]any) (map[string]any, []*events.Event, error) {
	keys := b.defs.Keys()
	var log []*events.Event

	started, err := events.ResourceInitStartedEvent(ctx, pc, keys)
	if err != nil {
		return nil, nil, err
	}
	log = append(log, started)

	env := resource.NewInitEnv(ctx, b.defs.mapping, launch)
	for _, key := range keys {
		if _, err := resource.Instantiate(b.resolved[key], env); err != nil {
			failed, evErr := events.ResourceInitFailureEvent(ctx, pc, keys, err)
			if evErr != nil {
				return nil, nil, evErr
			}
			log = append(log, failed)
			return nil, log, fmt.Errorf("initializing resource %q: %w", key, err)
		}
	}

	succeeded, err := events.ResourceInitSuccessEvent(ctx, pc, keys)
	if err != nil {
		return nil, nil, err
	}
	log = append(log, succeeded)
	return env.Resources(), log, nil
}
