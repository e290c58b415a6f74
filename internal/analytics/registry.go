package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Params are caller-supplied operation parameters, merged over a descriptor's
// defaults before invocation.
type Params map[string]any

type Handler func(ctx context.Context, params Params) (RowSet, error)

// Descriptor is an immutable operation registration: resolved by exact name,
// invoked with merged parameters.
type Descriptor struct {
	Name           string
	Description    string
	Handler        Handler
	RequiredParams []string
	DefaultParams  Params
}

type Registry struct {
	descriptors map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{descriptors: map[string]Descriptor{}}
}

func (r *Registry) Register(descriptor Descriptor) error {
	if descriptor.Name == "" {
		return fmt.Errorf("operation name is required")
	}
	if descriptor.Handler == nil {
		return fmt.Errorf("operation %q: handler is required", descriptor.Name)
	}
	if _, exists := r.descriptors[descriptor.Name]; exists {
		return fmt.Errorf("operation %q is already registered", descriptor.Name)
	}
	r.descriptors[descriptor.Name] = descriptor
	return nil
}

// Resolve looks up a descriptor by exact name. No partial matching.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	descriptor, ok := r.descriptors[name]
	if !ok {
		return Descriptor{}, NewError(KindUnknownOperation, fmt.Sprintf("unknown operation %q", name))
	}
	return descriptor, nil
}

func (r *Registry) List() []Descriptor {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]Descriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, r.descriptors[name])
	}
	return descriptors
}

// Invoke merges params over the descriptor defaults (caller values win),
// checks required parameters, and runs the handler. Handler failures that are
// not already classified leave here as ExecutionError; nothing below the
// registry boundary crosses into the orchestrator unclassified.
func (r *Registry) Invoke(ctx context.Context, name string, params Params) (RowSet, error) {
	descriptor, err := r.Resolve(name)
	if err != nil {
		return RowSet{}, err
	}

	merged := mergeParams(descriptor.DefaultParams, params)
	for _, key := range descriptor.RequiredParams {
		if _, ok := merged[key]; !ok {
			return RowSet{}, NewError(KindValidation, fmt.Sprintf("operation %q: missing required parameter %q", name, key))
		}
	}

	rowSet, err := descriptor.Handler(ctx, merged)
	if err != nil {
		var typed *Error
		if errors.As(err, &typed) {
			return RowSet{}, err
		}
		return RowSet{}, WrapError(KindExecution, fmt.Sprintf("operation %q failed", name), err)
	}
	return rowSet, nil
}

func mergeParams(defaults, caller Params) Params {
	merged := make(Params, len(defaults)+len(caller))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range caller {
		merged[key] = value
	}
	return merged
}
