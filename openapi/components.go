package openapi

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrComponentCollision is returned in strict mode when two fragments
// register different bodies under the same component name.
var ErrComponentCollision = errors.New("component collision")

// IsEmpty reports whether no component of any kind is registered.
func (c *Components) IsEmpty() bool {
	if c == nil {
		return true
	}
	return len(c.Schemas) == 0 &&
		len(c.Responses) == 0 &&
		len(c.Parameters) == 0 &&
		len(c.Examples) == 0 &&
		len(c.RequestBodies) == 0 &&
		len(c.Headers) == 0 &&
		len(c.SecuritySchemes) == 0 &&
		len(c.Links) == 0 &&
		len(c.Callbacks) == 0 &&
		len(c.PathItems) == 0
}

// MergeComponents flattens fragments, in order, into one registry. Later
// fragments overwrite entries of earlier ones with the same name. With
// strict set an overwrite by a different body is an error; the merge
// still completes and every collision is reported.
//
// Merging the same fragments twice yields the same registry.
func MergeComponents(strict bool, fragments ...*Components) (*Components, error) {
	out := &Components{}
	var errs []error

	for _, f := range fragments {
		if f == nil {
			continue
		}
		errs = append(errs, mergeKind(strict, "schemas", &out.Schemas, f.Schemas)...)
		errs = append(errs, mergeKind(strict, "responses", &out.Responses, f.Responses)...)
		errs = append(errs, mergeKind(strict, "parameters", &out.Parameters, f.Parameters)...)
		errs = append(errs, mergeKind(strict, "examples", &out.Examples, f.Examples)...)
		errs = append(errs, mergeKind(strict, "requestBodies", &out.RequestBodies, f.RequestBodies)...)
		errs = append(errs, mergeKind(strict, "headers", &out.Headers, f.Headers)...)
		errs = append(errs, mergeKind(strict, "securitySchemes", &out.SecuritySchemes, f.SecuritySchemes)...)
		errs = append(errs, mergeKind(strict, "links", &out.Links, f.Links)...)
		errs = append(errs, mergeKind(strict, "callbacks", &out.Callbacks, f.Callbacks)...)
		errs = append(errs, mergeKind(strict, "pathItems", &out.PathItems, f.PathItems)...)
	}

	return out, errors.Join(errs...)
}

func mergeKind[T any](strict bool, kind string, dst *map[string]T, src map[string]T) []error {
	if len(src) == 0 {
		return nil
	}
	if *dst == nil {
		*dst = make(map[string]T, len(src))
	}

	var errs []error
	for name, body := range src {
		if prev, ok := (*dst)[name]; ok && strict && !reflect.DeepEqual(prev, body) {
			errs = append(errs, fmt.Errorf("%w: %s %q registered with different bodies", ErrComponentCollision, kind, name))
		}
		(*dst)[name] = body
	}
	return errs
}
