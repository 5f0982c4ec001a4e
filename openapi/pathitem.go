package openapi

import (
	"net/http"
	"strings"
)

// Methods lists the HTTP methods a PathItem can hold, in document order.
var Methods = []string{
	http.MethodGet,
	http.MethodPut,
	http.MethodPost,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodHead,
	http.MethodPatch,
	http.MethodTrace,
}

// operationSlot returns the field holding the operation for method, or nil
// when the method cannot be represented in a Path Item Object.
func (p *PathItem) operationSlot(method string) **Operation {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return &p.Get
	case http.MethodPut:
		return &p.Put
	case http.MethodPost:
		return &p.Post
	case http.MethodDelete:
		return &p.Delete
	case http.MethodOptions:
		return &p.Options
	case http.MethodHead:
		return &p.Head
	case http.MethodPatch:
		return &p.Patch
	case http.MethodTrace:
		return &p.Trace
	}
	return nil
}

// Operation returns the operation registered for method, if any.
func (p *PathItem) Operation(method string) *Operation {
	if slot := p.operationSlot(method); slot != nil {
		return *slot
	}
	return nil
}

// SetOperation stores op for method, replacing any previous operation.
// It reports false for methods a Path Item Object cannot hold (e.g. CONNECT).
func (p *PathItem) SetOperation(method string, op *Operation) bool {
	slot := p.operationSlot(method)
	if slot == nil {
		return false
	}
	*slot = op
	return true
}

// Operations returns the non-nil operations keyed by upper-case method.
func (p *PathItem) Operations() map[string]*Operation {
	ops := make(map[string]*Operation)
	for _, m := range Methods {
		if op := p.Operation(m); op != nil {
			ops[m] = op
		}
	}
	return ops
}

// IsEmpty reports whether the path item holds no operations.
func (p *PathItem) IsEmpty() bool {
	for _, m := range Methods {
		if p.Operation(m) != nil {
			return false
		}
	}
	return true
}

// Merge unions other into p method by method. An operation in other
// replaces p's operation for the same method as a whole; methods only
// present in p are kept. Non-empty path-level fields of other win.
func (p *PathItem) Merge(other *PathItem) {
	if other == nil {
		return
	}
	for _, m := range Methods {
		if op := other.Operation(m); op != nil {
			p.SetOperation(m, op)
		}
	}
	if other.Ref != "" {
		p.Ref = other.Ref
	}
	if other.Summary != "" {
		p.Summary = other.Summary
	}
	if other.Description != "" {
		p.Description = other.Description
	}
	if len(other.Servers) > 0 {
		p.Servers = other.Servers
	}
	if len(other.Parameters) > 0 {
		p.Parameters = MergeParameters(p.Parameters, other.Parameters)
	}
}

// MergeParameters combines two parameter lists keeping the first-seen
// order. A parameter in override with the same name and location as one in
// base replaces it in place; the rest of override is appended. Nil is
// returned when both are empty so the field is omitted.
//
// See: https://spec.openapis.org/oas/v3.1.0#operation-object (parameters)
func MergeParameters(base, override []*Parameter) []*Parameter {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}

	type key struct{ name, in string }

	var merged []*Parameter
	index := make(map[key]int, len(base)+len(override))
	for _, list := range [][]*Parameter{base, override} {
		for _, p := range list {
			if p == nil {
				continue
			}
			k := key{p.Name, p.In}
			if i, ok := index[k]; ok {
				merged[i] = p
				continue
			}
			index[k] = len(merged)
			merged = append(merged, p)
		}
	}
	return merged
}
