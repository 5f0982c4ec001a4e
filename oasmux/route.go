package oasmux

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vitalvas/apispec/openapi"
)

// Route is a single path served by one handler for one or more methods.
type Route struct {
	path    string
	methods []string
	handler *Handler

	built bool
	ops   map[string]*openapi.Operation
	comps []*openapi.Components
}

// NewRoute declares h at path for methods, GET when none are given. The
// path is a router template and may carry patterns ("/pets/{id:[0-9]+}").
func NewRoute(path string, h *Handler, methods ...string) *Route {
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}
	upper := make([]string, len(methods))
	for i, m := range methods {
		upper[i] = strings.ToUpper(m)
	}
	return &Route{path: normalizePath(path), methods: upper, handler: h}
}

func (r *Route) build(v openapi.Version) {
	if r.built {
		return
	}
	r.built = true

	op, comps, err := r.handler.Build(v)
	if err != nil || op == nil {
		return
	}
	r.comps = comps
	r.ops = make(map[string]*openapi.Operation, len(r.methods))
	for _, m := range r.methods {
		r.ops[m] = op
	}
}

// Path returns the route's path template.
func (r *Route) Path() string { return r.path }

// Operations hands over the operation once per method.
func (r *Route) Operations(v openapi.Version) map[string]*openapi.Operation {
	r.build(v)
	ops := r.ops
	r.ops = nil
	return ops
}

// Components hands over the handler's component fragments.
func (r *Route) Components(v openapi.Version) []*openapi.Components {
	r.build(v)
	comps := r.comps
	r.comps = nil
	return comps
}

// UpdatePathItems merges the route's operations into paths.
func (r *Route) UpdatePathItems(v openapi.Version, paths PathMap) {
	updateSinglePath(v, r, paths)
}

// Mount registers the handler for the route's methods.
func (r *Route) Mount(router *mux.Router) {
	router.Handle(r.path, r.handler.routed()).Methods(r.methods...)
}

// Err returns the handler's declaration error.
func (r *Route) Err() error { return r.handler.Err() }

// Resource is one path with a handler per method.
type Resource struct {
	path     string
	methods  []string
	handlers map[string]*Handler
	mounted  bool
	lateErr  error

	built bool
	ops   map[string]*openapi.Operation
	comps []*openapi.Components
}

// NewResource creates an empty resource at path.
func NewResource(path string) *Resource {
	return &Resource{path: normalizePath(path), handlers: make(map[string]*Handler)}
}

// Method sets the handler for method, replacing an earlier one.
func (r *Resource) Method(method string, h *Handler) *Resource {
	if r.mounted {
		if r.lateErr == nil {
			r.lateErr = fmt.Errorf("%w: %s %s", ErrMounted, strings.ToUpper(method), r.path)
		}
		return r
	}
	method = strings.ToUpper(method)
	if _, ok := r.handlers[method]; !ok {
		r.methods = append(r.methods, method)
	}
	r.handlers[method] = h
	return r
}

// Get sets the GET handler.
func (r *Resource) Get(h *Handler) *Resource    { return r.Method(http.MethodGet, h) }
// Post sets the POST handler.
func (r *Resource) Post(h *Handler) *Resource   { return r.Method(http.MethodPost, h) }
// Put sets the PUT handler.
func (r *Resource) Put(h *Handler) *Resource    { return r.Method(http.MethodPut, h) }
// Patch sets the PATCH handler.
func (r *Resource) Patch(h *Handler) *Resource  { return r.Method(http.MethodPatch, h) }
// Delete sets the DELETE handler.
func (r *Resource) Delete(h *Handler) *Resource { return r.Method(http.MethodDelete, h) }

func (r *Resource) build(v openapi.Version) {
	if r.built {
		return
	}
	r.built = true

	r.ops = make(map[string]*openapi.Operation, len(r.methods))
	for _, m := range r.methods {
		op, comps, err := r.handlers[m].Build(v)
		if err != nil {
			continue
		}
		r.comps = append(r.comps, comps...)
		if op != nil {
			r.ops[m] = op
		}
	}
}

// Path returns the resource's path template.
func (r *Resource) Path() string { return r.path }

// Operations hands over the documented operations keyed by method.
func (r *Resource) Operations(v openapi.Version) map[string]*openapi.Operation {
	r.build(v)
	ops := r.ops
	r.ops = nil
	return ops
}

// Components hands over the handlers' component fragments.
func (r *Resource) Components(v openapi.Version) []*openapi.Components {
	r.build(v)
	comps := r.comps
	r.comps = nil
	return comps
}

// UpdatePathItems merges the resource's operations into paths.
func (r *Resource) UpdatePathItems(v openapi.Version, paths PathMap) {
	updateSinglePath(v, r, paths)
}

// Mount registers every method handler. Methods added later are
// rejected with ErrMounted.
func (r *Resource) Mount(router *mux.Router) {
	r.mounted = true
	for _, m := range r.methods {
		router.Handle(r.path, r.handlers[m].routed()).Methods(m)
	}
}

// Err returns the first declaration error of the resource or its
// handlers.
func (r *Resource) Err() error {
	if r.lateErr != nil {
		return r.lateErr
	}
	for _, m := range r.methods {
		if err := r.handlers[m].Err(); err != nil {
			return err
		}
	}
	return nil
}
