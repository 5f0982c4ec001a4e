package oasmux

import (
	"github.com/gorilla/mux"

	"github.com/vitalvas/apispec/openapi"
)

// group holds child nodes in registration order. Once mounted it accepts
// no more children: they would be documented but never routed.
type group struct {
	children []Node
	mounted  bool
	lateErr  error
}

func (g *group) add(n Node) {
	if g.mounted {
		if g.lateErr == nil {
			g.lateErr = ErrMounted
		}
		return
	}
	g.children = append(g.children, n)
}

// collect aggregates the children in registration order and returns the
// result; nothing is shared with the caller's accumulators.
func (g *group) collect(v openapi.Version) (PathMap, []*openapi.Components) {
	paths := PathMap{}
	var comps []*openapi.Components
	for _, c := range g.children {
		aggregate(v, paths, &comps, c)
	}
	return paths, comps
}

func (g *group) err() error {
	if g.lateErr != nil {
		return g.lateErr
	}
	for _, c := range g.children {
		if err := c.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (g *group) mount(r *mux.Router) {
	g.mounted = true
	for _, c := range g.children {
		c.Mount(r)
	}
}

// Scope groups nodes under a path prefix. Its documentation is resolved
// when its parent asks for it.
type Scope struct {
	group
	prefix     string
	middleware []mux.MiddlewareFunc

	resolved bool
	paths    PathMap
	comps    []*openapi.Components
}

// NewScope creates a scope mounted at prefix. The prefix may contain
// variables; they are declared on every operation below it.
func NewScope(prefix string) *Scope {
	return &Scope{prefix: normalizePath(prefix)}
}

// Route adds a route relative to the prefix.
func (s *Scope) Route(path string, h *Handler, methods ...string) *Scope {
	s.add(NewRoute(path, h, methods...))
	return s
}

// Service adds any node (route, resource, nested scope) to the scope.
func (s *Scope) Service(n Node) *Scope {
	s.add(n)
	return s
}

// Configure adds the routes fn registers on a ServiceConfig.
func (s *Scope) Configure(fn func(*ServiceConfig)) *Scope {
	cfg := &ServiceConfig{}
	fn(cfg)
	s.add(cfg)
	return s
}

// Use adds middleware that runs for the scope's routes only.
func (s *Scope) Use(mw ...mux.MiddlewareFunc) *Scope {
	s.middleware = append(s.middleware, mw...)
	return s
}

func (s *Scope) resolve(v openapi.Version) {
	if s.resolved {
		return
	}
	s.resolved = true

	local, comps := s.collect(v)
	prefix, params := parsePath(s.prefix)

	s.paths = make(PathMap, len(local))
	for p, item := range local {
		for _, op := range item.Operations() {
			addPathParams(op, params)
		}
		s.paths.MergeItem(joinPath(prefix, p), item)
	}
	s.comps = comps
}

// Path panics with ErrMultiPath.
func (s *Scope) Path() string { panic(ErrMultiPath) }

// Operations panics with ErrMultiPath.
func (s *Scope) Operations(openapi.Version) map[string]*openapi.Operation { panic(ErrMultiPath) }

// Components hands over the fragments of every child.
func (s *Scope) Components(v openapi.Version) []*openapi.Components {
	s.resolve(v)
	comps := s.comps
	s.comps = nil
	return comps
}

// UpdatePathItems merges the children's path items, prefixed, into
// paths.
func (s *Scope) UpdatePathItems(v openapi.Version, paths PathMap) {
	s.resolve(v)
	for p, item := range s.paths {
		paths.MergeItem(p, item)
	}
	s.paths = nil
}

// Mount registers the children on a subrouter under the prefix with
// the scope's middleware. Children added later are rejected with
// ErrMounted.
func (s *Scope) Mount(r *mux.Router) {
	var sub *mux.Router
	if s.prefix == "" {
		sub = r.NewRoute().Subrouter()
	} else {
		sub = r.PathPrefix(s.prefix).Subrouter()
	}
	sub.Use(s.middleware...)
	s.mount(sub)
}

// Err returns the first declaration error below the scope.
func (s *Scope) Err() error { return s.err() }

// ServiceConfig is a block of routes registered by a configuration
// function, usually one per feature package:
//
//	func Routes(cfg *oasmux.ServiceConfig) {
//	    cfg.Route("/pets", oasmux.HandleFunc(listPets))
//	}
type ServiceConfig struct {
	group

	resolved bool
	paths    PathMap
	comps    []*openapi.Components
}

// Route adds a route.
func (c *ServiceConfig) Route(path string, h *Handler, methods ...string) *ServiceConfig {
	c.add(NewRoute(path, h, methods...))
	return c
}

// Service adds any node.
func (c *ServiceConfig) Service(n Node) *ServiceConfig {
	c.add(n)
	return c
}

// Configure nests another configuration block.
func (c *ServiceConfig) Configure(fn func(*ServiceConfig)) *ServiceConfig {
	nested := &ServiceConfig{}
	fn(nested)
	c.add(nested)
	return c
}

func (c *ServiceConfig) resolve(v openapi.Version) {
	if c.resolved {
		return
	}
	c.resolved = true
	c.paths, c.comps = c.collect(v)
}

// Path panics with ErrMultiPath.
func (c *ServiceConfig) Path() string { panic(ErrMultiPath) }

// Operations panics with ErrMultiPath.
func (c *ServiceConfig) Operations(openapi.Version) map[string]*openapi.Operation {
	panic(ErrMultiPath)
}

// Components hands over the fragments of every child.
func (c *ServiceConfig) Components(v openapi.Version) []*openapi.Components {
	c.resolve(v)
	comps := c.comps
	c.comps = nil
	return comps
}

// UpdatePathItems merges the children's path items into paths.
func (c *ServiceConfig) UpdatePathItems(v openapi.Version, paths PathMap) {
	c.resolve(v)
	for p, item := range c.paths {
		paths.MergeItem(p, item)
	}
	c.paths = nil
}

// Mount registers the children on r. Children added later are
// rejected with ErrMounted.
func (c *ServiceConfig) Mount(r *mux.Router) { c.mount(r) }

// Err returns the first declaration error in the block.
func (c *ServiceConfig) Err() error { return c.err() }
