package oasmux

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/vitalvas/apispec/openapi"
)

var (
	// ErrFinished is recorded when a node is registered after the
	// document was built.
	ErrFinished = errors.New("application already built")

	// ErrDuplicateOperationID is returned in strict mode when two
	// operations share an operation id.
	ErrDuplicateOperationID = errors.New("duplicate operation id")

	// ErrNoSpecPath is returned by plugins that need the document to be
	// served.
	ErrNoSpecPath = errors.New("document is not served")
)

// App wraps a router: every node registered through it is mounted on the
// router and documented. Build assembles the document once all nodes are
// registered.
type App struct {
	router *mux.Router
	cfg    Config
	logger *slog.Logger

	root     group
	webhooks []WebhookProvider
	plugins  []Plugin
	err      error

	built    bool
	finished bool
	doc      *openapi.Document
	buildErr error
}

// New creates an App registering on r.
func New(r *mux.Router, cfg Config) *App {
	return &App{
		router: r,
		cfg:    cfg,
		logger: cfg.logger(),
	}
}

// Router returns the wrapped router.
func (a *App) Router() *mux.Router {
	return a.router
}

func (a *App) setErr(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Route registers h at path for methods (GET when none are given).
func (a *App) Route(path string, h *Handler, methods ...string) *App {
	return a.Service(NewRoute(path, h, methods...))
}

// Service registers a node. Nodes with declaration errors are neither
// mounted nor documented; the error is returned by Err and Build.
func (a *App) Service(n Node) *App {
	if a.built {
		a.setErr(ErrFinished)
		return a
	}
	if err := n.Err(); err != nil {
		a.setErr(err)
		return a
	}
	n.Mount(a.router)
	a.root.add(n)
	return a
}

// Configure registers the routes fn adds to a ServiceConfig.
func (a *App) Configure(fn func(*ServiceConfig)) *App {
	cfg := &ServiceConfig{}
	fn(cfg)
	return a.Service(cfg)
}

// Webhooks adds a webhook provider. Providers are merged in order.
func (a *App) Webhooks(p WebhookProvider) *App {
	if a.built {
		a.setErr(ErrFinished)
		return a
	}
	if checker, ok := p.(interface{ Err() error }); ok {
		if err := checker.Err(); err != nil {
			a.setErr(err)
			return a
		}
	}
	a.webhooks = append(a.webhooks, p)
	return a
}

// Plugin adds a plugin registered by Finish.
func (a *App) Plugin(p Plugin) *App {
	if a.finished {
		a.setErr(ErrFinished)
		return a
	}
	a.plugins = append(a.plugins, p)
	return a
}

// Err returns the first registration error, including children added to
// an already registered node.
func (a *App) Err() error {
	if a.err != nil {
		return a.err
	}
	return a.root.err()
}

// SpecPath returns the path the document is served at, JSON preferred.
func (a *App) SpecPath() string {
	if p := normalizePath(a.cfg.SpecPath); p != "" {
		return p
	}
	return normalizePath(a.cfg.SpecYAMLPath)
}

// Document returns the document served by Finish, nil before.
func (a *App) Document() *openapi.Document {
	if !a.finished || a.buildErr != nil {
		return nil
	}
	return a.doc
}

// Build assembles the document. It runs once; later calls return the same
// result and later registrations fail with ErrFinished.
func (a *App) Build() (*openapi.Document, error) {
	if !a.built {
		a.built = true
		a.doc, a.buildErr = a.build()
	}
	return a.doc, a.buildErr
}

func (a *App) build() (*openapi.Document, error) {
	if err := a.Err(); err != nil {
		return nil, err
	}

	v := a.cfg.version()
	paths, fragments := a.root.collect(v)
	if paths == nil {
		paths = PathMap{}
	}

	hooks := PathMap{}
	for _, p := range a.webhooks {
		for name, item := range p.Webhooks(v) {
			hooks.MergeItem(name, item)
		}
		if cp, ok := p.(ComponentProvider); ok {
			fragments = append(fragments, cp.Components(v)...)
		}
	}

	if len(a.cfg.SecuritySchemes) > 0 {
		fragments = append(fragments, &openapi.Components{SecuritySchemes: a.cfg.SecuritySchemes})
	}

	comps, err := openapi.MergeComponents(a.cfg.Strict, fragments...)
	if err != nil {
		return nil, err
	}

	if len(a.cfg.DefaultParameters) > 0 {
		defaults := adaptParameters(v, a.cfg.DefaultParameters)
		for _, item := range paths {
			for _, op := range item.Operations() {
				op.Parameters = openapi.MergeParameters(defaults, op.Parameters)
			}
		}
	}

	if err := a.checkOperationIDs(paths, hooks); err != nil {
		return nil, err
	}

	doc := &openapi.Document{
		OpenAPI:      v.String(),
		Info:         a.cfg.Info,
		Servers:      a.cfg.Servers,
		Paths:        paths,
		Security:     a.cfg.Security,
		ExternalDocs: a.cfg.ExternalDocs,
	}
	if len(hooks) > 0 {
		doc.Webhooks = hooks
	}
	if !comps.IsEmpty() {
		doc.Components = comps
	}
	tagged := []PathMap{paths}
	if !v.Is30() {
		tagged = append(tagged, hooks)
	}
	doc.Tags = mergeTags(a.cfg.Tags, tagged...)

	if a.cfg.ValidateSchemas && doc.Components != nil {
		if err := openapi.ValidateSchemas(v, doc.Components.Schemas); err != nil {
			return nil, err
		}
	}

	for _, field := range v.Restrict(doc) {
		a.logger.Warn("openapi: field not supported by document version, dropped",
			"version", v.String(), "field", field)
	}

	a.logger.Debug("openapi: document assembled",
		"version", v.String(), "paths", len(doc.Paths), "webhooks", len(doc.Webhooks))

	return doc, nil
}

// checkOperationIDs reports operations sharing an id. The same operation
// registered for several methods is not a collision.
func (a *App) checkOperationIDs(maps ...PathMap) error {
	type seen struct {
		op    *openapi.Operation
		where string
	}
	ids := make(map[string]seen)

	var errs []error
	for _, m := range maps {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, path := range keys {
			for _, method := range openapi.Methods {
				op := m[path].Operation(method)
				if op == nil || op.OperationID == "" {
					continue
				}
				where := method + " " + path
				prev, ok := ids[op.OperationID]
				if ok && prev.op != op {
					if a.cfg.Strict {
						errs = append(errs, fmt.Errorf("%w: %q on %s and %s",
							ErrDuplicateOperationID, op.OperationID, prev.where, where))
					} else {
						a.logger.Debug("openapi: duplicate operation id",
							"operationId", op.OperationID, "first", prev.where, "second", where)
					}
				}
				ids[op.OperationID] = seen{op: op, where: where}
			}
		}
	}
	return errors.Join(errs...)
}

// mergeTags combines declared tags with the tags used by operations.
// Declared tags keep their description and external docs. The result is
// sorted by name.
func mergeTags(declared []openapi.Tag, maps ...PathMap) []openapi.Tag {
	byName := make(map[string]openapi.Tag, len(declared))
	for _, tag := range declared {
		byName[tag.Name] = tag
	}

	seen := make(map[string]bool)
	var tags []openapi.Tag
	for _, m := range maps {
		for _, item := range m {
			for _, op := range item.Operations() {
				for _, name := range op.Tags {
					if seen[name] {
						continue
					}
					seen[name] = true
					if tag, ok := byName[name]; ok {
						tags = append(tags, tag)
					} else {
						tags = append(tags, openapi.Tag{Name: name})
					}
				}
			}
		}
	}

	for _, tag := range declared {
		if !seen[tag.Name] {
			seen[tag.Name] = true
			tags = append(tags, tag)
		}
	}

	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Name < tags[j].Name
	})
	return tags
}

// Finish builds the document, serves it at the configured paths and
// registers the plugins. The served bytes are encoded once, here.
func (a *App) Finish() (*openapi.Document, error) {
	if a.finished {
		return a.doc, a.buildErr
	}
	a.finished = true

	doc, err := a.Build()
	if err != nil {
		return nil, err
	}

	if p := normalizePath(a.cfg.SpecPath); p != "" {
		data, err := doc.JSON(true)
		if err != nil {
			a.buildErr = fmt.Errorf("encode json: %w", err)
			return nil, a.buildErr
		}
		a.router.Handle(p, serveBytes(MIMEJSON, data)).Methods(http.MethodGet)
	}

	if p := normalizePath(a.cfg.SpecYAMLPath); p != "" {
		data, err := doc.YAML()
		if err != nil {
			a.buildErr = fmt.Errorf("encode yaml: %w", err)
			return nil, a.buildErr
		}
		a.router.Handle(p, serveBytes("application/x-yaml", data)).Methods(http.MethodGet)
	}

	specPath := a.SpecPath()
	for _, p := range a.plugins {
		if err := p.Register(a.router, specPath); err != nil {
			a.buildErr = fmt.Errorf("register plugin: %w", err)
			return nil, a.buildErr
		}
	}

	return doc, nil
}

func serveBytes(contentType string, data []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

// adaptParameters copies params with their schemas in v's dialect. The
// configured parameters are left as they are.
func adaptParameters(v openapi.Version, params []*openapi.Parameter) []*openapi.Parameter {
	out := make([]*openapi.Parameter, len(params))
	for i, p := range params {
		if p == nil {
			continue
		}
		cp := *p
		cp.Schema = p.Schema.Clone()
		v.Adapt(cp.Schema)
		out[i] = &cp
	}
	return out
}
