package oasmux

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vitalvas/apispec/openapi"
)

// ErrMultiPath is the panic value of Path and Operations on nodes that
// span several paths. Only the aggregation code calls those accessors.
var ErrMultiPath = errors.New("definition holder spans multiple paths")

// ErrMounted is recorded when a child or method is added to a node that is
// already mounted on a router.
var ErrMounted = errors.New("node already mounted")

// DefinitionHolder is the documentation side of a routing tree node. Its
// Operations and Components hand over the node's data once; later calls
// return nothing.
type DefinitionHolder interface {
	// Path is the node's own path template. Multi-path nodes panic.
	Path() string

	// Operations takes the node's operations keyed by method. Multi-path
	// nodes panic.
	Operations(v openapi.Version) map[string]*openapi.Operation

	// Components takes the node's component fragments.
	Components(v openapi.Version) []*openapi.Components

	// UpdatePathItems merges the node's operations into paths.
	UpdatePathItems(v openapi.Version, paths PathMap)
}

// Node is a routing tree node: documented and mountable on a router.
type Node interface {
	DefinitionHolder

	// Mount registers the node's handlers on r.
	Mount(r *mux.Router)

	// Err returns the first declaration error in the node's subtree.
	Err() error
}

// PathMap maps OpenAPI path templates to path items.
type PathMap map[string]*openapi.PathItem

func (m PathMap) item(path string) *openapi.PathItem {
	item, ok := m[path]
	if !ok {
		item = &openapi.PathItem{}
		m[path] = item
	}
	return item
}

// Merge adds ops to path. An operation replaces the one already stored
// for its method; other methods are kept.
func (m PathMap) Merge(path string, ops map[string]*openapi.Operation) {
	if len(ops) == 0 {
		return
	}
	item := m.item(path)
	for method, op := range ops {
		item.SetOperation(method, op)
	}
}

// MergeItem merges a whole path item into path, method by method.
func (m PathMap) MergeItem(path string, other *openapi.PathItem) {
	if other == nil || other.IsEmpty() {
		return
	}
	m.item(path).Merge(other)
}

// aggregate folds one child node into a parent's accumulators.
func aggregate(v openapi.Version, paths PathMap, comps *[]*openapi.Components, node DefinitionHolder) {
	node.UpdatePathItems(v, paths)
	*comps = append(*comps, node.Components(v)...)
}

// updateSinglePath is UpdatePathItems for nodes with one path: the path
// template is converted and its variables are declared on every
// operation that does not declare them itself.
func updateSinglePath(v openapi.Version, node DefinitionHolder, paths PathMap) {
	ops := node.Operations(v)
	if len(ops) == 0 {
		return
	}
	path, params := parsePath(node.Path())
	for _, op := range ops {
		addPathParams(op, params)
	}
	paths.Merge(path, ops)
}

func addPathParams(op *openapi.Operation, params []*openapi.Parameter) {
	if len(params) == 0 {
		return
	}
	op.Parameters = openapi.MergeParameters(params, op.Parameters)
}

// normalizePath gives a non-empty path exactly one leading slash, as the
// router requires of route and subrouter templates.
func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	return "/" + strings.TrimLeft(p, "/")
}

// joinPath joins a scope prefix and a child path with exactly one slash.
// An empty child path is the prefix itself.
func joinPath(prefix, p string) string {
	if p == "" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(p, "/")
}

var (
	integerPattern = regexp.MustCompile(`^(?:-\?)?(?:\[0-9\]|\\d)[+*]$|^\[1-9\](?:\[0-9\]|\\d)\*$`)
	numberPattern  = regexp.MustCompile(`^(?:-\?)?(?:\[0-9\]|\\d)[+*](?:\(\\\.(?:\[0-9\]|\\d)[+*]\)\?|\\\.\?(?:\[0-9\]|\\d)[+*])$`)
	uuidPattern    = regexp.MustCompile(`\{8\}-.*\{4\}-.*\{4\}-.*\{4\}-.*\{12\}`)
)

// pathParamSchema derives a parameter schema from a router variable
// pattern.
func pathParamSchema(pattern string) *openapi.Schema {
	switch {
	case pattern == "":
		return &openapi.Schema{Type: openapi.TypeString("string")}
	case integerPattern.MatchString(pattern):
		return &openapi.Schema{Type: openapi.TypeString("integer")}
	case numberPattern.MatchString(pattern):
		return &openapi.Schema{Type: openapi.TypeString("number")}
	case uuidPattern.MatchString(pattern):
		return &openapi.Schema{Type: openapi.TypeString("string"), Format: "uuid"}
	}
	return &openapi.Schema{Type: openapi.TypeString("string"), Pattern: "^" + pattern + "$"}
}

// parsePath converts a router template such as "/pets/{id:[0-9]+}" to an
// OpenAPI template ("/pets/{id}") and returns one required path parameter
// per variable. Patterns may contain braces of their own.
func parsePath(tpl string) (string, []*openapi.Parameter) {
	var (
		out    strings.Builder
		params []*openapi.Parameter
	)

	for i := 0; i < len(tpl); i++ {
		if tpl[i] != '{' {
			out.WriteByte(tpl[i])
			continue
		}

		end, level := -1, 0
		for j := i; j < len(tpl); j++ {
			switch tpl[j] {
			case '{':
				level++
			case '}':
				level--
			}
			if level == 0 {
				end = j
				break
			}
		}
		if end < 0 {
			out.WriteString(tpl[i:])
			break
		}

		name, pattern, _ := strings.Cut(tpl[i+1:end], ":")
		out.WriteString("{" + name + "}")
		params = append(params, &openapi.Parameter{
			Name:     name,
			In:       openapi.InPath,
			Required: true,
			Schema:   pathParamSchema(pattern),
		})
		i = end
	}

	return out.String(), params
}
