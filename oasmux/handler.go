package oasmux

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/vitalvas/apispec/openapi"
)

// ErrInvalidStatus is returned for response status codes outside 100-599.
var ErrInvalidStatus = errors.New("invalid response status code")

// ErrorResponse documents one error a handler can return.
type ErrorResponse struct {
	Status      int
	Description string // defaults to the status text
	Body        any    // Go value or *openapi.Schema; nil for no content
}

// ErrorDescriber is implemented by application error types that know
// which responses they produce.
type ErrorDescriber interface {
	ErrorResponses() []ErrorResponse
}

type returnSpec struct {
	status      int
	contentType string
	body        any
}

// Handler is an http.Handler together with the declaration of its
// operation. The fluent methods record the first declaration error, which
// Build returns.
type Handler struct {
	handler      http.Handler
	name         string
	operationID  string
	summary      string
	description  string
	tags         []string
	deprecated   bool
	args         []Arg
	returns      []returnSpec
	errs         ErrorDescriber
	allow        []int
	scopes       map[string][]string
	externalDocs *openapi.ExternalDocs
	skip         bool
	err          error
}

// HandleFunc declares an operation served by fn. The operation id
// defaults to fn's name; anonymous functions need Name or OperationID.
func HandleFunc(fn func(http.ResponseWriter, *http.Request)) *Handler {
	return &Handler{
		handler: http.HandlerFunc(fn),
		name:    funcName(reflect.ValueOf(fn).Pointer()),
	}
}

// Handle declares an operation served by h. The operation id defaults to
// the lower-camel name of h's type.
func Handle(h http.Handler) *Handler {
	if fn, ok := h.(http.HandlerFunc); ok {
		return HandleFunc(fn)
	}
	name := reflect.Indirect(reflect.ValueOf(h)).Type().Name()
	if name != "" {
		name = strings.ToLower(name[:1]) + name[1:]
	}
	return &Handler{handler: h, name: name}
}

// funcName returns the declared name of the function at pc, or "" for
// closures.
func funcName(pc uintptr) string {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	full := fn.Name()
	if idx := strings.LastIndexByte(full, '/'); idx >= 0 {
		full = full[idx+1:]
	}
	parts := strings.Split(strings.TrimSuffix(full, "-fm"), ".")
	last := parts[len(parts)-1]
	if isClosureName(last) {
		return ""
	}
	return last
}

func isClosureName(s string) bool {
	s = strings.TrimPrefix(s, "func")
	if s == "" {
		return true
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

func (h *Handler) setErr(err error) {
	if h.err == nil {
		h.err = err
	}
}

func validStatus(code int) bool {
	return code >= 100 && code <= 599
}

// ServeHTTP calls the wrapped handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Args declares the handler's arguments in order.
func (h *Handler) Args(args ...Arg) *Handler {
	h.args = append(h.args, args...)
	return h
}

// Returns declares a JSON success response. A nil body documents a
// response without content.
func (h *Handler) Returns(status int, body any) *Handler {
	return h.ReturnsContent(status, MIMEJSON, body)
}

// ReturnsContent declares a success response with an explicit media type.
func (h *Handler) ReturnsContent(status int, contentType string, body any) *Handler {
	if !validStatus(status) {
		h.setErr(fmt.Errorf("%w: %d", ErrInvalidStatus, status))
		return h
	}
	h.returns = append(h.returns, returnSpec{status: status, contentType: contentType, body: body})
	return h
}

// Errors declares the error responses of e. When allow is non-empty only
// the listed status codes are documented.
func (h *Handler) Errors(e ErrorDescriber, allow ...int) *Handler {
	for _, code := range allow {
		if !validStatus(code) {
			h.setErr(fmt.Errorf("%w: %d", ErrInvalidStatus, code))
			return h
		}
	}
	h.errs = e
	h.allow = allow
	return h
}

// Name sets the default operation id, as if fn had that name.
func (h *Handler) Name(name string) *Handler {
	h.name = name
	return h
}

// OperationID sets the operation id.
func (h *Handler) OperationID(id string) *Handler {
	h.operationID = id
	return h
}

// Summary sets the operation summary.
func (h *Handler) Summary(s string) *Handler {
	h.summary = s
	return h
}

// Description sets the operation description.
func (h *Handler) Description(d string) *Handler {
	h.description = d
	return h
}

// Tags adds tags to the operation.
func (h *Handler) Tags(tags ...string) *Handler {
	h.tags = append(h.tags, tags...)
	return h
}

// Deprecated marks the operation as deprecated.
func (h *Handler) Deprecated() *Handler {
	h.deprecated = true
	return h
}

// Scopes sets the scopes required from scheme by the handler's security
// arguments.
func (h *Handler) Scopes(scheme string, scopes ...string) *Handler {
	if h.scopes == nil {
		h.scopes = make(map[string][]string)
	}
	h.scopes[scheme] = append(h.scopes[scheme], scopes...)
	return h
}

// ExternalDocs links external documentation.
func (h *Handler) ExternalDocs(url, description string) *Handler {
	h.externalDocs = &openapi.ExternalDocs{URL: url, Description: description}
	return h
}

// Skip keeps the handler routed but out of the document.
func (h *Handler) Skip() *Handler {
	h.skip = true
	return h
}

// Err returns the first declaration error.
func (h *Handler) Err() error {
	if h.err != nil {
		return h.err
	}
	for _, a := range h.args {
		if dc, ok := a.(declarationChecker); ok {
			if err := dc.checkDeclaration(); err != nil {
				return err
			}
		}
	}
	if h.errs != nil {
		for _, er := range h.errs.ErrorResponses() {
			if !validStatus(er.Status) {
				return fmt.Errorf("%w: %d (from %T)", ErrInvalidStatus, er.Status, h.errs)
			}
		}
	}
	return nil
}

// Build produces the handler's operation and component fragments for v.
// A skipped handler yields neither.
func (h *Handler) Build(v openapi.Version) (*openapi.Operation, []*openapi.Components, error) {
	if err := h.Err(); err != nil {
		return nil, nil, err
	}
	if h.skip {
		return nil, nil, nil
	}

	comp := &openapi.Components{}
	addSchema := func(ns openapi.NamedSchema) {
		if comp.Schemas == nil {
			comp.Schemas = make(map[string]*openapi.Schema)
		}
		comp.Schemas[ns.Name] = ns.Schema
	}

	opID := h.name
	if h.operationID != "" {
		opID = h.operationID
	}

	op := &openapi.Operation{
		OperationID:  opID,
		Summary:      h.summary,
		Description:  h.description,
		Tags:         h.tags,
		Deprecated:   h.deprecated,
		ExternalDocs: h.externalDocs,
	}

	// One generator for all arguments and responses keeps component
	// names unique within the operation.
	gen := openapi.NewSchemaGenerator(v)

	anonymous := false
	for _, a := range h.args {
		body, params, shared := documentArg(a, gen)
		if body != nil {
			op.RequestBody = body
		}
		op.Parameters = openapi.MergeParameters(op.Parameters, params)

		if !shared {
			if named, ok := a.Schema(v); ok {
				addSchema(named)
			}
			for _, child := range a.ChildSchemas(v) {
				addSchema(child)
			}
		}

		sa, ok := a.(SecurityArg)
		if !ok {
			continue
		}
		scheme := sa.SecurityScheme()
		op.Security = append(op.Security, openapi.Require(scheme, h.scopes[scheme]...))
		if !a.Required() {
			anonymous = true
		}
		if d, ok := a.(SecuritySchemeDefiner); ok {
			if def := d.SecuritySchemeDefinition(); def != nil {
				if comp.SecuritySchemes == nil {
					comp.SecuritySchemes = make(map[string]*openapi.SecurityScheme)
				}
				comp.SecuritySchemes[scheme] = def
			}
		}
	}
	if anonymous {
		op.Security = append(op.Security, openapi.SecurityRequirement{})
	}

	op.Responses = h.responses(gen)
	for name, s := range gen.Schemas() {
		addSchema(openapi.NamedSchema{Name: name, Schema: s})
	}

	if comp.IsEmpty() {
		return op, nil, nil
	}
	return op, []*openapi.Components{comp}, nil
}

func (h *Handler) responses(gen *openapi.SchemaGenerator) map[string]*openapi.Response {
	responses := make(map[string]*openapi.Response)
	add := func(status int, description, contentType string, body any) {
		key := strconv.Itoa(status)
		resp, ok := responses[key]
		if !ok {
			if description == "" {
				description = responseDescription(key)
			}
			resp = &openapi.Response{Description: description}
			responses[key] = resp
		}
		if body == nil {
			return
		}
		if resp.Content == nil {
			resp.Content = make(map[string]*openapi.MediaType)
		}
		resp.Content[contentType] = &openapi.MediaType{Schema: gen.Generate(body)}
	}

	for _, r := range h.returns {
		add(r.status, "", r.contentType, r.body)
	}
	if h.errs != nil {
		for _, er := range h.errs.ErrorResponses() {
			if len(h.allow) > 0 && !slices.Contains(h.allow, er.Status) {
				continue
			}
			add(er.Status, er.Description, MIMEJSON, er.Body)
		}
	}

	if len(responses) == 0 {
		responses["default"] = &openapi.Response{Description: responseDescription("default")}
	}
	return responses
}

// responseDescription returns the description for a response key.
func responseDescription(key string) string {
	if key == "default" {
		return "Default response"
	}
	code, err := strconv.Atoi(key)
	if err == nil {
		if text := http.StatusText(code); text != "" {
			return text
		}
	}
	return key
}

// bodyContentTypes returns the media types of the payload arguments and
// whether any of them is required.
func (h *Handler) bodyContentTypes() ([]string, bool) {
	var types []string
	required := false
	for _, a := range h.args {
		if a.RequestBody(openapi.Version31) == nil {
			continue
		}
		types = append(types, a.ContentType())
		required = required || a.Required()
	}
	return types, required
}

// routed returns the handler as it is mounted: requests with a body of an
// undeclared media type are rejected before reaching it.
func (h *Handler) routed() http.Handler {
	types, required := h.bodyContentTypes()
	if len(types) == 0 {
		return h.handler
	}
	return contentTypeCheck(types, required)(h.handler)
}
