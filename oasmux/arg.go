package oasmux

import (
	"reflect"

	"github.com/vitalvas/apispec/openapi"
)

// Media types implied by the built-in extractors.
const (
	MIMEJSON      = "application/json"
	MIMEForm      = "application/x-www-form-urlencoded"
	MIMEMultipart = "multipart/form-data"
	MIMEOctet     = "application/octet-stream"
	MIMEText      = "text/plain"
)

// Arg is the documentation side of a handler argument. Every method takes
// the target version because 3.0 and 3.1 differ in schema dialect.
type Arg interface {
	// Schema returns the argument's own named schema, if it has one.
	Schema(v openapi.Version) (openapi.NamedSchema, bool)

	// ChildSchemas returns the named schemas referenced from Schema.
	ChildSchemas(v openapi.Version) []openapi.NamedSchema

	// RawSchema returns an inline schema that is never promoted to a
	// component.
	RawSchema(v openapi.Version) *openapi.Schema

	// ContentType is the media type of the payload the argument implies.
	ContentType() string

	// Required reports whether the value must be present.
	Required() bool

	// Parameters returns the path, query, header or cookie parameters the
	// argument binds.
	Parameters(v openapi.Version) []*openapi.Parameter

	// RequestBody is non-nil only for payload arguments.
	RequestBody(v openapi.Version) *openapi.RequestBody
}

// SecurityArg is an Arg that requires a named security scheme.
type SecurityArg interface {
	Arg
	SecurityScheme() string
}

// SecuritySchemeDefiner is implemented by arguments that also carry the
// definition of their security scheme.
type SecuritySchemeDefiner interface {
	SecuritySchemeDefinition() *openapi.SecurityScheme
}

// declarationChecker is implemented by arguments whose declaration can be
// wrong independently of the request, such as reserved header names.
type declarationChecker interface {
	checkDeclaration() error
}

// BaseArg implements Arg with the defaults: JSON content, required, and no
// schema, parameters or body. Embed it and override what differs.
type BaseArg struct{}

func (BaseArg) Schema(openapi.Version) (openapi.NamedSchema, bool) {
	return openapi.NamedSchema{}, false
}

func (BaseArg) ChildSchemas(openapi.Version) []openapi.NamedSchema { return nil }

func (BaseArg) RawSchema(openapi.Version) *openapi.Schema { return nil }

func (BaseArg) ContentType() string { return MIMEJSON }

func (BaseArg) Required() bool { return true }

func (BaseArg) Parameters(openapi.Version) []*openapi.Parameter { return nil }

func (BaseArg) RequestBody(openapi.Version) *openapi.RequestBody { return nil }

// typeArg answers the schema accessors from reflection over T.
type typeArg[T any] struct{ BaseArg }

func (typeArg[T]) describeWith(gen *openapi.SchemaGenerator) openapi.Description {
	return gen.Describe(reflect.TypeFor[T]())
}

func (a typeArg[T]) describe(v openapi.Version) openapi.Description {
	return a.describeWith(openapi.NewSchemaGenerator(v))
}

func (a typeArg[T]) Schema(v openapi.Version) (openapi.NamedSchema, bool) {
	if d := a.describe(v); d.Named != nil {
		return *d.Named, true
	}
	return openapi.NamedSchema{}, false
}

func (a typeArg[T]) ChildSchemas(v openapi.Version) []openapi.NamedSchema {
	return a.describe(v).Children
}

func (a typeArg[T]) RawSchema(v openapi.Version) *openapi.Schema {
	return a.describe(v).Raw
}

// generatedArg is implemented by the built-in reflective extractors. A
// handler documents all of them with one generator, so component names
// stay unique across its arguments and responses and every referenced
// schema lands in the generator's side table.
type generatedArg interface {
	document(gen *openapi.SchemaGenerator) (*openapi.RequestBody, []*openapi.Parameter)
}

// documentArg returns the body and parameters of a for the generator's
// version. shared reports whether the schemas they reference were
// registered with gen; otherwise the argument's own Schema and
// ChildSchemas describe them.
func documentArg(a Arg, gen *openapi.SchemaGenerator) (body *openapi.RequestBody, params []*openapi.Parameter, shared bool) {
	switch a := a.(type) {
	case wrappedArg:
		body, params, shared = documentArg(a.unwrap(), gen)
		return optionalBody(body), optionalParameters(params), shared
	case generatedArg:
		body, params = a.document(gen)
		return body, params, true
	}
	v := gen.Version()
	return a.RequestBody(v), a.Parameters(v), false
}

// bodySchema is the schema a payload is documented with: a reference when
// the type is a component, the inline schema otherwise.
func bodySchema(a Arg, v openapi.Version) *openapi.Schema {
	if named, ok := a.Schema(v); ok {
		return openapi.Ref(named.Name)
	}
	return a.RawSchema(v)
}

func describedSchema(d openapi.Description) *openapi.Schema {
	if d.Named != nil {
		return openapi.Ref(d.Named.Name)
	}
	return d.Raw
}

// payloadBody builds the request body of a payload argument. A type that
// produced no schema still documents its media type.
func payloadBody(a Arg, schema *openapi.Schema) *openapi.RequestBody {
	return &openapi.RequestBody{
		Required: a.Required(),
		Content: map[string]*openapi.MediaType{
			a.ContentType(): {Schema: schema},
		},
	}
}

// Optional marks an argument as not required. Its body and non-path
// parameters become optional. Only an optional security argument changes
// the operation's security: it adds the empty requirement ({}) so that
// anonymous calls are accepted. Other optional arguments leave security
// untouched.
func Optional(a Arg) Arg {
	if sa, ok := a.(SecurityArg); ok {
		return optionalSecurity{optional{sa}}
	}
	return optional{a}
}

// wrappedArg is implemented by argument decorators.
type wrappedArg interface {
	unwrap() Arg
}

type optional struct{ Arg }

func (o optional) unwrap() Arg { return o.Arg }

func (optional) Required() bool { return false }

func (o optional) RequestBody(v openapi.Version) *openapi.RequestBody {
	return optionalBody(o.Arg.RequestBody(v))
}

func (o optional) Parameters(v openapi.Version) []*openapi.Parameter {
	return optionalParameters(o.Arg.Parameters(v))
}

func optionalBody(body *openapi.RequestBody) *openapi.RequestBody {
	if body == nil {
		return nil
	}
	cp := *body
	cp.Required = false
	return &cp
}

// optionalParameters copies params with Required cleared. Path parameters
// are always required.
func optionalParameters(params []*openapi.Parameter) []*openapi.Parameter {
	if params == nil {
		return nil
	}
	out := make([]*openapi.Parameter, 0, len(params))
	for _, p := range params {
		cp := *p
		if cp.In != openapi.InPath {
			cp.Required = false
		}
		out = append(out, &cp)
	}
	return out
}

func (o optional) checkDeclaration() error {
	if dc, ok := o.Arg.(declarationChecker); ok {
		return dc.checkDeclaration()
	}
	return nil
}

type optionalSecurity struct{ optional }

func (o optionalSecurity) SecurityScheme() string {
	return o.Arg.(SecurityArg).SecurityScheme()
}

func (o optionalSecurity) SecuritySchemeDefinition() *openapi.SecurityScheme {
	if d, ok := o.Arg.(SecuritySchemeDefiner); ok {
		return d.SecuritySchemeDefinition()
	}
	return nil
}
