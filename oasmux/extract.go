package oasmux

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vitalvas/apispec/openapi"
)

// ErrReservedHeader is returned when a Header extractor binds a header the
// OpenAPI document describes elsewhere (content negotiation, security).
var ErrReservedHeader = errors.New("reserved header name")

var reservedHeaders = []string{"Accept", "Content-Type", "Authorization"}

// maxMultipartMemory is the in-memory part of a parsed multipart body.
const maxMultipartMemory = 32 << 20

// JSON is an application/json request body decoded into T.
type JSON[T any] struct{ typeArg[T] }

func (JSON[T]) ContentType() string { return MIMEJSON }

func (a JSON[T]) RequestBody(v openapi.Version) *openapi.RequestBody {
	return payloadBody(a, bodySchema(a, v))
}

func (a JSON[T]) document(gen *openapi.SchemaGenerator) (*openapi.RequestBody, []*openapi.Parameter) {
	return payloadBody(a, describedSchema(a.describeWith(gen))), nil
}

// Extract decodes the request body. Unknown fields and trailing data are
// rejected.
func (JSON[T]) Extract(r *http.Request) (T, error) {
	var out T
	err := bindJSON(r, &out)
	return out, err
}

// Form is an application/x-www-form-urlencoded request body bound into T.
type Form[T any] struct{ typeArg[T] }

func (Form[T]) ContentType() string { return MIMEForm }

func (a Form[T]) RequestBody(v openapi.Version) *openapi.RequestBody {
	return payloadBody(a, bodySchema(a, v))
}

func (a Form[T]) document(gen *openapi.SchemaGenerator) (*openapi.RequestBody, []*openapi.Parameter) {
	return payloadBody(a, describedSchema(a.describeWith(gen))), nil
}

// Extract parses the form body and binds it by `form` tag, json name or
// field name.
func (Form[T]) Extract(r *http.Request) (T, error) {
	var out T
	if err := r.ParseForm(); err != nil {
		return out, fmt.Errorf("parse form: %w", err)
	}
	err := bindValues(&out, "form", func(name string) []string { return r.PostForm[name] })
	return out, err
}

// Multipart is a multipart/form-data request body bound into T. Fields of
// type *multipart.FileHeader or []*multipart.FileHeader receive files.
type Multipart[T any] struct{ typeArg[T] }

func (Multipart[T]) ContentType() string { return MIMEMultipart }

func (a Multipart[T]) RequestBody(v openapi.Version) *openapi.RequestBody {
	return payloadBody(a, bodySchema(a, v))
}

func (a Multipart[T]) document(gen *openapi.SchemaGenerator) (*openapi.RequestBody, []*openapi.Parameter) {
	return payloadBody(a, describedSchema(a.describeWith(gen))), nil
}

// Extract parses the multipart body and binds values and files.
func (Multipart[T]) Extract(r *http.Request) (T, error) {
	var out T
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return out, fmt.Errorf("parse multipart: %w", err)
	}
	form := r.MultipartForm
	err := bindValues(&out, "form", func(name string) []string { return form.Value[name] })
	if err != nil {
		return out, err
	}
	bindFiles(&out, form.File)
	return out, nil
}

// Bytes is a raw application/octet-stream request body.
type Bytes struct{ BaseArg }

func (Bytes) ContentType() string { return MIMEOctet }

func (Bytes) RawSchema(openapi.Version) *openapi.Schema {
	return &openapi.Schema{Type: openapi.TypeString("string"), Format: "binary"}
}

func (a Bytes) RequestBody(v openapi.Version) *openapi.RequestBody {
	return payloadBody(a, a.RawSchema(v))
}

// Extract reads the whole body.
func (Bytes) Extract(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

// Text is a text/plain request body.
type Text struct{ BaseArg }

func (Text) ContentType() string { return MIMEText }

func (Text) RawSchema(openapi.Version) *openapi.Schema {
	return &openapi.Schema{Type: openapi.TypeString("string")}
}

func (a Text) RequestBody(v openapi.Version) *openapi.RequestBody {
	return payloadBody(a, a.RawSchema(v))
}

// Extract reads the whole body as a string.
func (Text) Extract(r *http.Request) (string, error) {
	b, err := io.ReadAll(r.Body)
	return string(b), err
}

// Request hands the raw *http.Request to the handler. It documents
// nothing.
type Request struct{ BaseArg }

// Extract returns r unchanged.
func (Request) Extract(r *http.Request) (*http.Request, error) {
	return r, nil
}

// Path binds route variables into the fields of struct T.
type Path[T any] struct{ BaseArg }

func (Path[T]) RawSchema(v openapi.Version) *openapi.Schema {
	return openapi.NewSchemaGenerator(v).Describe(reflect.TypeFor[T]()).Raw
}

func (Path[T]) ChildSchemas(v openapi.Version) []openapi.NamedSchema {
	return parameterSchemas(v, reflect.TypeFor[T](), openapi.InPath)
}

func (Path[T]) Parameters(v openapi.Version) []*openapi.Parameter {
	return structParameters(openapi.NewSchemaGenerator(v), reflect.TypeFor[T](), openapi.InPath)
}

func (Path[T]) document(gen *openapi.SchemaGenerator) (*openapi.RequestBody, []*openapi.Parameter) {
	return nil, structParameters(gen, reflect.TypeFor[T](), openapi.InPath)
}

// Extract binds mux.Vars(r).
func (Path[T]) Extract(r *http.Request) (T, error) {
	var out T
	vars := mux.Vars(r)
	err := bindValues(&out, openapi.InPath, func(name string) []string {
		if v, ok := vars[name]; ok {
			return []string{v}
		}
		return nil
	})
	return out, err
}

// Query binds URL query values into the fields of struct T.
type Query[T any] struct{ BaseArg }

func (Query[T]) RawSchema(v openapi.Version) *openapi.Schema {
	return openapi.NewSchemaGenerator(v).Describe(reflect.TypeFor[T]()).Raw
}

func (Query[T]) ChildSchemas(v openapi.Version) []openapi.NamedSchema {
	return parameterSchemas(v, reflect.TypeFor[T](), openapi.InQuery)
}

func (Query[T]) Parameters(v openapi.Version) []*openapi.Parameter {
	return structParameters(openapi.NewSchemaGenerator(v), reflect.TypeFor[T](), openapi.InQuery)
}

func (Query[T]) document(gen *openapi.SchemaGenerator) (*openapi.RequestBody, []*openapi.Parameter) {
	return nil, structParameters(gen, reflect.TypeFor[T](), openapi.InQuery)
}

// Extract binds r.URL.Query().
func (Query[T]) Extract(r *http.Request) (T, error) {
	var out T
	q := r.URL.Query()
	err := bindValues(&out, openapi.InQuery, func(name string) []string { return q[name] })
	return out, err
}

// Header binds request headers into the fields of struct T.
type Header[T any] struct{ BaseArg }

func (Header[T]) RawSchema(v openapi.Version) *openapi.Schema {
	return openapi.NewSchemaGenerator(v).Describe(reflect.TypeFor[T]()).Raw
}

func (Header[T]) ChildSchemas(v openapi.Version) []openapi.NamedSchema {
	return parameterSchemas(v, reflect.TypeFor[T](), openapi.InHeader)
}

func (Header[T]) Parameters(v openapi.Version) []*openapi.Parameter {
	return structParameters(openapi.NewSchemaGenerator(v), reflect.TypeFor[T](), openapi.InHeader)
}

func (Header[T]) document(gen *openapi.SchemaGenerator) (*openapi.RequestBody, []*openapi.Parameter) {
	return nil, structParameters(gen, reflect.TypeFor[T](), openapi.InHeader)
}

func (Header[T]) checkDeclaration() error {
	for _, p := range structParameters(openapi.NewSchemaGenerator(openapi.Version31), reflect.TypeFor[T](), openapi.InHeader) {
		for _, reserved := range reservedHeaders {
			if strings.EqualFold(p.Name, reserved) {
				return fmt.Errorf("%w: %s (in %s)", ErrReservedHeader, p.Name, reflect.TypeFor[T]())
			}
		}
	}
	return nil
}

// Extract binds r.Header values.
func (Header[T]) Extract(r *http.Request) (T, error) {
	var out T
	err := bindValues(&out, openapi.InHeader, func(name string) []string { return r.Header.Values(name) })
	return out, err
}

// Cookie binds request cookies into the fields of struct T.
type Cookie[T any] struct{ BaseArg }

func (Cookie[T]) RawSchema(v openapi.Version) *openapi.Schema {
	return openapi.NewSchemaGenerator(v).Describe(reflect.TypeFor[T]()).Raw
}

func (Cookie[T]) ChildSchemas(v openapi.Version) []openapi.NamedSchema {
	return parameterSchemas(v, reflect.TypeFor[T](), openapi.InCookie)
}

func (Cookie[T]) Parameters(v openapi.Version) []*openapi.Parameter {
	return structParameters(openapi.NewSchemaGenerator(v), reflect.TypeFor[T](), openapi.InCookie)
}

func (Cookie[T]) document(gen *openapi.SchemaGenerator) (*openapi.RequestBody, []*openapi.Parameter) {
	return nil, structParameters(gen, reflect.TypeFor[T](), openapi.InCookie)
}

// Extract binds cookie values.
func (Cookie[T]) Extract(r *http.Request) (T, error) {
	var out T
	err := bindValues(&out, openapi.InCookie, func(name string) []string {
		c, err := r.Cookie(name)
		if err != nil {
			return nil
		}
		return []string{c.Value}
	})
	return out, err
}

// SecurityRequirement is an argument requiring a named security scheme.
// It carries no request data of its own; authentication is the job of
// middleware.
type SecurityRequirement struct {
	BaseArg
	scheme     string
	definition *openapi.SecurityScheme
}

// Security declares that the handler requires scheme. A non-nil
// definition is registered under components.securitySchemes.
func Security(scheme string, definition *openapi.SecurityScheme) SecurityRequirement {
	return SecurityRequirement{scheme: scheme, definition: definition}
}

func (s SecurityRequirement) SecurityScheme() string { return s.scheme }

func (s SecurityRequirement) SecuritySchemeDefinition() *openapi.SecurityScheme {
	return s.definition
}

// structParameters derives one parameter per exported field of struct t.
// Field types promoted to components are left in gen's side table.
func structParameters(gen *openapi.SchemaGenerator, t reflect.Type, in string) []*openapi.Parameter {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var params []*openapi.Parameter
	for _, f := range fieldsOf(t) {
		name, optional := fieldName(f, in)
		if name == "" {
			continue
		}

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			optional = true
			ft = ft.Elem()
		}

		schema := gen.Describe(ft).Raw
		if schema == nil {
			continue
		}
		// Raw bodies are shared with the generator's side table.
		cp := *schema
		schema = &cp
		openapi.ApplyTag(schema, f.Tag.Get("openapi"))

		p := &openapi.Parameter{
			Name:        name,
			In:          in,
			Description: schema.Description,
			Required:    in == openapi.InPath || !optional,
			Deprecated:  schema.Deprecated,
			Schema:      schema,
		}
		schema.Description = ""
		schema.Deprecated = false

		if in == openapi.InQuery && ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.Uint8 {
			explode := true
			p.Style = "form"
			p.Explode = &explode
		}
		params = append(params, p)
	}
	return params
}

// parameterSchemas returns the component schemas the parameters of t
// refer to, sorted by name.
func parameterSchemas(v openapi.Version, t reflect.Type, in string) []openapi.NamedSchema {
	gen := openapi.NewSchemaGenerator(v)
	structParameters(gen, t, in)

	names := make([]string, 0, len(gen.Schemas()))
	for name := range gen.Schemas() {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]openapi.NamedSchema, 0, len(names))
	for _, name := range names {
		out = append(out, openapi.NamedSchema{Name: name, Schema: gen.Schemas()[name]})
	}
	return out
}

// fieldsOf returns the exported fields of t, flattening embedded structs.
func fieldsOf(t reflect.Type) []reflect.StructField {
	var fields []reflect.StructField
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			fields = append(fields, fieldsOf(f.Type)...)
			continue
		}
		if f.IsExported() {
			fields = append(fields, f)
		}
	}
	return fields
}

// fieldName resolves the bound name of f for location tag: the location
// tag first, then the json name, then the field name. An empty name means
// the field is skipped. The second result reports omitempty.
func fieldName(f reflect.StructField, tag string) (string, bool) {
	name, optional := openapi.ParseJSONTag(f.Tag.Get(tag))
	if name == "" {
		var jsonOptional bool
		name, jsonOptional = openapi.ParseJSONTag(f.Tag.Get("json"))
		optional = optional || jsonOptional
	}
	if name == "-" {
		return "", false
	}
	if name == "" {
		name = f.Name
	}
	return name, optional
}
