package openapi

import (
	"encoding"
	"log/slog"
	"mime/multipart"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RefPrefix is the JSON pointer prefix of component schema references.
const RefPrefix = "#/components/schemas/"

var (
	timeType          = reflect.TypeOf(time.Time{})
	uuidType          = reflect.TypeOf(uuid.UUID{})
	fileHeaderType    = reflect.TypeOf(multipart.FileHeader{})
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Exampler can be implemented by types to provide an example value
// for the generated schema.
//
//	func (p Pet) OpenAPIExample() any {
//	    return Pet{ID: 1, Name: "Rex"}
//	}
type Exampler interface {
	OpenAPIExample() any
}

// SchemaProvider lets a type describe itself instead of being reflected.
// The returned schema becomes the type's component body. A non-nil error
// means the type contributes no schema; generation continues without it.
type SchemaProvider interface {
	OpenAPISchema(v Version) (*Schema, error)
}

// NamedSchema is a schema registered under a component name.
type NamedSchema struct {
	Name   string
	Schema *Schema
}

// Description is everything the generator knows about one Go type.
type Description struct {
	// Named is the type's own component schema, nil for types that are
	// always inlined (primitives, slices, maps, unnamed structs).
	Named *NamedSchema

	// Children are the other component schemas the type refers to,
	// sorted by name.
	Children []NamedSchema

	// Raw is an inline schema for the type, never a reference. For named
	// types it is the component body.
	Raw *Schema
}

// Ref returns a schema referencing the named component.
func Ref(name string) *Schema {
	return &Schema{Ref: RefPrefix + name}
}

// RefName returns the component name a reference points at.
func RefName(s *Schema) (string, bool) {
	if s == nil || !strings.HasPrefix(s.Ref, RefPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s.Ref, RefPrefix), true
}

// GeneratorOption configures a SchemaGenerator.
type GeneratorOption func(*SchemaGenerator)

// WithLogger sets the logger used to report types that produce no schema.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *SchemaGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// SchemaGenerator converts Go types to schemas for one OpenAPI version and
// collects named types into a component side table.
//
// See: https://spec.openapis.org/oas/v3.1.0#schema-object
type SchemaGenerator struct {
	version   Version
	logger    *slog.Logger
	schemas   map[string]*Schema
	visited   map[reflect.Type]bool
	failed    map[reflect.Type]bool
	typeNames map[reflect.Type]string // type -> chosen schema name
	nameTypes map[string]reflect.Type // schema name -> type that claimed it
}

// NewSchemaGenerator creates a schema generator for version v.
func NewSchemaGenerator(v Version, opts ...GeneratorOption) *SchemaGenerator {
	g := &SchemaGenerator{
		version:   v,
		logger:    slog.Default(),
		schemas:   make(map[string]*Schema),
		visited:   make(map[reflect.Type]bool),
		failed:    make(map[reflect.Type]bool),
		typeNames: make(map[reflect.Type]string),
		nameTypes: make(map[string]reflect.Type),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Version returns the version the generator emits.
func (g *SchemaGenerator) Version() Version {
	return g.version
}

// Schemas returns the collected component schemas.
func (g *SchemaGenerator) Schemas() map[string]*Schema {
	return g.schemas
}

// Generate produces a schema for the given Go value. Named types are
// stored in the side table and referenced via $ref.
func (g *SchemaGenerator) Generate(v any) *Schema {
	if v == nil {
		return nil
	}
	if s, ok := v.(*Schema); ok {
		return s
	}
	return g.GenerateType(reflect.TypeOf(v))
}

// GenerateType is Generate for a reflect.Type.
func (g *SchemaGenerator) GenerateType(t reflect.Type) *Schema {
	s := g.generateType(t)
	g.version.Adapt(s)
	return s
}

// Describe generates t and splits the result into the type's own named
// schema, its children and an inline form. A top-level pointer is
// dereferenced: optionality is the caller's concern.
func (g *SchemaGenerator) Describe(t reflect.Type) Description {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	var d Description
	root := g.GenerateType(t)
	if root == nil {
		return d
	}

	d.Raw = root
	name, isRef := RefName(root)
	if isRef {
		if body, ok := g.schemas[name]; ok {
			d.Named = &NamedSchema{Name: name, Schema: body}
			d.Raw = body
		}
	}

	names := make([]string, 0, len(g.schemas))
	for n := range g.schemas {
		if isRef && n == name {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		d.Children = append(d.Children, NamedSchema{Name: n, Schema: g.schemas[n]})
	}
	return d
}

// generateType produces a schema for t in the 3.1 form, using $ref for
// named struct types and provider types and inline schemas otherwise.
func (g *SchemaGenerator) generateType(t reflect.Type) *Schema {
	nullable := false
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}

	if g.failed[t] {
		return nil
	}

	if name := g.componentName(t); name != "" {
		if !g.visited[t] {
			// Marked before the body is built so recursive types
			// terminate on a reference to themselves.
			g.visited[t] = true
			schema := g.componentBody(t)
			if schema == nil {
				g.failed[t] = true
				return nil
			}
			g.version.Adapt(schema)
			g.schemas[name] = schema
		}

		ref := Ref(name)
		if nullable {
			return &Schema{AnyOf: []*Schema{ref, {Type: TypeString("null")}}}
		}
		return ref
	}

	schema := g.generateInlineType(t)
	if nullable && schema != nil {
		applyNullable(schema)
	}
	return schema
}

// componentName returns the component name for types promoted to
// components: named structs and SchemaProvider implementations.
func (g *SchemaGenerator) componentName(t reflect.Type) string {
	if t == timeType || t == uuidType || t == fileHeaderType {
		return ""
	}
	if !isProvider(t) {
		if t.Kind() != reflect.Struct || t.Implements(textMarshalerType) {
			return ""
		}
	}
	return g.schemaName(t)
}

func isProvider(t reflect.Type) bool {
	providerType := reflect.TypeOf((*SchemaProvider)(nil)).Elem()
	return t.Implements(providerType) || reflect.PointerTo(t).Implements(providerType)
}

// componentBody builds the body of a named component, consulting
// SchemaProvider and Exampler.
func (g *SchemaGenerator) componentBody(t reflect.Type) *Schema {
	if isProvider(t) {
		provider := reflect.New(t).Interface().(SchemaProvider)
		schema, err := provider.OpenAPISchema(g.version)
		if err != nil {
			g.logger.Warn("openapi: schema provider failed, type left undocumented",
				"type", t.String(), "error", err)
			return nil
		}
		return schema
	}

	schema := g.generateStructSchema(t)
	if ex, ok := reflect.New(t).Interface().(Exampler); ok {
		schema.Example = ex.OpenAPIExample()
	}
	return schema
}

// generateInlineType maps Go primitive and composite types to schema types.
//
// See: https://spec.openapis.org/oas/v3.1.0#data-types
func (g *SchemaGenerator) generateInlineType(t reflect.Type) *Schema {
	switch {
	case t == timeType:
		return &Schema{Type: TypeString("string"), Format: "date-time"}
	case t == uuidType:
		return &Schema{Type: TypeString("string"), Format: "uuid"}
	case t == fileHeaderType:
		return &Schema{Type: TypeString("string"), Format: "binary"}
	case t.Kind() != reflect.String && t.Implements(textMarshalerType):
		return &Schema{Type: TypeString("string")}
	}

	switch t.Kind() {
	case reflect.Bool:
		return &Schema{Type: TypeString("boolean")}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &Schema{Type: TypeString("integer"), Format: "int32"}

	case reflect.Int64:
		return &Schema{Type: TypeString("integer"), Format: "int64"}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		zero := 0.0
		return &Schema{Type: TypeString("integer"), Minimum: &zero}

	case reflect.Float32:
		return &Schema{Type: TypeString("number"), Format: "float"}

	case reflect.Float64:
		return &Schema{Type: TypeString("number"), Format: "double"}

	case reflect.String:
		return &Schema{Type: TypeString("string")}

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Schema{Type: TypeString("string"), Format: "byte"}
		}
		return &Schema{
			Type:  TypeString("array"),
			Items: g.generateType(t.Elem()),
		}

	case reflect.Array:
		n := t.Len()
		return &Schema{
			Type:     TypeString("array"),
			Items:    g.generateType(t.Elem()),
			MinItems: &n,
			MaxItems: &n,
		}

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return &Schema{Type: TypeString("object")}
		}
		return &Schema{
			Type:                 TypeString("object"),
			AdditionalProperties: g.generateType(t.Elem()),
		}

	case reflect.Struct:
		return g.generateStructSchema(t)

	case reflect.Interface:
		return &Schema{}
	}

	g.logger.Warn("openapi: unsupported type, no schema generated", "type", t.String(), "kind", t.Kind().String())
	return nil
}

// generateStructSchema builds an object schema from struct fields.
func (g *SchemaGenerator) generateStructSchema(t reflect.Type) *Schema {
	schema := &Schema{
		Type:       TypeString("object"),
		Properties: make(map[string]*Schema),
	}

	g.collectFields(t, schema, false)

	if len(schema.Properties) == 0 {
		schema.Properties = nil
	}

	return schema
}

// collectFields recursively collects struct fields into the schema.
// Pointer-embedded structs make all their fields optional.
func (g *SchemaGenerator) collectFields(t reflect.Type, schema *Schema, allOptional bool) {
	for i := range t.NumField() {
		field := t.Field(i)

		if !field.IsExported() && !field.Anonymous {
			continue
		}

		// encoding/json inlines an embedded struct only without a tag name.
		if field.Anonymous {
			jsonName, _ := parseJSONTag(field.Tag.Get("json"))
			if jsonName == "" {
				ft := field.Type
				isPtr := ft.Kind() == reflect.Pointer
				if isPtr {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct {
					g.collectFields(ft, schema, allOptional || isPtr)
					continue
				}
			}
			if !field.IsExported() {
				continue
			}
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name, opts := parseJSONTag(jsonTag)
		if name == "" {
			name = field.Name
		}

		fieldSchema := g.generateType(field.Type)
		if fieldSchema == nil {
			continue
		}

		ApplyTag(fieldSchema, field.Tag.Get("openapi"))

		if opts.stringEncode && fieldSchema.Ref == "" && len(fieldSchema.AnyOf) == 0 {
			applyStringEncoding(fieldSchema)
		}

		schema.Properties[name] = fieldSchema

		if !opts.omitempty && !allOptional && !containsString(schema.Required, name) {
			schema.Required = append(schema.Required, name)
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type jsonTagOpts struct {
	omitempty    bool
	stringEncode bool // encoding/json ",string" option
}

// ParseJSONTag splits a json struct tag into the field name and whether
// the field may be absent (omitempty or omitzero).
func ParseJSONTag(tag string) (string, bool) {
	name, opts := parseJSONTag(tag)
	return name, opts.omitempty
}

func parseJSONTag(tag string) (string, jsonTagOpts) {
	if tag == "" {
		return "", jsonTagOpts{}
	}
	name, rest, _ := strings.Cut(tag, ",")
	return name, jsonTagOpts{
		omitempty:    strings.Contains(rest, "omitempty") || strings.Contains(rest, "omitzero"),
		stringEncode: strings.Contains(rest, "string"),
	}
}

// ApplyTag parses an `openapi` struct tag and applies its constraints to
// the schema. Unknown keys and unparsable values are ignored.
//
//	Limit int `openapi:"description=Page size,minimum=1,maximum=100"`
func ApplyTag(schema *Schema, tag string) {
	if tag == "" {
		return
	}

	for part := range strings.SplitSeq(tag, ",") {
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if hasValue {
			value = strings.TrimSpace(value)
		}

		switch key {
		case "description":
			schema.Description = value
		case "example":
			schema.Example = parseExampleValue(schema, value)
		case "format":
			schema.Format = value
		case "minimum":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				schema.Minimum = &v
			}
		case "maximum":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				schema.Maximum = &v
			}
		case "exclusiveMinimum":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				schema.ExclusiveMinimum = &Bound{Value: v}
			}
		case "exclusiveMaximum":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				schema.ExclusiveMaximum = &Bound{Value: v}
			}
		case "minLength":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MinLength = &v
			}
		case "maxLength":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MaxLength = &v
			}
		case "pattern":
			schema.Pattern = value
		case "enum":
			values := strings.Split(value, "|")
			schema.Enum = make([]any, len(values))
			for i, v := range values {
				schema.Enum[i] = parseExampleValue(schema, v)
			}
		case "deprecated":
			schema.Deprecated = true
		case "readOnly":
			schema.ReadOnly = true
		case "writeOnly":
			schema.WriteOnly = true
		case "title":
			schema.Title = value
		case "multipleOf":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				schema.MultipleOf = &v
			}
		case "minItems":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MinItems = &v
			}
		case "maxItems":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MaxItems = &v
			}
		case "uniqueItems":
			schema.UniqueItems = true
		case "minProperties":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MinProperties = &v
			}
		case "maxProperties":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MaxProperties = &v
			}
		case "const":
			schema.Const = parseExampleValue(schema, value)
		}
	}
}

// parseExampleValue converts a string tag value to the Go type matching
// the schema's type.
func parseExampleValue(schema *Schema, value string) any {
	types := schema.Type.Values()
	if len(types) == 0 {
		return value
	}

	switch types[0] {
	case "integer":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case "number":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case "boolean":
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return value
}

// schemaName returns a unique component name for t. A simple name already
// claimed by a type from another package gets the package's last path
// segment as a prefix ("ApiUser"); a remaining clash gets a numeric suffix.
func (g *SchemaGenerator) schemaName(t reflect.Type) string {
	simple := sanitizeSchemaName(t.Name())
	if simple == "" || t.PkgPath() == "" {
		return ""
	}

	if name, ok := g.typeNames[t]; ok {
		return name
	}

	name := simple
	if existing, ok := g.nameTypes[name]; ok && existing != t {
		name = pkgPrefix(t.PkgPath()) + simple
		if existing, ok := g.nameTypes[name]; ok && existing != t {
			base := name
			for i := 2; ; i++ {
				candidate := base + strconv.Itoa(i)
				if _, ok := g.nameTypes[candidate]; !ok {
					name = candidate
					break
				}
			}
		}
	}

	g.typeNames[t] = name
	g.nameTypes[name] = t
	return name
}

var prefixCaser = cases.Title(language.Und, cases.NoLower)

// pkgPrefix turns the last segment of a package path into a schema name
// prefix ("net/http" -> "Http", "go-kit" -> "Go_kit").
func pkgPrefix(pkgPath string) string {
	if idx := strings.LastIndexByte(pkgPath, '/'); idx >= 0 {
		pkgPath = pkgPath[idx+1:]
	}
	if pkgPath == "" {
		return ""
	}
	pkgPath = strings.NewReplacer("-", "_", ".", "_").Replace(pkgPath)
	first := prefixCaser.String(pkgPath[:1])
	return first + pkgPath[1:]
}

// sanitizeSchemaName cleans generic type names for use as component keys:
// "Page[pkg.Pet]" becomes "PagePet" and "Page[[]pkg.Pet]" "PagePetList".
func sanitizeSchemaName(name string) string {
	idx := strings.IndexByte(name, '[')
	if idx < 0 {
		return name
	}

	base := name[:idx]
	inner := name[idx+1 : len(name)-1]

	var result strings.Builder
	result.WriteString(base)
	for arg := range strings.SplitSeq(inner, ",") {
		arg = strings.TrimSpace(arg)
		isList := strings.HasPrefix(arg, "[]")
		arg = strings.TrimPrefix(arg, "[]")
		arg = strings.TrimPrefix(arg, "*")
		if dot := strings.LastIndexByte(arg, '.'); dot >= 0 {
			arg = arg[dot+1:]
		}
		result.WriteString(arg)
		if isList {
			result.WriteString("List")
		}
	}
	return result.String()
}

// applyNullable widens a schema's type with "null".
func applyNullable(schema *Schema) {
	if schema.Ref != "" {
		return
	}
	types := schema.Type.Values()
	if len(types) > 0 && !containsString(types, "null") {
		schema.Type = TypeArray(append(append([]string(nil), types...), "null")...)
	}
}

// applyStringEncoding overrides the type with "string" to match the
// encoding/json ",string" option, keeping a "null" variant.
func applyStringEncoding(schema *Schema) {
	types := schema.Type.Values()
	if len(types) == 0 {
		return
	}
	schema.Format = ""
	schema.Minimum = nil
	if containsString(types, "null") {
		schema.Type = TypeArray("string", "null")
	} else {
		schema.Type = TypeString("string")
	}
}
