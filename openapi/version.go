package openapi

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Version selects the OpenAPI document version and, with it, the schema
// dialect. It is passed explicitly wherever schemas or operations are
// produced.
type Version string

const (
	// Version30 emits OpenAPI 3.0.3 documents with the 3.0 schema dialect
	// (nullable keyword, boolean exclusive bounds).
	Version30 Version = "3.0.3"

	// Version31 emits OpenAPI 3.1.0 documents with JSON Schema Draft 2020-12.
	Version31 Version = "3.1.0"
)

// ErrUnsupportedVersion is returned by ParseVersion for unknown versions.
var ErrUnsupportedVersion = errors.New("unsupported OpenAPI version")

// ParseVersion accepts "3.0", "3.1" and any patch release of either.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	switch {
	case s == "3.0" || strings.HasPrefix(s, "3.0."):
		return Version30, nil
	case s == "3.1" || strings.HasPrefix(s, "3.1."):
		return Version31, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
}

// Is30 reports whether v uses the 3.0 dialect.
func (v Version) Is30() bool {
	return strings.HasPrefix(string(v), "3.0")
}

// String returns the version as written into the openapi field.
func (v Version) String() string {
	return string(v)
}

// Adapt rewrites schema in place, recursively, into the dialect of v.
// Schemas are produced in the 3.1 form; for 3.0 nullable types, nullable
// references, exclusive bounds, const and examples are converted.
func (v Version) Adapt(s *Schema) {
	if s == nil {
		return
	}
	if v.Is30() {
		adapt30(s)
	} else {
		adapt31(s)
	}
	v.Adapt(s.Items)
	v.Adapt(s.AdditionalProperties)
	v.Adapt(s.Not)
	for _, sub := range s.Properties {
		v.Adapt(sub)
	}
	for _, sub := range s.Defs {
		v.Adapt(sub)
	}
	for _, list := range [][]*Schema{s.AllOf, s.OneOf, s.AnyOf, s.PrefixItems} {
		for _, sub := range list {
			v.Adapt(sub)
		}
	}
}

// Clone returns a copy of the schema tree that Adapt can rewrite without
// touching s. Leaf values such as enums and examples are shared.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Items = s.Items.Clone()
	cp.AdditionalProperties = s.AdditionalProperties.Clone()
	cp.Not = s.Not.Clone()
	cp.Properties = cloneSchemaMap(s.Properties)
	cp.Defs = cloneSchemaMap(s.Defs)
	cp.AllOf = cloneSchemaList(s.AllOf)
	cp.OneOf = cloneSchemaList(s.OneOf)
	cp.AnyOf = cloneSchemaList(s.AnyOf)
	cp.PrefixItems = cloneSchemaList(s.PrefixItems)
	return &cp
}

func cloneSchemaMap(m map[string]*Schema) map[string]*Schema {
	if m == nil {
		return nil
	}
	out := make(map[string]*Schema, len(m))
	for k, s := range m {
		out[k] = s.Clone()
	}
	return out
}

func cloneSchemaList(list []*Schema) []*Schema {
	if list == nil {
		return nil
	}
	out := make([]*Schema, len(list))
	for i, s := range list {
		out[i] = s.Clone()
	}
	return out
}

func isNullSchema(s *Schema) bool {
	return s != nil && s.Ref == "" && slices.Equal(s.Type.Values(), []string{"null"})
}

func adapt30(s *Schema) {
	if types := s.Type.Values(); slices.Contains(types, "null") {
		rest := slices.DeleteFunc(slices.Clone(types), func(t string) bool { return t == "null" })
		s.Nullable = true
		switch len(rest) {
		case 0:
			s.Type = SchemaType{}
		case 1:
			s.Type = TypeString(rest[0])
		default:
			s.Type = SchemaType{}
			for _, t := range rest {
				s.AnyOf = append(s.AnyOf, &Schema{Type: TypeString(t)})
			}
		}
	}

	if slices.ContainsFunc(s.AnyOf, isNullSchema) {
		s.AnyOf = slices.DeleteFunc(s.AnyOf, isNullSchema)
		s.Nullable = true
		if len(s.AnyOf) == 1 && s.AnyOf[0].Ref != "" {
			s.AllOf = append(s.AllOf, s.AnyOf[0])
			s.AnyOf = nil
		}
	}

	// A 3.0 $ref replaces the whole object, so siblings need allOf.
	if s.Ref != "" && hasRefSiblings(s) {
		s.AllOf = append([]*Schema{{Ref: s.Ref}}, s.AllOf...)
		s.Ref = ""
	}

	if s.ExclusiveMinimum != nil && !s.ExclusiveMinimum.Legacy {
		v := s.ExclusiveMinimum.Value
		s.Minimum = &v
		s.ExclusiveMinimum = &Bound{Legacy: true}
	}
	if s.ExclusiveMaximum != nil && !s.ExclusiveMaximum.Legacy {
		v := s.ExclusiveMaximum.Value
		s.Maximum = &v
		s.ExclusiveMaximum = &Bound{Legacy: true}
	}

	if s.Const != nil {
		s.Enum = []any{s.Const}
		s.Const = nil
	}

	if len(s.Examples) > 0 {
		if s.Example == nil {
			s.Example = s.Examples[0]
		}
		s.Examples = nil
	}
}

func adapt31(s *Schema) {
	if s.Nullable {
		s.Nullable = false
		switch {
		case s.Ref != "":
			s.AnyOf = append(s.AnyOf, &Schema{Ref: s.Ref}, &Schema{Type: TypeString("null")})
			s.Ref = ""
		case len(s.AllOf) == 1 && s.AllOf[0].Ref != "":
			s.AnyOf = append(s.AnyOf, s.AllOf[0], &Schema{Type: TypeString("null")})
			s.AllOf = nil
		case !s.Type.IsEmpty() && !slices.Contains(s.Type.Values(), "null"):
			s.Type = TypeArray(append(slices.Clone(s.Type.Values()), "null")...)
		}
	}

	if s.ExclusiveMinimum != nil && s.ExclusiveMinimum.Legacy && s.Minimum != nil {
		s.ExclusiveMinimum = &Bound{Value: *s.Minimum}
		s.Minimum = nil
	}
	if s.ExclusiveMaximum != nil && s.ExclusiveMaximum.Legacy && s.Maximum != nil {
		s.ExclusiveMaximum = &Bound{Value: *s.Maximum}
		s.Maximum = nil
	}
}

func hasRefSiblings(s *Schema) bool {
	return s.Description != "" || s.Title != "" || s.Default != nil ||
		s.Example != nil || s.Deprecated || s.ReadOnly || s.WriteOnly || s.Nullable
}

// Restrict removes document fields that do not exist in v. It returns a
// description of every dropped field so the caller can report it.
func (v Version) Restrict(doc *Document) []string {
	doc.OpenAPI = v.String()
	if !v.Is30() {
		return nil
	}

	var dropped []string
	if len(doc.Webhooks) > 0 {
		dropped = append(dropped, fmt.Sprintf("webhooks (%d)", len(doc.Webhooks)))
		doc.Webhooks = nil
	}
	if doc.JSONSchemaDialect != "" {
		dropped = append(dropped, "jsonSchemaDialect")
		doc.JSONSchemaDialect = ""
	}
	if doc.Info.Summary != "" {
		dropped = append(dropped, "info.summary")
		doc.Info.Summary = ""
	}
	if doc.Info.License != nil && doc.Info.License.Identifier != "" {
		dropped = append(dropped, "info.license.identifier")
		lic := *doc.Info.License
		lic.Identifier = ""
		doc.Info.License = &lic
	}
	if doc.Components != nil && len(doc.Components.PathItems) > 0 {
		dropped = append(dropped, fmt.Sprintf("components.pathItems (%d)", len(doc.Components.PathItems)))
		doc.Components.PathItems = nil
	}
	return dropped
}
