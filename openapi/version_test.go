package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"3.0", Version30},
		{"3.0.3", Version30},
		{"3.0.0", Version30},
		{"v3.1", Version31},
		{" 3.1.0 ", Version31},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseVersion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		for _, in := range []string{"2.0", "3.2", "", "3"} {
			_, err := ParseVersion(in)
			assert.ErrorIs(t, err, ErrUnsupportedVersion, in)
		}
	})
}

func TestVersionAdapt(t *testing.T) {
	t.Run("3.0 nullable type", func(t *testing.T) {
		s := &Schema{Type: TypeArray("string", "null")}
		Version30.Adapt(s)
		assert.Equal(t, TypeString("string"), s.Type)
		assert.True(t, s.Nullable)
	})

	t.Run("3.0 multiple non-null types become anyOf", func(t *testing.T) {
		s := &Schema{Type: TypeArray("string", "integer", "null")}
		Version30.Adapt(s)
		assert.True(t, s.Type.IsEmpty())
		assert.True(t, s.Nullable)
		require.Len(t, s.AnyOf, 2)
		assert.Equal(t, TypeString("integer"), s.AnyOf[1].Type)
	})

	t.Run("3.0 ref with siblings moves into allOf", func(t *testing.T) {
		s := &Schema{Ref: RefPrefix + "Pet", Description: "the pet"}
		Version30.Adapt(s)
		assert.Empty(t, s.Ref)
		require.Len(t, s.AllOf, 1)
		assert.Equal(t, RefPrefix+"Pet", s.AllOf[0].Ref)
	})

	t.Run("3.0 examples collapse to example", func(t *testing.T) {
		s := &Schema{Type: TypeString("string"), Examples: []any{"a", "b"}}
		Version30.Adapt(s)
		assert.Nil(t, s.Examples)
		assert.Equal(t, "a", s.Example)
	})

	t.Run("3.0 recurses into nested schemas", func(t *testing.T) {
		s := &Schema{
			Type: TypeString("object"),
			Properties: map[string]*Schema{
				"tags": {Type: TypeString("array"), Items: &Schema{Type: TypeArray("string", "null")}},
			},
		}
		Version30.Adapt(s)
		assert.True(t, s.Properties["tags"].Items.Nullable)
	})

	t.Run("3.1 converts the nullable keyword", func(t *testing.T) {
		s := &Schema{Type: TypeString("integer"), Nullable: true}
		Version31.Adapt(s)
		assert.False(t, s.Nullable)
		assert.Equal(t, TypeArray("integer", "null"), s.Type)

		ref := &Schema{AllOf: []*Schema{Ref("Pet")}, Nullable: true}
		Version31.Adapt(ref)
		assert.Nil(t, ref.AllOf)
		require.Len(t, ref.AnyOf, 2)
		assert.Equal(t, RefPrefix+"Pet", ref.AnyOf[0].Ref)
	})

	t.Run("3.1 converts boolean bounds", func(t *testing.T) {
		lo, hi := 1.0, 9.0
		s := &Schema{
			Minimum: &lo, ExclusiveMinimum: &Bound{Legacy: true},
			Maximum: &hi, ExclusiveMaximum: &Bound{Legacy: true},
		}
		Version31.Adapt(s)
		assert.Nil(t, s.Minimum)
		assert.Nil(t, s.Maximum)
		assert.Equal(t, &Bound{Value: 1}, s.ExclusiveMinimum)
		assert.Equal(t, &Bound{Value: 9}, s.ExclusiveMaximum)
	})

	t.Run("idempotent", func(t *testing.T) {
		for _, v := range []Version{Version30, Version31} {
			build := func() *Schema {
				return &Schema{
					Type:             TypeArray("number", "null"),
					ExclusiveMinimum: &Bound{Value: 0},
					Const:            1.0,
					AnyOf:            []*Schema{Ref("Pet"), {Type: TypeString("null")}},
				}
			}
			once := build()
			v.Adapt(once)
			twice := build()
			v.Adapt(twice)
			v.Adapt(twice)
			assert.Equal(t, once, twice, v.String())
		}
	})

	t.Run("nil", func(t *testing.T) {
		assert.NotPanics(t, func() { Version30.Adapt(nil) })
	})
}

func TestSchemaClone(t *testing.T) {
	orig := &Schema{
		Type:       TypeString("object"),
		Properties: map[string]*Schema{"tag": {Type: TypeArray("string", "null")}},
		AnyOf:      []*Schema{Ref("Pet"), {Type: TypeString("null")}},
	}

	cp := orig.Clone()
	Version30.Adapt(cp)

	assert.True(t, cp.Nullable)
	assert.True(t, cp.Properties["tag"].Nullable)
	assert.Len(t, orig.AnyOf, 2)
	assert.False(t, orig.Nullable)
	assert.Equal(t, TypeArray("string", "null"), orig.Properties["tag"].Type)
	assert.False(t, orig.Properties["tag"].Nullable)

	assert.Nil(t, (*Schema)(nil).Clone())
}

func TestVersionRestrict(t *testing.T) {
	newDoc := func() *Document {
		return &Document{
			Info: Info{
				Title:   "API",
				Summary: "short",
				Version: "1",
				License: &License{Name: "MIT", Identifier: "MIT"},
			},
			JSONSchemaDialect: "https://json-schema.org/draft/2020-12/schema",
			Paths:             map[string]*PathItem{},
			Webhooks: map[string]*PathItem{
				"newPet": {Post: &Operation{OperationID: "newPet"}},
			},
			Components: &Components{
				PathItems: map[string]*PathItem{"shared": {}},
			},
		}
	}

	t.Run("3.0 drops 3.1 fields", func(t *testing.T) {
		doc := newDoc()
		license := doc.Info.License
		dropped := Version30.Restrict(doc)

		assert.Equal(t, "3.0.3", doc.OpenAPI)
		assert.Nil(t, doc.Webhooks)
		assert.Empty(t, doc.JSONSchemaDialect)
		assert.Empty(t, doc.Info.Summary)
		assert.Empty(t, doc.Info.License.Identifier)
		assert.Equal(t, "MIT", license.Identifier, "caller's license is not modified")
		assert.Nil(t, doc.Components.PathItems)
		assert.Equal(t, []string{
			"webhooks (1)",
			"jsonSchemaDialect",
			"info.summary",
			"info.license.identifier",
			"components.pathItems (1)",
		}, dropped)
	})

	t.Run("3.1 keeps everything", func(t *testing.T) {
		doc := newDoc()
		assert.Empty(t, Version31.Restrict(doc))
		assert.Equal(t, "3.1.0", doc.OpenAPI)
		assert.Len(t, doc.Webhooks, 1)
		assert.Equal(t, "short", doc.Info.Summary)
	})
}
