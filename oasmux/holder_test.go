package oasmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/apispec/openapi"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name   string
		tpl    string
		path   string
		params []string
	}{
		{"static", "/pets", "/pets", nil},
		{"variable", "/pets/{id}", "/pets/{id}", []string{"id"}},
		{"pattern", "/pets/{id:[0-9]+}", "/pets/{id}", []string{"id"}},
		{"pattern with braces", "/codes/{code:[a-z]{3}}", "/codes/{code}", []string{"code"}},
		{"several", "/stores/{store}/pets/{pet:[0-9]+}", "/stores/{store}/pets/{pet}", []string{"store", "pet"}},
		{"unbalanced", "/pets/{id", "/pets/{id", nil},
		{"root", "/", "/", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, params := parsePath(tt.tpl)
			assert.Equal(t, tt.path, path)

			names := make([]string, 0, len(params))
			for _, p := range params {
				assert.Equal(t, openapi.InPath, p.In)
				assert.True(t, p.Required)
				names = append(names, p.Name)
			}
			if tt.params == nil {
				assert.Empty(t, names)
			} else {
				assert.Equal(t, tt.params, names)
			}
		})
	}
}

func TestPathParamSchema(t *testing.T) {
	tests := []struct {
		pattern string
		typ     string
		format  string
		regex   string
	}{
		{"", "string", "", ""},
		{"[0-9]+", "integer", "", ""},
		{`\d+`, "integer", "", ""},
		{"-?[0-9]+", "integer", "", ""},
		{"[1-9][0-9]*", "integer", "", ""},
		{`[0-9]+(\.[0-9]+)?`, "number", "", ""},
		{`-?\d+\.?\d+`, "number", "", ""},
		{"[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}", "string", "uuid", ""},
		{"[a-z]+", "string", "", "^[a-z]+$"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			s := pathParamSchema(tt.pattern)
			assert.Equal(t, openapi.TypeString(tt.typ), s.Type)
			assert.Equal(t, tt.format, s.Format)
			assert.Equal(t, tt.regex, s.Pattern)
		})
	}
}

func TestPathHelpers(t *testing.T) {
	t.Run("normalize", func(t *testing.T) {
		assert.Equal(t, "", normalizePath(""))
		assert.Equal(t, "/pets", normalizePath("pets"))
		assert.Equal(t, "/pets", normalizePath("//pets"))
		assert.Equal(t, "/", normalizePath("/"))
	})

	t.Run("join", func(t *testing.T) {
		tests := []struct{ prefix, path, want string }{
			{"/v1", "/pets", "/v1/pets"},
			{"/v1/", "/pets", "/v1/pets"},
			{"/v1/", "pets", "/v1/pets"},
			{"/", "/pets", "/pets"},
			{"", "/pets", "/pets"},
			{"/v1", "", "/v1"},
			{"", "", "/"},
			{"/v1", "/", "/v1/"},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, joinPath(tt.prefix, tt.path), "%q + %q", tt.prefix, tt.path)
		}
	})
}

func TestPathMap(t *testing.T) {
	t.Run("merge unions methods", func(t *testing.T) {
		m := PathMap{}
		m.Merge("/pets", map[string]*openapi.Operation{"GET": {OperationID: "list"}})
		m.Merge("/pets", map[string]*openapi.Operation{"POST": {OperationID: "create"}})

		require.Len(t, m, 1)
		assert.Equal(t, "list", m["/pets"].Get.OperationID)
		assert.Equal(t, "create", m["/pets"].Post.OperationID)
	})

	t.Run("later operation replaces earlier", func(t *testing.T) {
		m := PathMap{}
		m.Merge("/pets", map[string]*openapi.Operation{"GET": {OperationID: "first"}})
		m.Merge("/pets", map[string]*openapi.Operation{"GET": {OperationID: "second"}})
		assert.Equal(t, "second", m["/pets"].Get.OperationID)
	})

	t.Run("empty input adds no path", func(t *testing.T) {
		m := PathMap{}
		m.Merge("/pets", nil)
		m.MergeItem("/pets", &openapi.PathItem{})
		m.MergeItem("/pets", nil)
		assert.Empty(t, m)
	})
}
