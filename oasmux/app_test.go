package oasmux

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/apispec/openapi"
)

func testConfig() Config {
	return Config{
		Info:     openapi.Info{Title: "Pet Store", Version: "1.0.0"},
		SpecPath: "/openapi.json",
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestAppPathUnion(t *testing.T) {
	app := New(mux.NewRouter(), testConfig())
	app.Route("/pets", HandleFunc(listPets))
	app.Route("/pets", HandleFunc(createPet).Args(JSON[NewPet]{}), http.MethodPost)
	app.Service(NewResource("/pets/{id:[0-9]+}").Get(HandleFunc(getPet)))

	doc, err := app.Build()
	require.NoError(t, err)
	require.Len(t, doc.Paths, 2)

	pets := doc.Paths["/pets"]
	assert.Equal(t, "listPets", pets.Get.OperationID)
	assert.Equal(t, "createPet", pets.Post.OperationID)
	assert.Equal(t, "getPet", doc.Paths["/pets/{id}"].Get.OperationID)
}

func TestAppMethodOverwrite(t *testing.T) {
	app := New(mux.NewRouter(), testConfig())
	app.Route("/pets", HandleFunc(listPets).Summary("first"))
	app.Route("/pets", HandleFunc(listPets).Summary("second").Name("listPetsV2"))

	doc, err := app.Build()
	require.NoError(t, err)
	assert.Equal(t, "second", doc.Paths["/pets"].Get.Summary)
	assert.Equal(t, "listPetsV2", doc.Paths["/pets"].Get.OperationID)
}

func TestAppComponents(t *testing.T) {
	t.Run("shared schemas are registered once", func(t *testing.T) {
		app := New(mux.NewRouter(), Config{Strict: true, Logger: slog.New(slog.DiscardHandler)})
		app.Route("/pets", HandleFunc(listPets).Returns(http.StatusOK, []Pet{}))
		app.Route("/pets/{id}", HandleFunc(getPet).Returns(http.StatusOK, Pet{}).Errors(APIError{}))
		app.Route("/pets", HandleFunc(createPet).Args(JSON[NewPet]{}).Returns(http.StatusCreated, Pet{}), http.MethodPost)

		doc, err := app.Build()
		require.NoError(t, err)
		require.NotNil(t, doc.Components)
		assert.Len(t, doc.Components.Schemas, 3)
		assert.Contains(t, doc.Components.Schemas, "Pet")
		assert.Contains(t, doc.Components.Schemas, "NewPet")
		assert.Contains(t, doc.Components.Schemas, "APIError")
	})

	t.Run("no components", func(t *testing.T) {
		app := New(mux.NewRouter(), testConfig())
		app.Route("/health", HandleFunc(listPets))
		doc, err := app.Build()
		require.NoError(t, err)
		assert.Nil(t, doc.Components)
	})

	t.Run("lenient collision keeps the later body", func(t *testing.T) {
		type Pet struct {
			Nickname string `json:"nickname"`
		}
		app := New(mux.NewRouter(), testConfig())
		app.Route("/a", HandleFunc(listPets).Returns(http.StatusOK, oasmuxPet()))
		app.Route("/b", HandleFunc(getPet).Returns(http.StatusOK, Pet{}))

		doc, err := app.Build()
		require.NoError(t, err)
		assert.Contains(t, doc.Components.Schemas["Pet"].Properties, "nickname")
	})

	t.Run("strict collision fails", func(t *testing.T) {
		type Pet struct {
			Nickname string `json:"nickname"`
		}
		cfg := testConfig()
		cfg.Strict = true
		app := New(mux.NewRouter(), cfg)
		app.Route("/a", HandleFunc(listPets).Returns(http.StatusOK, Pet{}))
		app.Route("/b", HandleFunc(getPet).Returns(http.StatusOK, oasmuxPet()))

		_, err := app.Build()
		assert.ErrorIs(t, err, openapi.ErrComponentCollision)
	})

	t.Run("config schemes win over argument definitions", func(t *testing.T) {
		fromConfig := &openapi.SecurityScheme{Type: "http", Scheme: "bearer", Description: "config"}
		cfg := testConfig()
		cfg.SecuritySchemes = map[string]*openapi.SecurityScheme{"bearer": fromConfig}

		app := New(mux.NewRouter(), cfg)
		app.Route("/pets", HandleFunc(listPets).Args(Security("bearer", &openapi.SecurityScheme{Type: "http", Scheme: "bearer"})))

		doc, err := app.Build()
		require.NoError(t, err)
		assert.Same(t, fromConfig, doc.Components.SecuritySchemes["bearer"])
	})
}

// oasmuxPet returns the package-level Pet, which shares its component name
// with test-local Pet types.
func oasmuxPet() Pet {
	return Pet{}
}

func TestAppOperationIDs(t *testing.T) {
	t.Run("same operation on several methods", func(t *testing.T) {
		cfg := testConfig()
		cfg.Strict = true
		app := New(mux.NewRouter(), cfg)
		app.Route("/pets", HandleFunc(listPets), http.MethodGet, http.MethodHead)

		_, err := app.Build()
		assert.NoError(t, err)
	})

	t.Run("strict duplicates fail", func(t *testing.T) {
		cfg := testConfig()
		cfg.Strict = true
		app := New(mux.NewRouter(), cfg)
		app.Route("/pets", HandleFunc(listPets))
		app.Route("/animals", HandleFunc(listPets))

		_, err := app.Build()
		require.ErrorIs(t, err, ErrDuplicateOperationID)
		assert.Contains(t, err.Error(), `"listPets"`)
	})

	t.Run("lenient duplicates are kept", func(t *testing.T) {
		app := New(mux.NewRouter(), testConfig())
		app.Route("/pets", HandleFunc(listPets))
		app.Route("/animals", HandleFunc(listPets))

		doc, err := app.Build()
		require.NoError(t, err)
		assert.Equal(t, "listPets", doc.Paths["/pets"].Get.OperationID)
		assert.Equal(t, "listPets", doc.Paths["/animals"].Get.OperationID)
	})
}

func TestAppSecurity(t *testing.T) {
	bearer := &openapi.SecurityScheme{Type: "http", Scheme: "bearer"}

	app := New(mux.NewRouter(), testConfig())
	app.Route("/pets", HandleFunc(listPets).Args(Optional(Security("bearer", bearer))))
	app.Route("/pets", HandleFunc(createPet).Args(Security("bearer", bearer)).Scopes("bearer", "pets:write"), http.MethodPost)

	doc, err := app.Build()
	require.NoError(t, err)

	data, err := doc.JSON(false)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"security":[{"bearer":[]},{}]`)
	assert.Contains(t, string(data), `"security":[{"bearer":["pets:write"]}]`)
	assert.Contains(t, string(data), `"securitySchemes":{"bearer":{"type":"http","scheme":"bearer"}}`)
}

func TestAppErrorAllowList(t *testing.T) {
	app := New(mux.NewRouter(), testConfig())
	app.Route("/pets/{id}", HandleFunc(getPet).Returns(http.StatusOK, Pet{}).Errors(APIError{}, http.StatusNotFound))

	doc, err := app.Build()
	require.NoError(t, err)

	responses := doc.Paths["/pets/{id}"].Get.Responses
	assert.Len(t, responses, 2)
	assert.Equal(t, "Pet not found", responses["404"].Description)
}

func TestAppDefaultParameters(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultParameters = []*openapi.Parameter{
		{Name: "X-Request-ID", In: openapi.InHeader, Schema: &openapi.Schema{Type: openapi.TypeString("string")}},
	}

	type Trace struct {
		RequestID string `header:"X-Request-ID" openapi:"description=Caller trace id"`
	}

	app := New(mux.NewRouter(), cfg)
	app.Route("/pets", HandleFunc(listPets))
	app.Route("/pets/{id}", HandleFunc(getPet).Args(Header[Trace]{}))

	doc, err := app.Build()
	require.NoError(t, err)

	list := doc.Paths["/pets"].Get.Parameters
	require.Len(t, list, 1)
	assert.Equal(t, "X-Request-ID", list[0].Name)

	get := doc.Paths["/pets/{id}"].Get.Parameters
	require.Len(t, get, 2)
	assert.Equal(t, "Caller trace id", get[0].Description)
	assert.Equal(t, "id", get[1].Name)
}

func TestAppDefaultParametersVersion(t *testing.T) {
	configured := &openapi.Schema{Type: openapi.TypeArray("string", "null")}
	cfg := testConfig()
	cfg.Version = openapi.Version30
	cfg.DefaultParameters = []*openapi.Parameter{
		{Name: "X-Tenant", In: openapi.InHeader, Schema: configured},
	}

	app := New(mux.NewRouter(), cfg)
	app.Route("/pets", HandleFunc(listPets))

	doc, err := app.Build()
	require.NoError(t, err)

	params := doc.Paths["/pets"].Get.Parameters
	require.Len(t, params, 1)
	assert.Equal(t, openapi.TypeString("string"), params[0].Schema.Type)
	assert.True(t, params[0].Schema.Nullable)

	assert.Equal(t, openapi.TypeArray("string", "null"), configured.Type)
	assert.False(t, configured.Nullable)
}

func TestAppTags(t *testing.T) {
	cfg := testConfig()
	cfg.Tags = []openapi.Tag{
		{Name: "pets", Description: "Pet operations"},
		{Name: "unused", Description: "Declared only"},
	}

	app := New(mux.NewRouter(), cfg)
	app.Route("/pets", HandleFunc(listPets).Tags("pets"))
	app.Route("/stores", HandleFunc(listPets).Name("listStores").Tags("stores", "pets"))

	doc, err := app.Build()
	require.NoError(t, err)
	assert.Equal(t, []openapi.Tag{
		{Name: "pets", Description: "Pet operations"},
		{Name: "stores"},
		{Name: "unused", Description: "Declared only"},
	}, doc.Tags)
}

func TestAppRegistration(t *testing.T) {
	t.Run("declaration errors are neither mounted nor documented", func(t *testing.T) {
		r := mux.NewRouter()
		app := New(r, testConfig())
		app.Route("/good", HandleFunc(listPets))
		app.Route("/bad", HandleFunc(getPet).Returns(999, nil))

		assert.ErrorIs(t, app.Err(), ErrInvalidStatus)
		assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/bad").Code)
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/good").Code)

		_, err := app.Build()
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("skipped handlers are routed", func(t *testing.T) {
		r := mux.NewRouter()
		app := New(r, testConfig())
		app.Route("/internal", HandleFunc(listPets).Skip())

		doc, err := app.Build()
		require.NoError(t, err)
		assert.Empty(t, doc.Paths)
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/internal").Code)
	})

	t.Run("registration after build", func(t *testing.T) {
		app := New(mux.NewRouter(), testConfig())
		app.Route("/pets", HandleFunc(listPets))
		first, err := app.Build()
		require.NoError(t, err)

		app.Route("/late", HandleFunc(getPet))
		assert.ErrorIs(t, app.Err(), ErrFinished)

		second, err := app.Build()
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.NotContains(t, second.Paths, "/late")
	})

	t.Run("children added after registration", func(t *testing.T) {
		r := mux.NewRouter()
		app := New(r, testConfig())
		scope := NewScope("/x")
		app.Service(scope)
		scope.Route("/y", HandleFunc(listPets))

		assert.ErrorIs(t, app.Err(), ErrMounted)
		assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/x/y").Code)

		doc, err := app.Build()
		assert.ErrorIs(t, err, ErrMounted)
		assert.Nil(t, doc)
	})

	t.Run("methods added after registration", func(t *testing.T) {
		app := New(mux.NewRouter(), testConfig())
		res := NewResource("/pets").Get(HandleFunc(listPets))
		app.Service(res)
		res.Post(HandleFunc(createPet))

		_, err := app.Build()
		assert.ErrorIs(t, err, ErrMounted)
		assert.ErrorContains(t, err, "POST /pets")
	})

	t.Run("configure", func(t *testing.T) {
		r := mux.NewRouter()
		app := New(r, testConfig())
		app.Configure(func(cfg *ServiceConfig) {
			cfg.Route("/stores", HandleFunc(listPets).Name("listStores"))
		})

		doc, err := app.Build()
		require.NoError(t, err)
		assert.Contains(t, doc.Paths, "/stores")
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/stores").Code)
	})

	t.Run("router", func(t *testing.T) {
		r := mux.NewRouter()
		assert.Same(t, r, New(r, testConfig()).Router())
	})

	t.Run("empty document has paths", func(t *testing.T) {
		doc, err := New(mux.NewRouter(), testConfig()).Build()
		require.NoError(t, err)
		data, err := doc.JSON(false)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"paths":{}`)
	})
}

func TestAppVersions(t *testing.T) {
	hooks := NewWebhookSet().
		Add("petAdopted", http.MethodPost, HandleFunc(listPets).Name("petAdopted").Args(JSON[Pet]{}).Tags("events"))

	t.Run("3.1 keeps webhooks", func(t *testing.T) {
		app := New(mux.NewRouter(), testConfig())
		app.Webhooks(hooks)
		app.Route("/pets", HandleFunc(listPets).Tags("pets"))

		doc, err := app.Build()
		require.NoError(t, err)
		assert.Equal(t, "3.1.0", doc.OpenAPI)
		require.Contains(t, doc.Webhooks, "petAdopted")
		assert.Equal(t, "petAdopted", doc.Webhooks["petAdopted"].Post.OperationID)
		assert.Contains(t, doc.Components.Schemas, "Pet")
		assert.Equal(t, []openapi.Tag{{Name: "events"}, {Name: "pets"}}, doc.Tags)
	})

	t.Run("3.0 drops webhooks with a warning", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := testConfig()
		cfg.Version = openapi.Version30
		cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))

		app := New(mux.NewRouter(), cfg)
		app.Webhooks(hooks)
		app.Route("/pets", HandleFunc(listPets).Tags("pets"))

		doc, err := app.Build()
		require.NoError(t, err)
		assert.Equal(t, "3.0.3", doc.OpenAPI)
		assert.Nil(t, doc.Webhooks)
		assert.Equal(t, []openapi.Tag{{Name: "pets"}}, doc.Tags)
		assert.Contains(t, buf.String(), "webhooks (1)")
	})

	t.Run("webhook declaration error", func(t *testing.T) {
		app := New(mux.NewRouter(), testConfig())
		app.Webhooks(NewWebhookSet().Add("bad", http.MethodPost, HandleFunc(listPets).Returns(7, nil)))
		assert.ErrorIs(t, app.Err(), ErrInvalidStatus)
	})

	t.Run("schema validation", func(t *testing.T) {
		for _, v := range []openapi.Version{openapi.Version30, openapi.Version31} {
			cfg := testConfig()
			cfg.Version = v
			cfg.ValidateSchemas = true

			app := New(mux.NewRouter(), cfg)
			app.Route("/pets", HandleFunc(createPet).Args(JSON[NewPet]{}).Returns(http.StatusCreated, Pet{}).Errors(APIError{}), http.MethodPost)

			_, err := app.Build()
			assert.NoError(t, err, v.String())
		}
	})
}

func TestAppFinish(t *testing.T) {
	newApp := func(v openapi.Version) (*mux.Router, *App) {
		cfg := testConfig()
		cfg.Version = v
		cfg.SpecYAMLPath = "openapi.yaml"

		r := mux.NewRouter()
		app := New(r, cfg)
		app.Service(NewScope("/v1").
			Route("/pets", HandleFunc(listPets).Args(Query[ListParams]{}).Returns(http.StatusOK, []Pet{})).
			Route("/pets", HandleFunc(createPet).Args(JSON[NewPet]{}).Returns(http.StatusCreated, Pet{}), http.MethodPost).
			Service(NewResource("/pets/{id:[0-9]+}").Get(HandleFunc(getPet).Args(Path[PetID]{}).Errors(APIError{}))))
		return r, app
	}

	for _, v := range []openapi.Version{openapi.Version30, openapi.Version31} {
		t.Run(v.String(), func(t *testing.T) {
			r, app := newApp(v)
			assert.Nil(t, app.Document())

			doc, err := app.Finish()
			require.NoError(t, err)
			assert.Same(t, doc, app.Document())

			want, err := doc.JSON(true)
			require.NoError(t, err)

			w := serve(r, http.MethodGet, "/openapi.json")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, MIMEJSON, w.Header().Get("Content-Type"))
			assert.Equal(t, want, w.Body.Bytes())

			parsed, err := openapi.ParseJSON(w.Body.Bytes())
			require.NoError(t, err)
			again, err := parsed.JSON(true)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(again))

			w = serve(r, http.MethodGet, "/openapi.yaml")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))

			fromYAML, err := openapi.ParseYAML(w.Body.Bytes())
			require.NoError(t, err)
			again, err = fromYAML.JSON(true)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(again))

			assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/v1/pets/3").Code)
		})
	}

	t.Run("finish is idempotent", func(t *testing.T) {
		_, app := newApp(openapi.Version31)
		first, err := app.Finish()
		require.NoError(t, err)
		second, err := app.Finish()
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("build error", func(t *testing.T) {
		app := New(mux.NewRouter(), testConfig())
		app.Route("/bad", HandleFunc(listPets).Returns(1, nil))

		_, err := app.Finish()
		assert.ErrorIs(t, err, ErrInvalidStatus)
		assert.Nil(t, app.Document())
	})

	t.Run("spec path preference", func(t *testing.T) {
		cfg := testConfig()
		cfg.SpecYAMLPath = "/openapi.yaml"
		assert.Equal(t, "/openapi.json", New(mux.NewRouter(), cfg).SpecPath())

		cfg.SpecPath = ""
		assert.Equal(t, "/openapi.yaml", New(mux.NewRouter(), cfg).SpecPath())

		cfg.SpecYAMLPath = ""
		assert.Empty(t, New(mux.NewRouter(), cfg).SpecPath())
	})
}

func TestAppPlugins(t *testing.T) {
	t.Run("redirect", func(t *testing.T) {
		r := mux.NewRouter()
		app := New(r, testConfig())
		app.Plugin(RedirectPlugin("docs"))

		_, err := app.Finish()
		require.NoError(t, err)

		w := serve(r, http.MethodGet, "/docs")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/openapi.json", w.Header().Get("Location"))
	})

	t.Run("plugin receives the spec path", func(t *testing.T) {
		var got string
		app := New(mux.NewRouter(), testConfig())
		app.Plugin(PluginFunc(func(_ *mux.Router, specPath string) error {
			got = specPath
			return nil
		}))

		_, err := app.Finish()
		require.NoError(t, err)
		assert.Equal(t, "/openapi.json", got)
	})

	t.Run("redirect needs a served document", func(t *testing.T) {
		cfg := testConfig()
		cfg.SpecPath = ""
		app := New(mux.NewRouter(), cfg)
		app.Plugin(RedirectPlugin("/docs"))

		_, err := app.Finish()
		assert.ErrorIs(t, err, ErrNoSpecPath)
	})

	t.Run("plugin error", func(t *testing.T) {
		boom := errors.New("boom")
		app := New(mux.NewRouter(), testConfig())
		app.Plugin(PluginFunc(func(*mux.Router, string) error { return boom }))

		_, err := app.Finish()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("plugin after finish", func(t *testing.T) {
		app := New(mux.NewRouter(), testConfig())
		_, err := app.Finish()
		require.NoError(t, err)

		app.Plugin(RedirectPlugin("/docs"))
		assert.ErrorIs(t, app.Err(), ErrFinished)
	})
}

func TestAppServesRequests(t *testing.T) {
	r := mux.NewRouter()
	app := New(r, testConfig())
	app.Route("/pets", HandleFunc(createPet).Args(JSON[NewPet]{}), http.MethodPost)

	_, err := app.Finish()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/pets", bytes.NewBufferString(`{"name":"Rex"}`))
	req.Header.Set("Content-Type", MIMEJSON)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2,"name":"Rex"}`, string(body))
}
