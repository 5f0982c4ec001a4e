// Package oasmux documents a gorilla/mux application as it is built. Routes,
// resources, scopes and configuration blocks are registered through an App,
// which mounts them on the router unchanged and collects an OpenAPI 3.0 or
// 3.1 document from their declarations.
//
// See: https://spec.openapis.org/oas/v3.1.0
// See: https://spec.openapis.org/oas/v3.0.3
//
// # Handlers
//
// A Handler wraps an http.Handler with the declaration of its operation.
// Arguments describe what the handler reads from the request; the typed
// extractors both document and bind it:
//
//	type PetID struct {
//	    ID int64 `path:"id"`
//	}
//
//	var (
//	    petID   oasmux.Path[PetID]
//	    newPet  oasmux.JSON[NewPet]
//	)
//
//	func updatePet(w http.ResponseWriter, r *http.Request) {
//	    id, err := petID.Extract(r)
//	    ...
//	    body, err := newPet.Extract(r)
//	    ...
//	}
//
//	h := oasmux.HandleFunc(updatePet).
//	    Args(petID, newPet, oasmux.Security("bearer", nil)).
//	    Returns(http.StatusOK, Pet{}).
//	    Errors(APIError{}, http.StatusNotFound).
//	    Scopes("bearer", "pets:write").
//	    Tags("pets")
//
// The operation id defaults to the function name ("updatePet"). Anonymous
// functions need Name or OperationID.
//
// # Routing Tree
//
// Nodes nest freely. A scope prefixes every path below it and may carry
// middleware of its own; a ServiceConfig groups routes without a prefix:
//
//	app := oasmux.New(mux.NewRouter(), oasmux.Config{
//	    Info:     openapi.Info{Title: "Pet Store", Version: "1.0.0"},
//	    SpecPath: "/openapi.json",
//	})
//
//	app.Service(oasmux.NewScope("/v1").
//	    Use(authMiddleware).
//	    Service(oasmux.NewResource("/pets/{id:[0-9]+}").
//	        Get(oasmux.HandleFunc(getPet)).
//	        Put(h)).
//	    Configure(stores.Routes))
//
//	if _, err := app.Finish(); err != nil {
//	    log.Fatal(err)
//	}
//
// Router patterns are converted to OpenAPI templates: "/pets/{id:[0-9]+}"
// is documented as "/pets/{id}" with an integer path parameter.
//
// # Aggregation
//
// Paths merge method by method: registering GET and PUT on one path yields
// one path item with both operations, and registering the same method twice
// keeps the later operation. Component fragments are flattened in
// registration order; a later component with the same name wins. Config.Strict
// turns differing components and duplicate operation ids into Build errors.
//
// # Security
//
// Each security argument adds a requirement for its scheme with the scopes
// set by Scopes. Wrapping it in Optional also adds the empty requirement,
// so the operation can be called anonymously.
//
// # Serving
//
// Finish builds the document once, serves it at Config.SpecPath (JSON) and
// Config.SpecYAMLPath (YAML), and registers plugins with the served path.
package oasmux
