package oasmux

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Plugin serves something built on the published document, such as a
// documentation UI. It only learns where the document is served.
type Plugin interface {
	Register(r *mux.Router, specPath string) error
}

// PluginFunc adapts a function to Plugin.
type PluginFunc func(r *mux.Router, specPath string) error

func (f PluginFunc) Register(r *mux.Router, specPath string) error {
	return f(r, specPath)
}

// RedirectPlugin redirects GET requests for path to the document.
func RedirectPlugin(path string) Plugin {
	return PluginFunc(func(r *mux.Router, specPath string) error {
		if specPath == "" {
			return ErrNoSpecPath
		}
		r.Handle(normalizePath(path), http.RedirectHandler(specPath, http.StatusFound)).Methods(http.MethodGet)
		return nil
	})
}
