package oasmux

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// checkedMethods are the methods whose request bodies are checked against
// the declared media types.
var checkedMethods = map[string]struct{}{
	http.MethodPost:  {},
	http.MethodPut:   {},
	http.MethodPatch: {},
}

// contentTypeCheck returns a middleware answering 415 Unsupported Media
// Type when a request body's Content-Type is not one of allowed. When the
// body is optional, requests without a body pass.
func contentTypeCheck(allowed []string, required bool) mux.MiddlewareFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		allowedSet[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, check := checkedMethods[r.Method]; !check {
				next.ServeHTTP(w, r)
				return
			}

			ct := r.Header.Get("Content-Type")
			if ct == "" && !required && r.ContentLength <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusUnsupportedMediaType), http.StatusUnsupportedMediaType)
				return
			}

			if _, ok := allowedSet[strings.ToLower(mediaType)]; !ok {
				http.Error(w, http.StatusText(http.StatusUnsupportedMediaType), http.StatusUnsupportedMediaType)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
