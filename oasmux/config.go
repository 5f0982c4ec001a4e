package oasmux

import (
	"log/slog"

	"github.com/vitalvas/apispec/openapi"
)

// Config is the static part of the document and the assembly policy.
type Config struct {
	// Version selects the document version. Defaults to 3.1.
	Version openapi.Version

	Info         openapi.Info
	Servers      []openapi.Server
	Tags         []openapi.Tag
	ExternalDocs *openapi.ExternalDocs

	// Security is the document-wide security requirement.
	Security []openapi.SecurityRequirement

	// SecuritySchemes are registered under components.securitySchemes.
	// They win over definitions carried by handler arguments.
	SecuritySchemes map[string]*openapi.SecurityScheme

	// DefaultParameters are added to every operation that does not
	// declare a parameter with the same name and location.
	DefaultParameters []*openapi.Parameter

	// SpecPath serves the document as JSON. Empty means not served.
	SpecPath string

	// SpecYAMLPath serves the document as YAML. Empty means not served.
	SpecYAMLPath string

	// Strict turns component and operation id collisions into errors
	// instead of resolving them by last registration.
	Strict bool

	// ValidateSchemas compiles every component schema at build time.
	ValidateSchemas bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c Config) version() openapi.Version {
	if c.Version == "" {
		return openapi.Version31
	}
	return c.Version
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
