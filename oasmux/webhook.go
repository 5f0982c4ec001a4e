package oasmux

import (
	"strings"

	"github.com/vitalvas/apispec/openapi"
)

// WebhookProvider contributes webhook path items to the document. Webhooks
// only exist in 3.1 documents.
type WebhookProvider interface {
	Webhooks(v openapi.Version) map[string]*openapi.PathItem
}

// ComponentProvider is implemented by webhook providers whose operations
// reference components.
type ComponentProvider interface {
	Components(v openapi.Version) []*openapi.Components
}

type webhookEntry struct {
	name    string
	method  string
	handler *Handler
}

// WebhookSet declares webhooks with the same Handler declarations routes
// use. The handlers are documented, never routed.
type WebhookSet struct {
	entries []webhookEntry
}

// NewWebhookSet creates an empty set.
func NewWebhookSet() *WebhookSet {
	return &WebhookSet{}
}

// Add declares the request the API sends for webhook name.
func (s *WebhookSet) Add(name, method string, h *Handler) *WebhookSet {
	s.entries = append(s.entries, webhookEntry{name: name, method: strings.ToUpper(method), handler: h})
	return s
}

// Webhooks builds the set's path items; later entries overwrite earlier
// ones per name and method.
func (s *WebhookSet) Webhooks(v openapi.Version) map[string]*openapi.PathItem {
	hooks := PathMap{}
	for _, e := range s.entries {
		op, _, err := e.handler.Build(v)
		if err != nil || op == nil {
			continue
		}
		hooks.Merge(e.name, map[string]*openapi.Operation{e.method: op})
	}
	return hooks
}

// Components returns the component fragments of every entry.
func (s *WebhookSet) Components(v openapi.Version) []*openapi.Components {
	var comps []*openapi.Components
	for _, e := range s.entries {
		_, c, err := e.handler.Build(v)
		if err != nil {
			continue
		}
		comps = append(comps, c...)
	}
	return comps
}

// Err returns the first declaration error of the set's handlers.
func (s *WebhookSet) Err() error {
	for _, e := range s.entries {
		if err := e.handler.Err(); err != nil {
			return err
		}
	}
	return nil
}
