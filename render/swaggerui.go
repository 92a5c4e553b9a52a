// Package render adapts the catalog's rendering boundary to concrete
// collaborators: the Swagger UI configuration object embedded in pages, and a
// server-side probe that fetches and checks the selected spec.
package render

import (
	"encoding/json"

	"github.com/c360studio/specview/catalog"
)

// DomID is the element Swagger UI mounts into.
const DomID = "#swagger-ui"

// DefaultLayout is the Swagger UI layout used when none is configured.
const DefaultLayout = "StandaloneLayout"

// Flags are the widget settings taken from configuration.
type Flags struct {
	DeepLinking        bool
	Layout             string
	TryItOutEnabled    bool
	ShowRequestHeaders bool
}

// Options is the configuration object passed to SwaggerUIBundle.
type Options struct {
	URL                string                 `json:"url,omitempty"`
	URLs               []catalog.RenderTarget `json:"urls,omitempty"`
	PrimaryName        string                 `json:"urls.primaryName,omitempty"`
	DomID              string                 `json:"dom_id"`
	DeepLinking        bool                   `json:"deepLinking"`
	Layout             string                 `json:"layout"`
	TryItOutEnabled    bool                   `json:"tryItOutEnabled"`
	ShowRequestHeaders bool                   `json:"showRequestHeaders"`
}

// SwaggerUIOptions builds the widget configuration for a render request.
// When the request lists the whole catalog, the widget gets urls with the
// selected spec as primary; otherwise it gets the single url.
func SwaggerUIOptions(req catalog.RenderRequest, flags Flags) Options {
	opts := Options{
		DomID:              DomID,
		DeepLinking:        flags.DeepLinking,
		Layout:             flags.Layout,
		TryItOutEnabled:    flags.TryItOutEnabled,
		ShowRequestHeaders: flags.ShowRequestHeaders,
	}
	if opts.Layout == "" {
		opts.Layout = DefaultLayout
	}

	if len(req.URLs) > 0 {
		opts.URLs = append([]catalog.RenderTarget(nil), req.URLs...)
		opts.PrimaryName = req.Name
	} else {
		opts.URL = req.URL
	}
	return opts
}

// JSON encodes the options for embedding in a script block.
func (o Options) JSON() ([]byte, error) {
	return json.Marshal(o)
}
