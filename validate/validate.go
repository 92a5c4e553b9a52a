// Package validate checks that a file is a loadable OpenAPI or Swagger document.
package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrNotOpenAPI is returned for documents with neither an openapi nor a swagger field.
var ErrNotOpenAPI = errors.New("not an OpenAPI or Swagger document")

// Kind identifies the specification family of a document.
type Kind string

// Document kinds.
const (
	KindOpenAPI3 Kind = "openapi3"
	KindSwagger2 Kind = "swagger2"
)

// Report summarizes a valid document.
type Report struct {
	Kind    Kind   `json:"kind"`
	Version string `json:"version"`
	Title   string `json:"title"`
	// APIVersion is info.version.
	APIVersion string `json:"api_version,omitempty"`
	Paths      int    `json:"paths"`
}

// header is the subset of fields needed to tell documents apart. JSON is
// valid YAML, so one decoder serves both encodings.
type header struct {
	OpenAPI string `yaml:"openapi"`
	Swagger string `yaml:"swagger"`
	Info    struct {
		Title   string `yaml:"title"`
		Version string `yaml:"version"`
	} `yaml:"info"`
	Paths yaml.Node `yaml:"paths"`
}

// File reads and validates the document at path.
func File(ctx context.Context, path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	return Document(ctx, data)
}

// Document validates an OpenAPI 3.x document with kin-openapi, or checks the
// required top-level structure of a Swagger 2.0 document.
func Document(ctx context.Context, data []byte) (*Report, error) {
	var h header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse spec: %w", err)
	}

	switch {
	case strings.HasPrefix(h.OpenAPI, "3."):
		return openAPI3(ctx, data)

	case h.Swagger != "":
		if h.Swagger != "2.0" {
			return nil, fmt.Errorf("unsupported swagger version %q", h.Swagger)
		}
		if h.Info.Title == "" {
			return nil, fmt.Errorf("swagger document: info.title is required")
		}
		if h.Paths.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("swagger document: paths must be an object")
		}
		return &Report{
			Kind:       KindSwagger2,
			Version:    h.Swagger,
			Title:      h.Info.Title,
			APIVersion: h.Info.Version,
			Paths:      len(h.Paths.Content) / 2,
		}, nil

	case h.OpenAPI != "":
		return nil, fmt.Errorf("unsupported openapi version %q", h.OpenAPI)

	default:
		return nil, ErrNotOpenAPI
	}
}

func openAPI3(ctx context.Context, data []byte) (*Report, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	loader.Context = ctx

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapi validation: %w", err)
	}

	report := &Report{
		Kind:    KindOpenAPI3,
		Version: doc.OpenAPI,
	}
	if doc.Info != nil {
		report.Title = doc.Info.Title
		report.APIVersion = doc.Info.Version
	}
	if doc.Paths != nil {
		report.Paths = doc.Paths.Len()
	}
	return report, nil
}
