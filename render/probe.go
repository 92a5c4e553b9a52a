package render

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/c360studio/specview/catalog"
	"github.com/c360studio/specview/validate"
)

// Probe is a catalog.Renderer that stands in for the browser widget on the
// server: it fetches the selected spec and checks that it is a loadable
// OpenAPI document. Callbacks run before Render returns.
type Probe struct {
	// FS is the artifact tree; relative spec paths are read from it.
	FS fs.FS

	// Fetcher retrieves absolute http(s) spec URLs.
	Fetcher catalog.Fetcher

	Logger *slog.Logger
}

// NewProbe creates a Probe over the artifact tree.
func NewProbe(fsys fs.FS, fetcher catalog.Fetcher, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{FS: fsys, Fetcher: fetcher, Logger: logger}
}

// Render implements catalog.Renderer.
func (p *Probe) Render(ctx context.Context, req catalog.RenderRequest, cb catalog.RenderCallbacks) {
	data, err := p.read(ctx, req.URL)
	if err == nil {
		_, err = validate.Document(ctx, data)
	}

	if err != nil {
		p.Logger.Debug("Spec probe failed", "url", req.URL, "error", err)
		if cb.OnFailure != nil {
			cb.OnFailure(err)
		}
		return
	}
	if cb.OnComplete != nil {
		cb.OnComplete()
	}
}

func (p *Probe) read(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse spec url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		if p.Fetcher == nil {
			return nil, fmt.Errorf("no fetcher for %s", ref)
		}
		return p.Fetcher.Fetch(ctx, ref)
	case "":
	default:
		return nil, fmt.Errorf("unsupported spec url scheme %q", u.Scheme)
	}

	if p.FS == nil {
		return nil, fmt.Errorf("no artifact tree for %s", ref)
	}
	name := path.Clean(strings.TrimPrefix(u.Path, "/"))
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid spec path %q", ref)
	}
	data, err := fs.ReadFile(p.FS, name)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	return data, nil
}
