// Package site serves a built catalog: the static artifact tree, a
// server-rendered catalog page, a JSON view of the catalog, health and
// Prometheus metrics.
package site

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/specview/catalog"
	"github.com/c360studio/specview/config"
	"github.com/c360studio/specview/render"
)

//go:embed templates/view.html
var templateFS embed.FS

var viewTemplate = template.Must(template.ParseFS(templateFS, "templates/view.html"))

// Options configures a Server.
type Options struct {
	// Root is the built artifact directory.
	Root string

	Config  *config.Config
	Logger  *slog.Logger
	Metrics *Metrics
}

// Server serves one artifact tree.
type Server struct {
	root    string
	fsys    fs.FS
	cfg     *config.Config
	logger  *slog.Logger
	metrics *Metrics
	fetcher catalog.Fetcher
	// self reads the server's own listing in-process
	self   catalog.Fetcher
	source string
	files  http.Handler
}

// New creates a Server. The catalog source is chosen once: with
// catalog.source "auto", the manifest is used when it exists in Root and
// the /specs/ directory listing otherwise.
func New(opts Options) (*Server, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("artifact root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		root:    root,
		fsys:    os.DirFS(root),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		files:   http.FileServer(http.Dir(root)),
	}

	fetcher := catalog.NewHTTPFetcher(cfg.Catalog.FetchTimeout, "", cfg.Catalog.MaxListingSize)
	if !cfg.Catalog.AllowPrivateNetworks {
		fetcher.BlockPrivateNetworks()
	}
	s.fetcher = fetcher
	s.self = catalog.NewHTTPFetcher(cfg.Catalog.FetchTimeout, "", cfg.Catalog.MaxListingSize).
		WithClient(&http.Client{
			Transport: handlerTransport{handler: s.files},
			Timeout:   cfg.Catalog.FetchTimeout,
		})
	s.source = s.chooseSource()

	logger.Info("Catalog source selected", "source", s.source, "root", root)
	return s, nil
}

func (s *Server) chooseSource() string {
	switch s.cfg.Catalog.Source {
	case config.SourceManifest:
		return catalog.SourceManifest
	case config.SourceListing:
		return catalog.SourceListing
	}
	if _, err := fs.Stat(s.fsys, s.manifestFile()); err == nil {
		return catalog.SourceManifest
	}
	return catalog.SourceListing
}

func (s *Server) manifestFile() string {
	return catalog.ManifestFormat(s.cfg.Output.ManifestFormat).FileName()
}

// Source returns the selected catalog source name.
func (s *Server) Source() string {
	return s.source
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// RegisterHTTPHandlers registers the server's routes on mux.
func (s *Server) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/view", s.handleView)
	mux.HandleFunc("/api/catalog", s.handleCatalog)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/", s.files)
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterHTTPHandlers(mux)
	return s.withRecovery(withRequestID(s.withLogging(mux)))
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving API specs viewer", "addr", addr, "root", s.root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// catalogSource builds the Source for one page view. Without a configured
// listing_url the server's own /specs/ listing is read in-process; nothing
// from the request selects the fetch target.
func (s *Server) catalogSource() catalog.Source {
	if s.source == catalog.SourceManifest {
		return catalog.FromManifest(s.fsys, s.manifestFile())
	}

	if s.cfg.Catalog.ListingURL != "" {
		return catalog.FromDirectoryListing(s.fetcher, s.cfg.Catalog.ListingURL, "")
	}
	return catalog.FromDirectoryListing(s.self, selfListingURL, catalog.SpecsPathPrefix)
}

// pageView runs one catalog load and selection. An unknown ?spec= is
// reported as catalog.ErrUnknownSpec; load failures are part of the view.
func (s *Server) pageView(r *http.Request) (*catalog.Loader, error) {
	ctx := r.Context()
	selected := r.URL.Query().Get("spec")

	renderer := catalog.RendererFunc(func(ctx context.Context, req catalog.RenderRequest, cb catalog.RenderCallbacks) {
		probe := render.NewProbe(s.fsys, s.fetcher, s.logger)
		probe.Render(ctx, req, catalog.RenderCallbacks{
			OnComplete: cb.OnComplete,
			OnFailure: func(err error) {
				s.metrics.renderFailures.Inc()
				cb.OnFailure(err)
			},
		})
	})

	loader := catalog.NewLoader(s.catalogSource(), renderer, catalog.Options{
		AutoLoadFirst: s.cfg.Catalog.AutoLoadFirst && selected == "",
		ListAll:       s.cfg.SwaggerUI.ListAll,
		Text:          s.cfg.CatalogText(),
		Logger:        s.logger.With("request_id", RequestID(ctx)),
	})

	// The load error is recorded in the view's panel.
	_ = loader.Load(ctx)
	state := loader.State()
	s.metrics.catalogLoads.WithLabelValues(s.source, state.String()).Inc()

	if selected != "" && state == catalog.StateLoaded {
		if err := loader.SelectFilename(ctx, selected); err != nil {
			return loader, err
		}
	}
	return loader, nil
}

// CatalogResponse is the JSON response for GET /api/catalog.
type CatalogResponse struct {
	catalog.View
	SwaggerUI *render.Options `json:"swagger_ui,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	loader, err := s.pageView(r)
	if errors.Is(err, catalog.ErrUnknownSpec) {
		writeJSONError(w, http.StatusNotFound, "unknown_spec", "No spec named "+r.URL.Query().Get("spec"))
		return
	}

	view := loader.View()
	writeJSON(w, http.StatusOK, CatalogResponse{
		View:      view,
		SwaggerUI: s.widgetOptions(view),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"source": s.source,
	})
}

// page is the data for templates/view.html.
type page struct {
	Title      string
	Subtitle   string
	View       catalog.View
	PanelClass string
	Options    template.JS
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	loader, err := s.pageView(r)
	if errors.Is(err, catalog.ErrUnknownSpec) {
		http.Error(w, "Unknown spec", http.StatusNotFound)
		return
	}

	view := loader.View()
	p := page{
		Title:    s.cfg.UI.Title,
		Subtitle: s.cfg.UI.Subtitle,
		View:     view,
	}
	if view.State == catalog.StateError {
		p.PanelClass = "error"
	} else {
		p.PanelClass = "no-specs"
	}
	if opts := s.widgetOptions(view); opts != nil {
		data, err := opts.JSON()
		if err != nil {
			s.logger.Error("Failed to encode Swagger UI options", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		p.Options = template.JS(data)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewTemplate.Execute(w, p); err != nil {
		s.logger.Error("Failed to render catalog page", "error", err, "request_id", RequestID(r.Context()))
	}
}

// widgetOptions returns the Swagger UI configuration for the active spec,
// or nil when nothing is selected or the selection failed to render.
func (s *Server) widgetOptions(view catalog.View) *render.Options {
	if view.Active == nil || view.Render.Status == catalog.RenderFailed {
		return nil
	}

	req := catalog.RenderRequest{URL: view.Active.Path, Name: view.Active.DisplayName}
	if s.cfg.SwaggerUI.ListAll {
		for _, c := range view.Cards {
			req.URLs = append(req.URLs, catalog.RenderTarget{URL: c.Entry.Path, Name: c.Entry.DisplayName})
		}
	}
	opts := render.SwaggerUIOptions(req, render.Flags{
		DeepLinking:        s.cfg.SwaggerUI.DeepLinking,
		Layout:             s.cfg.SwaggerUI.Layout,
		TryItOutEnabled:    s.cfg.SwaggerUI.TryItOutEnabled,
		ShowRequestHeaders: s.cfg.SwaggerUI.ShowRequestHeaders,
	})
	return &opts
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, errorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
