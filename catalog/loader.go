package catalog

import (
	"context"
	"log/slog"
	"sync"
)

// State is the lifecycle state of a page view's catalog.
type State int

// Catalog states.
const (
	StateEmpty State = iota
	StateLoaded
	StateNoSpecs
	StateError
	StateActive
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateNoSpecs:
		return "no_specs"
	case StateError:
		return "error"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RenderStatus is the state of the rendering area.
type RenderStatus int

// Rendering area states.
const (
	RenderIdle RenderStatus = iota
	RenderLoading
	RenderComplete
	RenderFailed
)

func (s RenderStatus) String() string {
	switch s {
	case RenderIdle:
		return "idle"
	case RenderLoading:
		return "loading"
	case RenderComplete:
		return "complete"
	case RenderFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s RenderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RenderTarget is one {url, name} pair handed to the rendering collaborator.
type RenderTarget struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// RenderRequest is what the rendering collaborator receives on selection.
type RenderRequest struct {
	// URL is the fetchable location of the selected spec.
	URL string

	// Name is the selected spec's display name.
	Name string

	// URLs holds the whole catalog when Options.ListAll is set.
	URLs []RenderTarget
}

// RenderCallbacks report the outcome of a render asynchronously.
type RenderCallbacks struct {
	OnComplete func()
	OnFailure  func(err error)
}

// Renderer is the external collaborator that fetches and renders a spec.
// It may invoke the callbacks from any goroutine, before or after Render returns.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest, cb RenderCallbacks)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, req RenderRequest, cb RenderCallbacks)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, req RenderRequest, cb RenderCallbacks) {
	f(ctx, req, cb)
}

// Text holds the user-visible strings of the catalog.
type Text struct {
	LoadingText      string `json:"loading_text"`
	NoSpecsTitle     string `json:"no_specs_title"`
	NoSpecsMessage   string `json:"no_specs_message"`
	ErrorTitle       string `json:"error_title"`
	LoadingSpecText  string `json:"loading_spec_text"`
	RenderErrorTitle string `json:"render_error_title"`
}

// DefaultText returns the stock catalog strings.
func DefaultText() Text {
	return Text{
		LoadingText:      "Loading specifications...",
		NoSpecsTitle:     "No specifications found",
		NoSpecsMessage:   "No spec files found. Add .yaml, .yml, or .json files to the specs directory and rebuild.",
		ErrorTitle:       "Error loading specifications",
		LoadingSpecText:  "Loading specification...",
		RenderErrorTitle: "Error loading specification:",
	}
}

// Options configures a Loader.
type Options struct {
	// AutoLoadFirst selects the first entry as soon as the catalog loads.
	AutoLoadFirst bool

	// ListAll hands every entry to the renderer, not just the selected one.
	ListAll bool

	// Text overrides the catalog strings; empty fields keep the defaults.
	Text Text

	Logger *slog.Logger
}

// Card is one catalog entry as displayed.
type Card struct {
	Entry  SpecEntry `json:"entry"`
	Active bool      `json:"active"`
}

// Panel is the status message shown in place of the catalog.
type Panel struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// RenderArea describes the rendering area's content.
type RenderArea struct {
	Status  RenderStatus `json:"status"`
	Title   string       `json:"title,omitempty"`
	Message string       `json:"message,omitempty"`
}

// View is a snapshot of a page view.
type View struct {
	State      State      `json:"state"`
	Source     string     `json:"source"`
	Cards      []Card     `json:"cards"`
	Panel      *Panel     `json:"panel,omitempty"`
	Render     RenderArea `json:"render"`
	Active     *SpecEntry `json:"active,omitempty"`
	Generation uint64     `json:"generation"`
}

// Loader drives one page view: it loads the catalog from a Source once and
// hands selected specs to a Renderer.
type Loader struct {
	source   Source
	renderer Renderer
	opts     Options
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	loading    bool
	specs      []SpecEntry
	active     int
	panel      *Panel
	render     RenderArea
	generation uint64
	loadErr    error
	renderErr  error
}

// NewLoader creates a Loader in the empty state.
func NewLoader(source Source, renderer Renderer, opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Text = mergeText(DefaultText(), opts.Text)

	return &Loader{
		source:   source,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
		state:    StateEmpty,
		active:   -1,
	}
}

func mergeText(base, override Text) Text {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&base.LoadingText, override.LoadingText)
	pick(&base.NoSpecsTitle, override.NoSpecsTitle)
	pick(&base.NoSpecsMessage, override.NoSpecsMessage)
	pick(&base.ErrorTitle, override.ErrorTitle)
	pick(&base.LoadingSpecText, override.LoadingSpecText)
	pick(&base.RenderErrorTitle, override.RenderErrorTitle)
	return base
}

// Load acquires the catalog. The loader ends in StateLoaded (or StateActive
// with AutoLoadFirst), StateNoSpecs, or StateError. The acquisition error, if
// any, is returned after being recorded in the view's panel.
func (l *Loader) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateEmpty || l.loading {
		l.mu.Unlock()
		return ErrAlreadyLoaded
	}
	l.loading = true
	l.panel = &Panel{Message: l.opts.Text.LoadingText}
	l.mu.Unlock()

	specs, err := l.source.Load(ctx)

	l.mu.Lock()
	l.loading = false
	switch {
	case err != nil:
		l.state = StateError
		l.loadErr = err
		l.panel = &Panel{Title: l.opts.Text.ErrorTitle, Message: err.Error()}
		l.mu.Unlock()
		l.logger.Error("Failed to load catalog", "source", l.source.Name(), "error", err)
		return err

	case len(specs) == 0:
		l.state = StateNoSpecs
		l.panel = &Panel{Title: l.opts.Text.NoSpecsTitle, Message: l.opts.Text.NoSpecsMessage}
		l.mu.Unlock()
		l.logger.Info("Catalog is empty", "source", l.source.Name())
		return nil
	}

	l.specs = append([]SpecEntry(nil), specs...)
	l.state = StateLoaded
	l.panel = nil
	first := l.specs[0]
	l.mu.Unlock()

	l.logger.Debug("Catalog loaded", "source", l.source.Name(), "count", len(specs))

	if l.opts.AutoLoadFirst {
		return l.Select(ctx, first)
	}
	return nil
}

// Select makes entry the active spec and invokes the renderer for it.
// Matching against the catalog is by exact filename.
func (l *Loader) Select(ctx context.Context, entry SpecEntry) error {
	return l.SelectFilename(ctx, entry.Filename)
}

// SelectFilename selects the catalog entry with the given relative filename.
func (l *Loader) SelectFilename(ctx context.Context, filename string) error {
	l.mu.Lock()
	if l.state != StateLoaded && l.state != StateActive {
		l.mu.Unlock()
		return ErrNotLoaded
	}

	idx := -1
	for i, s := range l.specs {
		if s.Filename == filename {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return ErrUnknownSpec
	}

	l.active = idx
	l.state = StateActive
	l.generation++
	gen := l.generation
	l.render = RenderArea{Status: RenderLoading, Message: l.opts.Text.LoadingSpecText}
	l.renderErr = nil
	req := l.requestLocked(idx)
	l.mu.Unlock()

	l.logger.Debug("Spec selected", "filename", filename, "generation", gen)

	cb := RenderCallbacks{
		OnComplete: func() { l.complete(gen) },
		OnFailure:  func(err error) { l.fail(gen, err) },
	}
	if l.renderer == nil {
		cb.OnComplete()
		return nil
	}
	l.renderer.Render(ctx, req, cb)
	return nil
}

func (l *Loader) requestLocked(idx int) RenderRequest {
	entry := l.specs[idx]
	req := RenderRequest{URL: entry.Path, Name: entry.DisplayName}
	if l.opts.ListAll {
		req.URLs = make([]RenderTarget, len(l.specs))
		for i, s := range l.specs {
			req.URLs[i] = RenderTarget{URL: s.Path, Name: s.DisplayName}
		}
	}
	return req
}

func (l *Loader) complete(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation {
		l.logger.Debug("Ignoring stale render completion", "generation", gen, "current", l.generation)
		return
	}
	l.render = RenderArea{Status: RenderComplete}
}

func (l *Loader) fail(gen uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation {
		l.logger.Debug("Ignoring stale render failure", "generation", gen, "current", l.generation)
		return
	}

	spec := l.specs[l.active]
	l.renderErr = &RenderError{Spec: spec.Filename, Err: err}
	l.render = RenderArea{
		Status:  RenderFailed,
		Title:   l.opts.Text.RenderErrorTitle,
		Message: failureText(err),
	}
	l.logger.Warn("Spec failed to render", "filename", spec.Filename, "error", failureText(err))
}

// State returns the current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Active returns the selected entry, if any.
func (l *Loader) Active() (SpecEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active < 0 {
		return SpecEntry{}, false
	}
	return l.specs[l.active], true
}

// Entries returns a copy of the catalog.
func (l *Loader) Entries() []SpecEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]SpecEntry(nil), l.specs...)
}

// Err returns the load error, or the current selection's render error.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loadErr != nil {
		return l.loadErr
	}
	return l.renderErr
}

// View returns a snapshot of the page view.
func (l *Loader) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := View{
		State:      l.state,
		Source:     l.source.Name(),
		Cards:      make([]Card, len(l.specs)),
		Render:     l.render,
		Generation: l.generation,
	}
	for i, s := range l.specs {
		v.Cards[i] = Card{Entry: s, Active: i == l.active}
	}
	if l.panel != nil {
		p := *l.panel
		v.Panel = &p
	}
	if l.active >= 0 {
		a := l.specs[l.active]
		v.Active = &a
	}
	return v
}
