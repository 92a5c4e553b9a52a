package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/c360studio/specview/builder"
	"github.com/c360studio/specview/catalog"
	"github.com/c360studio/specview/config"
	"github.com/c360studio/specview/site"
	"github.com/c360studio/specview/validate"
	"github.com/c360studio/specview/watch"
)

// App wires configuration to the builder, watcher and server.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *site.Metrics
}

// newApp loads layered configuration and installs the logger.
func newApp(global *globalFlags) (*App, error) {
	logger := newLogger(global.logLevel)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(global.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApp(cfg, logger), nil
}

// NewApp creates an App for cfg.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:     cfg,
		logger:  logger,
		metrics: site.NewMetrics(),
	}
}

// Build runs one build with the current configuration.
func (a *App) Build(ctx context.Context) (*builder.Result, error) {
	b := builder.New(builder.Options{
		SpecsRoot:      a.cfg.Specs.Root,
		OutputRoot:     a.cfg.Output.Root,
		Exclude:        a.cfg.Specs.Exclude,
		ManifestFormat: catalog.ManifestFormat(a.cfg.Output.ManifestFormat),
		Validate:       a.cfg.Output.Validate,
		Logger:         a.logger,
	})

	result, err := b.Build(ctx)
	if err != nil {
		a.metrics.ObserveBuild(0, 0, err)
		return nil, fmt.Errorf("build: %w", err)
	}
	a.metrics.ObserveBuild(result.Count(), result.Duration, nil)
	return result, nil
}

// newWatcher starts a watcher over the specs root that ignores the output
// directory.
func (a *App) newWatcher(ctx context.Context) (*watch.Watcher, error) {
	exclude := append(append([]string(nil), a.cfg.Specs.Exclude...), a.cfg.Watch.Exclude...)
	w, err := watch.New(watch.Config{
		DebounceDelay: a.cfg.Watch.DebounceDelay,
		Exclude:       exclude,
		SkipDirs:      []string{a.cfg.Output.Root},
	}, a.cfg.Specs.Root, a.logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}

func (a *App) rebuild(ctx context.Context, _ watch.Batch) error {
	_, err := a.Build(ctx)
	return err
}

// Watch builds once, then rebuilds on every change until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	if _, err := a.Build(ctx); err != nil {
		return err
	}

	w, err := a.newWatcher(ctx)
	if err != nil {
		return err
	}
	defer w.Stop()

	watch.Run(ctx, w.Batches(), a.rebuild, a.logger)
	return nil
}

// Serve builds once and serves the output until ctx is done. With
// watchSpecs, changes trigger rebuilds; the last good output keeps being
// served when a rebuild fails.
func (a *App) Serve(ctx context.Context, watchSpecs bool) error {
	if _, err := a.Build(ctx); err != nil {
		return err
	}

	srv, err := site.New(site.Options{
		Root:    a.cfg.Output.Root,
		Config:  a.cfg,
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}

	if watchSpecs {
		w, err := a.newWatcher(ctx)
		if err != nil {
			return err
		}
		defer w.Stop()
		go watch.Run(ctx, w.Batches(), a.rebuild, a.logger)
	}

	return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
}

// errInvalidSpecs is returned by Validate when any spec fails.
var errInvalidSpecs = errors.New("invalid specs found")

// Validate checks every discovered spec and reports one line per file.
func (a *App) Validate(ctx context.Context, out io.Writer) error {
	files, err := builder.Discover(a.cfg.Specs.Root, builder.DiscoverOptions{
		Exclude:  a.cfg.Specs.Exclude,
		SkipDirs: []string{a.cfg.Output.Root},
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, file := range files {
		entry, err := builder.DeriveEntry(file, a.cfg.Specs.Root)
		if err != nil {
			return err
		}

		report, err := validate.File(ctx, file)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", entry.Filename, err)
			a.logger.Debug("Spec failed validation", "file", entry.Filename, "error", err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (%s %s, %d paths)\n", entry.Filename, report.Kind, report.Version, report.Paths)
	}

	a.logger.Info("Validation complete", "specs", len(files), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidSpecs, failed, len(files))
	}
	return nil
}

// initProjectConfig writes the default project config into dir.
func initProjectConfig(dir string, force bool) (string, error) {
	path := filepath.Join(dir, config.ProjectConfigFile)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().SaveToFile(path); err != nil {
		return "", err
	}
	return path, nil
}
