// Package main provides the specview binary entry point.
// Specview builds a browsable catalog site from a directory of OpenAPI and
// Swagger specification files and can serve it with live rebuilds.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/specview/catalog"
	"github.com/c360studio/specview/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "specview"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

// buildFlags override the specs and output settings.
type buildFlags struct {
	specsRoot string
	outRoot   string
	format    string
	validate  bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.specsRoot, "specs", "", "Directory containing spec files (default from config: specs)")
	cmd.Flags().StringVar(&f.outRoot, "out", "", "Output directory, replaced on every build (default from config: dist)")
	cmd.Flags().StringVar(&f.format, "format", "", "Manifest format: json or script")
	cmd.Flags().BoolVar(&f.validate, "validate", false, "Reject specs that are not valid OpenAPI documents")
}

// apply merges explicitly set flags into cfg.
func (f *buildFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	cfg.Merge(&config.Config{
		Specs:  config.SpecsConfig{Root: f.specsRoot},
		Output: config.OutputConfig{Root: f.outRoot, ManifestFormat: f.format},
	})
	if cmd.Flags().Changed("validate") {
		cfg.Output.Validate = f.validate
	}
	return cfg.Validate()
}

func rootCmd() *cobra.Command {
	var (
		global globalFlags
		build  buildFlags
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "OpenAPI spec catalog generator",
		Long: `Specview turns a directory of OpenAPI/Swagger files (.yaml, .yml, .json)
into a static site that lists every spec and renders the selected one
with Swagger UI.

Running specview without a subcommand builds the site.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, &global, &build)
		},
	}

	cmd.PersistentFlags().StringVarP(&global.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&global.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	build.register(cmd)

	cmd.AddCommand(
		buildCmd(&global),
		serveCmd(&global),
		watchCmd(&global),
		validateCmd(&global),
		initCmd(&global),
		versionCmd(),
	)

	return cmd
}

func buildCmd(global *globalFlags) *cobra.Command {
	var build buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the catalog site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, global, &build)
		},
	}
	build.register(cmd)
	return cmd
}

func runBuild(cmd *cobra.Command, global *globalFlags, build *buildFlags) error {
	app, err := newApp(global)
	if err != nil {
		return err
	}
	if err := build.apply(cmd, app.cfg); err != nil {
		return err
	}

	result, err := app.Build(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Built %d spec(s) into %s\n", result.Count(), result.OutputRoot)
	return nil
}

func serveCmd(global *globalFlags) *cobra.Command {
	var (
		build buildFlags
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the site and serve it over HTTP",
		Long: `Serve builds the catalog site, then serves it with directory listings
under /specs/, a server-rendered catalog at /view, the catalog as JSON at
/api/catalog, /healthz and Prometheus metrics at /metrics.

With --watch, spec changes trigger a rebuild.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(global)
			if err != nil {
				return err
			}
			if addr != "" {
				app.cfg.Server.Addr = addr
			}
			if err := build.apply(cmd, app.cfg); err != nil {
				return err
			}
			return app.Serve(cmd.Context(), watch)
		},
	}
	build.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config: :8080)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild when specs change")
	return cmd
}

func watchCmd(global *globalFlags) *cobra.Command {
	var build buildFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build the site and rebuild whenever specs change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(global)
			if err != nil {
				return err
			}
			if err := build.apply(cmd, app.cfg); err != nil {
				return err
			}
			return app.Watch(cmd.Context())
		},
	}
	build.register(cmd)
	return cmd
}

func validateCmd(global *globalFlags) *cobra.Command {
	var specsRoot string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every spec file without building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(global)
			if err != nil {
				return err
			}
			if specsRoot != "" {
				app.cfg.Specs.Root = specsRoot
			}
			return app.Validate(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&specsRoot, "specs", "", "Directory containing spec files (default from config: specs)")
	return cmd
}

func initCmd(global *globalFlags) *cobra.Command {
	var (
		user  bool
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.ProjectConfigFile,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(global.logLevel)
			if user {
				path, err := config.NewLoader(logger).EnsureUserConfig()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User config at %s\n", path)
				return nil
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			path, err := initProjectConfig(cwd, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&user, "user", false, "Create the user config (~/"+config.UserConfigDir+"/"+config.UserConfigFile+") instead")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s, user agent: %s)\n",
				appName, Version, BuildTime, catalog.DefaultUserAgent)
		},
	}
}

// newLogger builds the text logger for --log-level.
func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
