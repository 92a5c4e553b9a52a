// Package config provides configuration loading and management for specview.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/specview/catalog"
)

// Catalog source selection values.
const (
	SourceAuto     = "auto"
	SourceManifest = catalog.SourceManifest
	SourceListing  = catalog.SourceListing
)

// Config represents the complete specview configuration
type Config struct {
	Specs     SpecsConfig     `yaml:"specs"`
	Output    OutputConfig    `yaml:"output"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	UI        UIConfig        `yaml:"ui"`
	SwaggerUI SwaggerUIConfig `yaml:"swagger_ui"`
	Server    ServerConfig    `yaml:"server"`
	Watch     WatchConfig     `yaml:"watch"`
}

// SpecsConfig configures spec discovery
type SpecsConfig struct {
	// Root is the directory scanned recursively for spec files
	Root string `yaml:"root"`
	// Exclude lists doublestar patterns relative to Root (e.g. "drafts/**")
	Exclude []string `yaml:"exclude"`
}

// OutputConfig configures the generated site
type OutputConfig struct {
	// Root is the output directory, replaced on every build
	Root string `yaml:"root"`
	// ManifestFormat is "json" (specs.json) or "script" (specs-config.js)
	ManifestFormat string `yaml:"manifest_format"`
	// Validate rejects builds containing invalid OpenAPI documents
	Validate bool `yaml:"validate"`
}

// CatalogConfig configures how a page view acquires its catalog
type CatalogConfig struct {
	// Source is "manifest", "listing", or "auto" (manifest when present)
	Source string `yaml:"source"`
	// ListingURL overrides the directory listing location (default: the server's own /specs/)
	ListingURL string `yaml:"listing_url"`
	// AutoLoadFirst selects the first spec as soon as the catalog loads
	AutoLoadFirst bool `yaml:"auto_load_first"`
	// FetchTimeout bounds a directory listing request
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// MaxListingSize bounds a directory listing body in bytes
	MaxListingSize int64 `yaml:"max_listing_size"`
	// AllowPrivateNetworks lets listing_url and absolute spec URLs reach
	// loopback and private addresses (e.g. an intranet docs server)
	AllowPrivateNetworks bool `yaml:"allow_private_networks"`
}

// UIConfig holds the user-visible page strings
type UIConfig struct {
	Title          string `yaml:"title"`
	Subtitle       string `yaml:"subtitle"`
	LoadingText    string `yaml:"loading_text"`
	NoSpecsTitle   string `yaml:"no_specs_title"`
	NoSpecsMessage string `yaml:"no_specs_message"`
}

// SwaggerUIConfig holds the flags passed through to Swagger UI
type SwaggerUIConfig struct {
	DeepLinking        bool   `yaml:"deep_linking"`
	Layout             string `yaml:"layout"`
	TryItOutEnabled    bool   `yaml:"try_it_out_enabled"`
	ShowRequestHeaders bool   `yaml:"show_request_headers"`
	// ListAll hands the whole catalog to Swagger UI's spec selector
	ListAll bool `yaml:"list_all"`
}

// ServerConfig configures the preview server
type ServerConfig struct {
	// Addr is the listen address (default: :8080)
	Addr string `yaml:"addr"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	// DebounceDelay is how long to wait for more changes before rebuilding
	DebounceDelay time.Duration `yaml:"debounce_delay"`
	// Exclude lists extra doublestar patterns ignored by the watcher
	Exclude []string `yaml:"exclude"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	text := catalog.DefaultText()
	return &Config{
		Specs: SpecsConfig{
			Root: "specs",
		},
		Output: OutputConfig{
			Root:           "dist",
			ManifestFormat: string(catalog.FormatJSON),
		},
		Catalog: CatalogConfig{
			Source:         SourceAuto,
			AutoLoadFirst:  true,
			FetchTimeout:   10 * time.Second,
			MaxListingSize: catalog.DefaultMaxListingSize,
		},
		UI: UIConfig{
			Title:          "API Specifications",
			Subtitle:       "Browse the available OpenAPI specifications",
			LoadingText:    text.LoadingText,
			NoSpecsTitle:   text.NoSpecsTitle,
			NoSpecsMessage: text.NoSpecsMessage,
		},
		SwaggerUI: SwaggerUIConfig{
			DeepLinking:        true,
			Layout:             "StandaloneLayout",
			TryItOutEnabled:    true,
			ShowRequestHeaders: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Watch: WatchConfig{
			DebounceDelay: 500 * time.Millisecond,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Specs.Root == "" {
		return fmt.Errorf("specs.root is required")
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root is required")
	}
	if !catalog.ManifestFormat(c.Output.ManifestFormat).Valid() {
		return fmt.Errorf("output.manifest_format must be json or script, got %q", c.Output.ManifestFormat)
	}

	switch c.Catalog.Source {
	case SourceAuto, SourceManifest, SourceListing:
	default:
		return fmt.Errorf("catalog.source must be auto, manifest or listing, got %q", c.Catalog.Source)
	}
	if c.Catalog.ListingURL != "" {
		u, err := url.Parse(c.Catalog.ListingURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("catalog.listing_url must be an http(s) URL, got %q", c.Catalog.ListingURL)
		}
	}
	if c.Catalog.FetchTimeout <= 0 {
		return fmt.Errorf("catalog.fetch_timeout must be positive")
	}
	if c.Catalog.MaxListingSize <= 0 {
		return fmt.Errorf("catalog.max_listing_size must be positive")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Watch.DebounceDelay < 0 {
		return fmt.Errorf("watch.debounce_delay must not be negative")
	}

	for _, pattern := range append(append([]string(nil), c.Specs.Exclude...), c.Watch.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.apply(path); err != nil {
		return nil, err
	}
	return config, nil
}

// apply decodes the YAML file at path over c. Keys absent from the file keep
// their current values, so explicit false and zero values survive layering.
func (c *Config) apply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-empty strings, lists and non-zero numbers). Booleans cannot be told
// apart from their zero value here; layered files use apply instead.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Specs
	if other.Specs.Root != "" {
		c.Specs.Root = other.Specs.Root
	}
	if len(other.Specs.Exclude) > 0 {
		c.Specs.Exclude = other.Specs.Exclude
	}

	// Output
	if other.Output.Root != "" {
		c.Output.Root = other.Output.Root
	}
	if other.Output.ManifestFormat != "" {
		c.Output.ManifestFormat = other.Output.ManifestFormat
	}

	// Catalog
	if other.Catalog.Source != "" {
		c.Catalog.Source = other.Catalog.Source
	}
	if other.Catalog.ListingURL != "" {
		c.Catalog.ListingURL = other.Catalog.ListingURL
	}
	if other.Catalog.FetchTimeout != 0 {
		c.Catalog.FetchTimeout = other.Catalog.FetchTimeout
	}
	if other.Catalog.MaxListingSize != 0 {
		c.Catalog.MaxListingSize = other.Catalog.MaxListingSize
	}
	if other.Catalog.AllowPrivateNetworks {
		c.Catalog.AllowPrivateNetworks = true
	}

	// UI
	if other.UI.Title != "" {
		c.UI.Title = other.UI.Title
	}
	if other.UI.Subtitle != "" {
		c.UI.Subtitle = other.UI.Subtitle
	}
	if other.UI.LoadingText != "" {
		c.UI.LoadingText = other.UI.LoadingText
	}
	if other.UI.NoSpecsTitle != "" {
		c.UI.NoSpecsTitle = other.UI.NoSpecsTitle
	}
	if other.UI.NoSpecsMessage != "" {
		c.UI.NoSpecsMessage = other.UI.NoSpecsMessage
	}

	// Swagger UI
	if other.SwaggerUI.Layout != "" {
		c.SwaggerUI.Layout = other.SwaggerUI.Layout
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}

	// Watch
	if other.Watch.DebounceDelay != 0 {
		c.Watch.DebounceDelay = other.Watch.DebounceDelay
	}
	if len(other.Watch.Exclude) > 0 {
		c.Watch.Exclude = other.Watch.Exclude
	}
}

// ResolvePaths makes relative specs and output roots relative to base.
func (c *Config) ResolvePaths(base string) {
	if c.Specs.Root != "" && !filepath.IsAbs(c.Specs.Root) {
		c.Specs.Root = filepath.Join(base, c.Specs.Root)
	}
	if c.Output.Root != "" && !filepath.IsAbs(c.Output.Root) {
		c.Output.Root = filepath.Join(base, c.Output.Root)
	}
}

// CatalogText returns the catalog strings with configured overrides.
func (c *Config) CatalogText() catalog.Text {
	return catalog.Text{
		LoadingText:    c.UI.LoadingText,
		NoSpecsTitle:   c.UI.NoSpecsTitle,
		NoSpecsMessage: c.UI.NoSpecsMessage,
	}
}
