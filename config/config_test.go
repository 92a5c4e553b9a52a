package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/specview/catalog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Specs.Root != "specs" {
		t.Errorf("expected default specs root specs, got %s", cfg.Specs.Root)
	}
	if cfg.Output.Root != "dist" {
		t.Errorf("expected default output root dist, got %s", cfg.Output.Root)
	}
	if cfg.Output.ManifestFormat != "json" {
		t.Errorf("expected default manifest format json, got %s", cfg.Output.ManifestFormat)
	}
	if cfg.Catalog.Source != SourceAuto {
		t.Errorf("expected default catalog source auto, got %s", cfg.Catalog.Source)
	}
	if !cfg.Catalog.AutoLoadFirst {
		t.Error("expected auto_load_first by default")
	}
	if cfg.Catalog.AllowPrivateNetworks {
		t.Error("expected private networks to be blocked by default")
	}
	if cfg.UI.NoSpecsTitle != "No specifications found" {
		t.Errorf("unexpected no-specs title %q", cfg.UI.NoSpecsTitle)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing specs root",
			modify:  func(c *Config) { c.Specs.Root = "" },
			wantErr: true,
		},
		{
			name:    "missing output root",
			modify:  func(c *Config) { c.Output.Root = "" },
			wantErr: true,
		},
		{
			name:    "script manifest",
			modify:  func(c *Config) { c.Output.ManifestFormat = "script" },
			wantErr: false,
		},
		{
			name:    "unknown manifest format",
			modify:  func(c *Config) { c.Output.ManifestFormat = "xml" },
			wantErr: true,
		},
		{
			name:    "listing source",
			modify:  func(c *Config) { c.Catalog.Source = SourceListing },
			wantErr: false,
		},
		{
			name:    "unknown catalog source",
			modify:  func(c *Config) { c.Catalog.Source = "s3" },
			wantErr: true,
		},
		{
			name:    "listing url",
			modify:  func(c *Config) { c.Catalog.ListingURL = "https://example.com/specs/" },
			wantErr: false,
		},
		{
			name:    "listing url without scheme",
			modify:  func(c *Config) { c.Catalog.ListingURL = "example.com/specs/" },
			wantErr: true,
		},
		{
			name:    "zero fetch timeout",
			modify:  func(c *Config) { c.Catalog.FetchTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "zero listing size",
			modify:  func(c *Config) { c.Catalog.MaxListingSize = 0 },
			wantErr: true,
		},
		{
			name:    "missing server addr",
			modify:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
		},
		{
			name:    "negative debounce",
			modify:  func(c *Config) { c.Watch.DebounceDelay = -time.Second },
			wantErr: true,
		},
		{
			name:    "bad exclude pattern",
			modify:  func(c *Config) { c.Specs.Exclude = []string{"[oops"} },
			wantErr: true,
		},
		{
			name:    "bad watch exclude pattern",
			modify:  func(c *Config) { c.Watch.Exclude = []string{"[oops"} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
specs:
  root: "api"
  exclude:
    - "drafts/**"
output:
  root: "public"
  manifest_format: script
catalog:
  source: listing
  auto_load_first: false
  fetch_timeout: 3s
swagger_ui:
  try_it_out_enabled: false
  list_all: true
watch:
  debounce_delay: 250ms
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Specs.Root != "api" {
		t.Errorf("expected specs root api, got %s", cfg.Specs.Root)
	}
	if len(cfg.Specs.Exclude) != 1 || cfg.Specs.Exclude[0] != "drafts/**" {
		t.Errorf("unexpected excludes %v", cfg.Specs.Exclude)
	}
	if cfg.Output.Root != "public" {
		t.Errorf("expected output root public, got %s", cfg.Output.Root)
	}
	if cfg.Output.ManifestFormat != "script" {
		t.Errorf("expected script manifest, got %s", cfg.Output.ManifestFormat)
	}
	if cfg.Catalog.Source != SourceListing {
		t.Errorf("expected listing source, got %s", cfg.Catalog.Source)
	}
	if cfg.Catalog.AutoLoadFirst {
		t.Error("expected auto_load_first false from file")
	}
	if cfg.Catalog.FetchTimeout != 3*time.Second {
		t.Errorf("expected fetch timeout 3s, got %v", cfg.Catalog.FetchTimeout)
	}
	if cfg.SwaggerUI.TryItOutEnabled {
		t.Error("expected try_it_out_enabled false from file")
	}
	if !cfg.SwaggerUI.DeepLinking {
		t.Error("expected deep_linking to keep its default")
	}
	if !cfg.SwaggerUI.ListAll {
		t.Error("expected list_all true from file")
	}
	if cfg.Watch.DebounceDelay != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", cfg.Watch.DebounceDelay)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr to survive, got %s", cfg.Server.Addr)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("specs: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Specs: SpecsConfig{
			Root: "/override/specs",
		},
		Server: ServerConfig{
			Addr: ":9090",
		},
		Catalog: CatalogConfig{
			AllowPrivateNetworks: true,
		},
	}

	base.Merge(override)

	if !base.Catalog.AllowPrivateNetworks {
		t.Error("expected allow_private_networks to be merged")
	}

	if base.Specs.Root != "/override/specs" {
		t.Errorf("expected specs root /override/specs, got %s", base.Specs.Root)
	}
	// Output root should remain from base since override didn't set it
	if base.Output.Root != "dist" {
		t.Errorf("expected output root to remain default, got %s", base.Output.Root)
	}
	if base.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", base.Server.Addr)
	}

	base.Merge(nil)
	if base.Server.Addr != ":9090" {
		t.Error("merging nil should be a no-op")
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "specview.yaml")

	cfg := DefaultConfig()
	cfg.Specs.Root = "saved-specs"
	cfg.Catalog.AutoLoadFirst = false

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Specs.Root != "saved-specs" {
		t.Errorf("expected specs root saved-specs, got %s", loaded.Specs.Root)
	}
	if loaded.Catalog.AutoLoadFirst {
		t.Error("expected auto_load_first false after round trip")
	}
	if loaded.Watch.DebounceDelay != 500*time.Millisecond {
		t.Errorf("expected debounce to round trip, got %v", loaded.Watch.DebounceDelay)
	}
}

func TestCatalogText(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UI.NoSpecsTitle = "Nothing here"

	text := cfg.CatalogText()
	if text.NoSpecsTitle != "Nothing here" {
		t.Errorf("expected override, got %q", text.NoSpecsTitle)
	}
	if text.NoSpecsMessage != catalog.DefaultText().NoSpecsMessage {
		t.Errorf("expected default message, got %q", text.NoSpecsMessage)
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoader_Layering(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	work := filepath.Join(project, "sub", "dir")
	if err := os.MkdirAll(work, 0755); err != nil {
		t.Fatal(err)
	}

	writeConfig(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
server:
  addr: ":7000"
ui:
  title: "User Title"
`)
	writeConfig(t, filepath.Join(project, ProjectConfigFile), `
specs:
  root: apis
ui:
  title: "Project Title"
catalog:
  auto_load_first: false
`)

	l := &Loader{logger: NewLoader(nil).logger, homeDir: home, workDir: work}
	cfg, err := l.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":7000" {
		t.Errorf("expected user addr, got %s", cfg.Server.Addr)
	}
	if cfg.UI.Title != "Project Title" {
		t.Errorf("expected project title to win, got %s", cfg.UI.Title)
	}
	if cfg.Catalog.AutoLoadFirst {
		t.Error("expected project auto_load_first false")
	}
	if cfg.Specs.Root != filepath.Join(project, "apis") {
		t.Errorf("expected specs root relative to project config, got %s", cfg.Specs.Root)
	}
	if cfg.Output.Root != filepath.Join(project, "dist") {
		t.Errorf("expected output root relative to project config, got %s", cfg.Output.Root)
	}
}

func TestLoader_ExplicitConfig(t *testing.T) {
	work := t.TempDir()
	explicitDir := t.TempDir()
	explicit := filepath.Join(explicitDir, "custom.yaml")
	writeConfig(t, explicit, `
output:
  root: site
  manifest_format: script
`)

	l := &Loader{logger: NewLoader(nil).logger, homeDir: t.TempDir(), workDir: work}
	cfg, err := l.Load(explicit)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output.ManifestFormat != "script" {
		t.Errorf("expected script manifest, got %s", cfg.Output.ManifestFormat)
	}
	if cfg.Output.Root != filepath.Join(explicitDir, "site") {
		t.Errorf("expected output root relative to explicit config, got %s", cfg.Output.Root)
	}

	if _, err := l.Load(filepath.Join(explicitDir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoader_InvalidConfig(t *testing.T) {
	work := t.TempDir()
	writeConfig(t, filepath.Join(work, ProjectConfigFile), "catalog:\n  source: ftp\n")

	l := &Loader{logger: NewLoader(nil).logger, homeDir: t.TempDir(), workDir: work}
	if _, err := l.Load(""); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoader_EnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	l := &Loader{logger: NewLoader(nil).logger, homeDir: home}

	path, err := l.EnsureUserConfig()
	if err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	if path != filepath.Join(home, UserConfigDir, UserConfigFile) {
		t.Errorf("unexpected path %s", path)
	}
	if _, err := LoadFromFile(path); err != nil {
		t.Errorf("created config should load: %v", err)
	}

	// Second call leaves the file alone
	if _, err := l.EnsureUserConfig(); err != nil {
		t.Errorf("second EnsureUserConfig() error = %v", err)
	}
}
