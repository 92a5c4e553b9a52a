// Package builder produces the deployable catalog site: it discovers spec
// files, copies them into the output tree, writes the manifest and drops in
// the static page assets.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/specview/builder/assets"
	"github.com/c360studio/specview/catalog"
	"github.com/c360studio/specview/validate"
)

// SpecsDir is the directory under the output root holding copied specs.
const SpecsDir = "specs"

// Options configures a build.
type Options struct {
	// SpecsRoot is the directory scanned for spec files.
	SpecsRoot string

	// OutputRoot is replaced wholesale on every build.
	OutputRoot string

	// Exclude lists doublestar patterns relative to SpecsRoot.
	Exclude []string

	// ManifestFormat selects specs.json or specs-config.js.
	ManifestFormat catalog.ManifestFormat

	// Validate rejects the build when any spec is not a valid OpenAPI document.
	Validate bool

	Logger *slog.Logger
}

// Result describes a finished build.
type Result struct {
	Manifest     catalog.Manifest
	ManifestPath string
	OutputRoot   string
	Duration     time.Duration
}

// Count returns the number of entries written.
func (r *Result) Count() int {
	return len(r.Manifest)
}

// Builder runs builds for one set of options.
type Builder struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Builder.
func New(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ManifestFormat == "" {
		opts.ManifestFormat = catalog.FormatJSON
	}
	return &Builder{opts: opts, logger: logger}
}

// Build replaces the output tree. The new tree is assembled in a hidden
// sibling directory and swapped in only when every spec was copied, so a
// failed build leaves the previous output untouched.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	b.logger.Info("Building API specs viewer", "specs", b.opts.SpecsRoot, "output", b.opts.OutputRoot)

	if !b.opts.ManifestFormat.Valid() {
		return nil, fmt.Errorf("unknown manifest format %q", b.opts.ManifestFormat)
	}

	specsRoot, outRoot, err := b.resolveRoots()
	if err != nil {
		return nil, err
	}

	files, err := Discover(specsRoot, DiscoverOptions{
		Exclude:  b.opts.Exclude,
		SkipDirs: []string{outRoot},
	})
	if err != nil {
		return nil, err
	}
	b.logger.Info("Found spec files", "count", len(files))

	staging, err := newStagingDir(outRoot)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	if err := copyAssets(staging); err != nil {
		return nil, err
	}

	manifest := make(catalog.Manifest, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("build cancelled: %w", err)
		}

		entry, err := DeriveEntry(file, specsRoot)
		if err != nil {
			return nil, err
		}

		if b.opts.Validate {
			if _, err := validate.File(ctx, file); err != nil {
				return nil, fmt.Errorf("validate %s: %w", entry.Filename, err)
			}
		}

		dst := filepath.Join(staging, SpecsDir, filepath.FromSlash(entry.Filename))
		if err := copyFile(file, dst); err != nil {
			return nil, err
		}

		manifest = append(manifest, entry)
		b.logger.Info("Copied spec", "file", entry.Filename, "display_name", entry.DisplayName)
	}
	manifest.Sort()

	data, err := manifest.Encode(b.opts.ManifestFormat)
	if err != nil {
		return nil, err
	}
	manifestName := b.opts.ManifestFormat.FileName()
	if err := os.WriteFile(filepath.Join(staging, manifestName), data, 0644); err != nil {
		return nil, &IOError{Op: "write", Path: manifestName, Err: err}
	}

	if err := replaceDir(staging, outRoot); err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(outRoot, manifestName)

	result := &Result{
		Manifest:     manifest,
		ManifestPath: manifestPath,
		OutputRoot:   outRoot,
		Duration:     time.Since(start),
	}
	b.logger.Info("Build complete",
		"entries", result.Count(),
		"output", outRoot,
		"duration", result.Duration)

	return result, nil
}

// resolveRoots returns absolute roots and refuses layouts where clearing the
// output would delete the specs.
func (b *Builder) resolveRoots() (string, string, error) {
	if b.opts.SpecsRoot == "" {
		return "", "", fmt.Errorf("specs root is required")
	}
	if b.opts.OutputRoot == "" {
		return "", "", fmt.Errorf("output root is required")
	}

	specsRoot, err := filepath.Abs(b.opts.SpecsRoot)
	if err != nil {
		return "", "", &IOError{Op: "resolve", Path: b.opts.SpecsRoot, Err: err}
	}
	outRoot, err := filepath.Abs(b.opts.OutputRoot)
	if err != nil {
		return "", "", &IOError{Op: "resolve", Path: b.opts.OutputRoot, Err: err}
	}

	if specsRoot == outRoot || isWithin(specsRoot, outRoot) {
		return "", "", fmt.Errorf("output root %s would remove specs root %s", outRoot, specsRoot)
	}
	return specsRoot, outRoot, nil
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}

// newStagingDir creates the hidden directory a build is assembled in, next
// to outRoot so the final rename stays on one filesystem.
func newStagingDir(outRoot string) (string, error) {
	parent := filepath.Dir(outRoot)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", &IOError{Op: "create", Path: parent, Err: err}
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(outRoot)+"-build-")
	if err != nil {
		return "", &IOError{Op: "create", Path: parent, Err: err}
	}
	if err := os.Chmod(staging, 0755); err != nil {
		return "", &IOError{Op: "create", Path: staging, Err: err}
	}
	if err := os.Mkdir(filepath.Join(staging, SpecsDir), 0755); err != nil {
		return "", &IOError{Op: "create", Path: staging, Err: err}
	}
	return staging, nil
}

// replaceDir moves staging to outRoot, restoring the previous output if the
// swap fails.
func replaceDir(staging, outRoot string) error {
	previous := staging + ".old"
	hadPrevious := true
	if err := os.Rename(outRoot, previous); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return &IOError{Op: "replace", Path: outRoot, Err: err}
		}
		hadPrevious = false
	}

	if err := os.Rename(staging, outRoot); err != nil {
		if hadPrevious {
			_ = os.Rename(previous, outRoot)
		}
		return &IOError{Op: "replace", Path: outRoot, Err: err}
	}

	if hadPrevious {
		if err := os.RemoveAll(previous); err != nil {
			return &IOError{Op: "clear", Path: previous, Err: err}
		}
	}
	return nil
}

// copyAssets writes the embedded page assets verbatim.
func copyAssets(outRoot string) error {
	for _, name := range assets.Files {
		data, err := fs.ReadFile(assets.FS, name)
		if err != nil {
			return &IOError{Op: "read asset", Path: name, Err: err}
		}
		dst := filepath.Join(outRoot, name)
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return &IOError{Op: "write", Path: dst, Err: err}
		}
	}
	return nil
}

// copyFile copies src to dst byte for byte, creating parent directories.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return &IOError{Op: "read", Path: src, Err: err}
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return &IOError{Op: "create", Path: filepath.Dir(dst), Err: err}
	}

	out, err := os.Create(dst)
	if err != nil {
		return &IOError{Op: "write", Path: dst, Err: err}
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = &IOError{Op: "write", Path: dst, Err: cerr}
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return &IOError{Op: "copy", Path: src, Err: err}
	}
	return nil
}
