package builder

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/specview/catalog"
)

// DiscoverOptions narrows spec discovery.
type DiscoverOptions struct {
	// Exclude lists doublestar patterns matched against slash-separated
	// paths relative to the specs root (e.g. "drafts/**", "**/*.min.json").
	Exclude []string

	// SkipDirs lists absolute directories that are never descended into.
	SkipDirs []string
}

// Discover returns the absolute paths of every spec file under specsRoot,
// sorted by their slash-separated relative path. Hidden files and
// directories are skipped.
func Discover(specsRoot string, opts DiscoverOptions) ([]string, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	root, err := filepath.Abs(specsRoot)
	if err != nil {
		return nil, &IOError{Op: "resolve", Path: specsRoot, Err: err}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &IOError{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &IOError{Op: "stat", Path: root, Err: fmt.Errorf("not a directory")}
	}

	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, dir := range opts.SkipDirs {
		if abs, err := filepath.Abs(dir); err == nil {
			skip[abs] = true
		}
	}

	type found struct {
		abs string
		rel string
	}
	var files []found

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skip[path] || excluded(opts.Exclude, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if !catalog.IsSpecFile(d.Name()) || excluded(opts.Exclude, rel) {
			return nil
		}

		files = append(files, found{abs: path, rel: rel})
		return nil
	})
	if err != nil {
		return nil, &IOError{Op: "walk", Path: root, Err: err}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].rel < files[j].rel
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.abs
	}
	return paths, nil
}

// excluded reports whether rel matches any exclude pattern. Directory paths
// carry a trailing slash so "drafts/**" prunes the whole subtree.
func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if match, _ := doublestar.Match(pattern, rel); match {
			return true
		}
		if strings.HasSuffix(rel, "/") {
			if match, _ := doublestar.Match(pattern, strings.TrimSuffix(rel, "/")); match {
				return true
			}
		}
	}
	return false
}

// DeriveEntry computes the manifest entry for the spec at path.
func DeriveEntry(path, specsRoot string) (catalog.SpecEntry, error) {
	root, err := filepath.Abs(specsRoot)
	if err != nil {
		return catalog.SpecEntry{}, fmt.Errorf("resolve specs root: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return catalog.SpecEntry{}, fmt.Errorf("resolve spec path: %w", err)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return catalog.SpecEntry{}, fmt.Errorf("relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return catalog.SpecEntry{}, fmt.Errorf("%s is outside %s", abs, root)
	}

	return catalog.NewEntry(filepath.ToSlash(rel), catalog.SpecsPathPrefix), nil
}
