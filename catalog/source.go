package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
)

// Source produces the ordered list of specs offered in a catalog.
type Source interface {
	// Load returns the catalog entries. An empty list is not an error.
	Load(ctx context.Context) ([]SpecEntry, error)

	// Name identifies the acquisition strategy in logs and metrics.
	Name() string
}

// Source names.
const (
	SourceManifest = "manifest"
	SourceListing  = "listing"
)

type manifestSource struct {
	fsys fs.FS
	name string
}

// FromManifest returns a Source reading the manifest file name from fsys.
// A missing manifest yields an empty catalog.
func FromManifest(fsys fs.FS, name string) Source {
	return &manifestSource{fsys: fsys, name: name}
}

func (s *manifestSource) Name() string { return SourceManifest }

func (s *manifestSource) Load(ctx context.Context) ([]SpecEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(s.fsys, s.name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := DecodeManifest(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

type listingSource struct {
	fetcher Fetcher
	url     string
	prefix  string
}

// FromDirectoryListing returns a Source that fetches the HTML index at
// listingURL and parses its anchors. Entry paths are prefix joined with the
// filename; an empty prefix keeps the resolved absolute URLs.
func FromDirectoryListing(fetcher Fetcher, listingURL, prefix string) Source {
	if !strings.HasSuffix(listingURL, "/") {
		listingURL += "/"
	}
	return &listingSource{fetcher: fetcher, url: listingURL, prefix: prefix}
}

func (s *listingSource) Name() string { return SourceListing }

func (s *listingSource) Load(ctx context.Context) ([]SpecEntry, error) {
	base, err := url.Parse(s.url)
	if err != nil {
		return nil, &FetchError{URL: s.url, Err: fmt.Errorf("invalid listing URL: %w", err)}
	}

	body, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, err
	}

	return ParseDirectoryListing(body, base, s.prefix)
}
