package catalog

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// ParseDirectoryListing extracts spec entries from an HTML directory index.
//
// Hrefs are resolved against base, the URL the listing was served from. Parent
// links, query-only and fragment-only links, subdirectories, links leaving the
// listed directory, hidden (dot-prefixed) names and unrecognized extensions are
// dropped. Each entry's Path is prefix joined with the escaped filename, or the
// resolved absolute URL when prefix is empty. Entries are sorted by display
// name.
func ParseDirectoryListing(body []byte, base *url.URL, prefix string) ([]SpecEntry, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	if base == nil {
		base = &url.URL{Path: "/"}
	}
	dir := base.ResolveReference(&url.URL{Path: "./"})

	var hrefs []string
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" {
					hrefs = append(hrefs, strings.TrimSpace(a.Val))
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(doc)

	seen := make(map[string]bool)
	specs := make([]SpecEntry, 0, len(hrefs))
	for _, href := range hrefs {
		filename, resolved, ok := listingFilename(href, dir)
		if !ok || seen[filename] {
			continue
		}
		seen[filename] = true

		entry := SpecEntry{
			Filename:    filename,
			DisplayName: DisplayName(filename),
		}
		if prefix != "" {
			entry.Path = JoinPath(prefix, filename)
		} else {
			entry.Path = resolved.String()
		}
		specs = append(specs, entry)
	}

	sort.SliceStable(specs, func(i, j int) bool {
		if specs[i].DisplayName != specs[j].DisplayName {
			return specs[i].DisplayName < specs[j].DisplayName
		}
		return specs[i].Filename < specs[j].Filename
	})

	return specs, nil
}

// listingFilename maps an anchor href to a filename relative to dir.
func listingFilename(href string, dir *url.URL) (string, *url.URL, bool) {
	if href == "" || href == "../" || href == ".." ||
		strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") {
		return "", nil, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", nil, false
	}
	if ref.Scheme != "" && ref.Scheme != "http" && ref.Scheme != "https" {
		return "", nil, false
	}

	resolved := dir.ResolveReference(ref)
	if resolved.Host != dir.Host {
		return "", nil, false
	}
	resolved.RawQuery = ""
	resolved.Fragment = ""

	if !strings.HasPrefix(resolved.Path, dir.Path) {
		return "", nil, false
	}
	filename := strings.TrimPrefix(resolved.Path, dir.Path)
	if filename == "" || strings.HasSuffix(filename, "/") || !IsSpecFile(filename) {
		return "", nil, false
	}
	for _, segment := range strings.Split(filename, "/") {
		if strings.HasPrefix(segment, ".") {
			return "", nil, false
		}
	}

	return filename, resolved, true
}
