package catalog

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SpecsPathPrefix is the output-relative URL prefix under which spec files are served.
const SpecsPathPrefix = "./specs/"

// Extensions lists the recognized spec file extensions.
var Extensions = []string{".yaml", ".yml", ".json"}

// SpecEntry describes one discoverable specification file.
type SpecEntry struct {
	// Filename is the slash-separated path relative to the specs root.
	Filename string `json:"filename"`

	// DisplayName is the human-readable label derived from Filename.
	DisplayName string `json:"displayName"`

	// Path is the fetchable location of the file in the artifact tree.
	Path string `json:"path"`
}

// NewEntry builds a SpecEntry for a slash-separated relative filename,
// serving it under prefix.
func NewEntry(filename, prefix string) SpecEntry {
	return SpecEntry{
		Filename:    filename,
		DisplayName: DisplayName(filename),
		Path:        JoinPath(prefix, filename),
	}
}

// JoinPath joins a URL prefix and a relative filename with exactly one slash.
// Each filename segment is path-escaped, so names containing '#', '%', '?' or
// spaces still address the file.
func JoinPath(prefix, filename string) string {
	escaped := EscapePath(strings.TrimPrefix(filename, "/"))
	if prefix == "" {
		return escaped
	}
	return strings.TrimSuffix(prefix, "/") + "/" + escaped
}

// EscapePath escapes every segment of a slash-separated relative path.
func EscapePath(rel string) string {
	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// IsSpecFile reports whether name ends in a recognized extension, ignoring case.
func IsSpecFile(name string) bool {
	return matchExtension(name) != ""
}

// StripExtension removes the longest recognized extension from name.
// Names without a recognized extension are returned unchanged.
func StripExtension(name string) string {
	ext := matchExtension(name)
	return name[:len(name)-len(ext)]
}

func matchExtension(name string) string {
	lower := strings.ToLower(name)
	best := ""
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) && len(ext) > len(best) {
			best = ext
		}
	}
	return best
}

// DisplayName derives the label shown for a spec file. The base name has its
// extension removed, every '-' and '_' becomes a space, and the first rune of
// each whitespace-delimited word is title-cased:
//
//	DisplayName("swagger-petstore.yaml") == "Swagger Petstore"
//	DisplayName("v2/github_api.json")    == "Github Api"
func DisplayName(filename string) string {
	name := StripExtension(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	name = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, name)

	// cases.Caser carries state, so one per call.
	title := cases.Title(language.Und, cases.NoLower)

	var b strings.Builder
	b.Grow(len(name))
	wordStart := true
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			wordStart = true
			b.WriteRune(r)
		case wordStart:
			b.WriteString(title.String(string(r)))
			title.Reset()
			wordStart = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
