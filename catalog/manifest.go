package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ManifestFormat selects the on-disk manifest encoding.
type ManifestFormat string

// Supported manifest formats.
const (
	// FormatJSON writes a plain JSON array, loaded by the page with fetch.
	FormatJSON ManifestFormat = "json"

	// FormatScript writes a script assigning the array to window.SPECS_CONFIG,
	// for pages opened from file:// where fetch is unavailable.
	FormatScript ManifestFormat = "script"
)

// Manifest file names, relative to the output root.
const (
	ManifestFile       = "specs.json"
	ScriptManifestFile = "specs-config.js"
)

const (
	scriptHeader = "// Auto-generated specs configuration\n"
	scriptAssign = "window.SPECS_CONFIG = "
)

// FileName returns the manifest file name for the format.
func (f ManifestFormat) FileName() string {
	if f == FormatScript {
		return ScriptManifestFile
	}
	return ManifestFile
}

// Valid reports whether f is a known format.
func (f ManifestFormat) Valid() bool {
	return f == FormatJSON || f == FormatScript
}

// Manifest is the ordered list of spec entries produced by a build.
type Manifest []SpecEntry

// Sort orders the manifest by filename.
func (m Manifest) Sort() {
	sort.Slice(m, func(i, j int) bool {
		return m[i].Filename < m[j].Filename
	})
}

// Encode serializes the manifest. Output is deterministic for equal input.
func (m Manifest) Encode(format ManifestFormat) ([]byte, error) {
	entries := m
	if entries == nil {
		entries = Manifest{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	switch format {
	case FormatJSON, "":
		return append(data, '\n'), nil
	case FormatScript:
		var buf bytes.Buffer
		buf.WriteString(scriptHeader)
		buf.WriteString(scriptAssign)
		buf.Write(data)
		buf.WriteString(";\n")
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}
}

// DecodeManifest parses a manifest in either format.
func DecodeManifest(data []byte) (Manifest, error) {
	body := bytes.TrimSpace(data)
	if i := bytes.Index(body, []byte(scriptAssign)); i >= 0 {
		body = bytes.TrimSpace(body[i+len(scriptAssign):])
		body = bytes.TrimSuffix(body, []byte(";"))
	}

	if len(body) == 0 {
		return Manifest{}, nil
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m == nil {
		m = Manifest{}
	}
	return m, nil
}
