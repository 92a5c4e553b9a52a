// Package catalog models the set of OpenAPI/Swagger documents offered by a
// generated site and the page-view lifecycle that presents them.
//
// # Entries and manifests
//
// A SpecEntry names one spec file by its path relative to the specs root,
// a display name derived purely from that path, and the URL it is served
// from. A build writes the ordered entries as a Manifest, either as plain
// JSON (specs.json) or as a script assigning window.SPECS_CONFIG.
//
// # Sources
//
// A Source produces the ordered entries of a catalog. FromManifest reads a
// built manifest; FromDirectoryListing fetches an HTML directory index and
// derives the entries from its anchors with the same display-name rules.
//
// # Loader
//
// A Loader runs one page view:
//
//	empty -> loaded | no_specs | error
//	loaded -> active(spec) -> active(other spec) ...
//
// Selecting a spec hands its URL to a Renderer and tags the selection with a
// generation number; completion and failure callbacks from an older
// selection are ignored.
package catalog
