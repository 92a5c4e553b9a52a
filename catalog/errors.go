package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// Loader errors.
var (
	// ErrAlreadyLoaded is returned when Load is called on a loader that left the empty state.
	ErrAlreadyLoaded = errors.New("catalog already loaded")

	// ErrNotLoaded is returned when selecting before a non-empty catalog was loaded.
	ErrNotLoaded = errors.New("catalog not loaded")

	// ErrUnknownSpec is returned when selecting an entry that is not in the catalog.
	ErrUnknownSpec = errors.New("spec not in catalog")
)

// FetchError reports a failed directory listing fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RenderError wraps a failure reported by the rendering collaborator.
type RenderError struct {
	Spec string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s", e.Spec, failureText(e.Err))
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// failureText returns the message shown for a collaborator failure.
func failureText(err error) string {
	if err == nil || err.Error() == "" {
		return unknownRenderFailure
	}
	return err.Error()
}

const unknownRenderFailure = "Unknown error occurred"
