package catalog

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"sync/atomic"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromManifest(t *testing.T) {
	data, err := Manifest{NewEntry("a.yaml", SpecsPathPrefix), NewEntry("b.json", SpecsPathPrefix)}.Encode(FormatJSON)
	require.NoError(t, err)

	fsys := fstest.MapFS{ManifestFile: &fstest.MapFile{Data: data}}

	src := FromManifest(fsys, ManifestFile)
	assert.Equal(t, SourceManifest, src.Name())

	specs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "a.yaml", specs[0].Filename)
}

func TestFromManifest_Missing(t *testing.T) {
	specs, err := FromManifest(fstest.MapFS{}, ManifestFile).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestFromManifest_Corrupt(t *testing.T) {
	fsys := fstest.MapFS{ManifestFile: &fstest.MapFile{Data: []byte("{")}}

	_, err := FromManifest(fsys, ManifestFile).Load(context.Background())
	assert.Error(t, err)
}

func TestFromDirectoryListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/specs/", r.URL.Path)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="a.yaml">a</a><a href="../">up</a><a href="?sort=name">s</a><a href="b.json">b</a>`))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(5*time.Second, "", 0)
	src := FromDirectoryListing(fetcher, srv.URL+"/specs", SpecsPathPrefix)
	assert.Equal(t, SourceListing, src.Name())

	specs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "A", specs[0].DisplayName)
	assert.Equal(t, "B", specs[1].DisplayName)
}

func TestFromDirectoryListing_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := FromDirectoryListing(NewHTTPFetcher(5*time.Second, "", 0), srv.URL+"/specs/", SpecsPathPrefix)
	_, err := src.Load(context.Background())
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcher_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(5*time.Second, "", 16).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content too large")
}

func TestHTTPFetcher_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(time.Second, "", 0).Fetch(context.Background(), url)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.StatusCode)
}

func TestHTTPFetcher_BlockPrivateNetworks(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<a href="a.yaml">a.yaml</a>`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second, "", 0).BlockPrivateNetworks().Fetch(context.Background(), srv.URL+"/specs/")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrivateAddress)

	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, hits.Load())

	body, err := NewHTTPFetcher(time.Second, "", 0).Fetch(context.Background(), srv.URL+"/specs/")
	require.NoError(t, err)
	assert.Contains(t, string(body), "a.yaml")
	assert.Equal(t, int32(1), hits.Load())
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"::ffff:10.0.0.1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPrivateIP(net.ParseIP(tt.ip)))
		})
	}
}
