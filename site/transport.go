package site

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/c360studio/specview/builder"
)

// selfListingURL addresses the server's own /specs/ listing. Requests to it
// are answered by handlerTransport and never reach the network.
const selfListingURL = "http://specview.invalid/" + builder.SpecsDir + "/"

// handlerTransport is an http.RoundTripper that serves every request from
// an in-process handler.
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	in := req.Clone(req.Context())
	in.RequestURI = req.URL.RequestURI()
	if in.Host == "" {
		in.Host = req.URL.Host
	}

	rw := &bufferedResponse{header: make(http.Header)}
	t.handler.ServeHTTP(rw, in)
	if rw.status == 0 {
		rw.status = http.StatusOK
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", rw.status, http.StatusText(rw.status)),
		StatusCode:    rw.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        rw.header,
		Body:          io.NopCloser(bytes.NewReader(rw.body.Bytes())),
		ContentLength: int64(rw.body.Len()),
		Request:       req,
	}, nil
}

// bufferedResponse collects a handler's response in memory.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (r *bufferedResponse) Header() http.Header { return r.header }

func (r *bufferedResponse) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
}

func (r *bufferedResponse) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}
