package proxyserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedro9bee/tokentap/internal/catalog"
	"github.com/pedro9bee/tokentap/internal/flow"
)

// catalogPointingAt builds a catalog whose "anthropic" entry's domain is
// overridden to upstreamHost, so tests can route /v1/messages at a local
// httptest server instead of the real api.anthropic.com.
func catalogPointingAt(t *testing.T, upstreamHost string) *catalog.Catalog {
	t.Helper()
	overridePath := filepath.Join(t.TempDir(), "providers.json")
	overrideJSON := fmt.Sprintf(`{"providers":{"anthropic":{"domains":["%s"]}}}`, upstreamHost)
	require.NoError(t, os.WriteFile(overridePath, []byte(overrideJSON), 0600))
	cat, err := catalog.Load(overridePath)
	require.NoError(t, err)
	return cat
}

// recordingIngestor is a test double satisfying flowIngestor; it records
// every call it receives so tests can assert on what DirectProxy fed it.
type recordingIngestor struct {
	requests        []flow.Request
	responseHeaders []http.Header
	responses       []flow.Response
	chunks          [][]byte
}

func (r *recordingIngestor) HandleRequest(ctx context.Context, req flow.Request) error {
	r.requests = append(r.requests, req)
	return nil
}

func (r *recordingIngestor) HandleResponseHeaders(ctx context.Context, flowID string, headers http.Header) error {
	r.responseHeaders = append(r.responseHeaders, headers)
	return nil
}

func (r *recordingIngestor) AppendChunk(flowID string, chunk []byte) {
	cp := append([]byte(nil), chunk...)
	r.chunks = append(r.chunks, cp)
}

func (r *recordingIngestor) HandleResponse(ctx context.Context, flowID string, resp flow.Response) error {
	r.responses = append(r.responses, resp)
	return nil
}

func TestDirectProxyRecordsResolvedUpstreamHost(t *testing.T) {
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Host)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"usage":{"input_tokens":1,"output_tokens":2}}`))
	}))
	defer upstream.Close()

	upstreamHost := strings.TrimPrefix(upstream.URL, "https://")
	cat := catalogPointingAt(t, upstreamHost)

	rec := &recordingIngestor{}
	proxy := &DirectProxy{catalog: cat, ingest: rec, client: upstream.Client()}

	// The client dials the proxy's loopback address, as in direct mode;
	// the recorded host must be the upstream resolved from the path.
	req := httptest.NewRequest(http.MethodPost, "http://127.0.0.1:8080/v1/messages", strings.NewReader(`{"model":"claude"}`))
	w := httptest.NewRecorder()

	proxy.ServeHTTP(w, req)

	require.Len(t, rec.requests, 1)
	assert.Equal(t, upstreamHost, rec.requests[0].Host)

	require.Len(t, rec.responses, 1)
	assert.Equal(t, http.StatusOK, rec.responses[0].StatusCode)
	assert.Contains(t, string(rec.responses[0].Body), "input_tokens")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "input_tokens")
}

func TestDirectProxyRelaysStreamingChunks(t *testing.T) {
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("data: {\"delta\":\"a\"}\n\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer upstream.Close()

	upstreamHost := strings.TrimPrefix(upstream.URL, "https://")
	cat := catalogPointingAt(t, upstreamHost)

	rec := &recordingIngestor{}
	proxy := &DirectProxy{catalog: cat, ingest: rec, client: upstream.Client()}

	req := httptest.NewRequest(http.MethodPost, "http://"+upstreamHost+"/v1/messages", strings.NewReader(`{}`))
	req.Host = upstreamHost
	w := httptest.NewRecorder()

	proxy.ServeHTTP(w, req)

	assert.NotEmpty(t, rec.chunks)
	require.Len(t, rec.responseHeaders, 1)
	assert.Equal(t, "text/event-stream", rec.responseHeaders[0].Get("Content-Type"))
	require.Len(t, rec.responses, 1)
	assert.Empty(t, rec.responses[0].Body)
}

func TestDirectProxyHealthEndpoint(t *testing.T) {
	cat := catalogPointingAt(t, "example.com")
	proxy := &DirectProxy{catalog: cat, ingest: &recordingIngestor{}, client: http.DefaultClient}

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8080/health", nil)
	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","proxy":true}`, w.Body.String())
}

func TestDirectProxyRejectsUnmatchedPath(t *testing.T) {
	cat := catalogPointingAt(t, "example.com")
	rec := &recordingIngestor{}
	proxy := &DirectProxy{catalog: cat, ingest: rec, client: http.DefaultClient}

	req := httptest.NewRequest(http.MethodPost, "http://127.0.0.1:8080/not/a/provider/path", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, rec.requests)
}

func TestIsStreamingResponse(t *testing.T) {
	sse := http.Header{"Content-Type": []string{"text/event-stream"}}
	assert.True(t, isStreamingResponse(sse))

	chunked := http.Header{"Transfer-Encoding": []string{"chunked"}}
	assert.True(t, isStreamingResponse(chunked))

	plain := http.Header{"Content-Type": []string{"application/json"}}
	assert.False(t, isStreamingResponse(plain))
}
