package proxyserver

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pedro9bee/tokentap/internal/catalog"
	"github.com/pedro9bee/tokentap/internal/flow"
)

// flowIngestor is the slice of Ingestor's behavior DirectProxy needs.
// Defined locally so tests can drive DirectProxy without a live store.
type flowIngestor interface {
	HandleRequest(ctx context.Context, req flow.Request) error
	HandleResponseHeaders(ctx context.Context, flowID string, headers http.Header) error
	AppendChunk(flowID string, chunk []byte)
	HandleResponse(ctx context.Context, flowID string, resp flow.Response) error
}

var _ flowIngestor = (*Ingestor)(nil)

// DirectProxy is the backward-compatible, non-MITM entry point: a client
// that points its base URL straight at tokentap (instead of tokentap
// intercepting traffic transparently) lands here. Since the client
// dials tokentap's own loopback address, the request path (not Host) is
// matched against the catalog's api_patterns to resolve the upstream.
type DirectProxy struct {
	catalog *catalog.Catalog
	ingest  flowIngestor
	client  *http.Client
}

// NewDirectProxy builds a DirectProxy forwarding to whichever upstream
// the catalog resolves the request's path to.
func NewDirectProxy(cat *catalog.Catalog, ingest *Ingestor) *DirectProxy {
	return &DirectProxy{
		catalog: cat,
		ingest:  ingest,
		client:  &http.Client{Timeout: 0},
	}
}

func (p *DirectProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "proxy": true})
		return
	}

	ctx := r.Context()
	flowID := newFlowID()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}
	r.Body.Close()

	// upstreamHost is resolved once, from the request path, and carried
	// explicitly from here on. The client dialed the proxy's own
	// loopback address (that's the whole point of direct mode), so the
	// only usable routing signal is which provider's path suffix the
	// request matches — not r.Host, which is just "127.0.0.1:<port>".
	// Nothing downstream re-reads r.Host after the outbound request is
	// built, so a later rewrite can never leak back as the "original"
	// host.
	provider, ok := p.catalog.ByPathPattern(r.URL.Path)
	if !ok || len(provider.Domains) == 0 {
		http.Error(w, "no provider matches request path "+r.URL.Path, http.StatusBadRequest)
		return
	}
	upstreamHost := provider.Domains[0]

	flowReq := flow.Request{
		ID:         flowID,
		Method:     r.Method,
		Host:       upstreamHost,
		Path:       r.URL.Path,
		Scheme:     "https",
		Headers:    r.Header.Clone(),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
		ReceivedAt: time.Now(),
	}
	if err := p.ingest.HandleRequest(ctx, flowReq); err != nil {
		log.Printf("tokentap: direct proxy: %v", err)
	}

	target := url.URL{Scheme: "https", Host: upstreamHost, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	outReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		http.Error(w, "building upstream request", http.StatusInternalServerError)
		return
	}
	outReq.Header = r.Header.Clone()
	outReq.Host = upstreamHost

	resp, err := p.client.Do(outReq)
	if err != nil {
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if err := p.ingest.HandleResponseHeaders(ctx, flowID, resp.Header); err != nil {
		log.Printf("tokentap: direct proxy: %v", err)
	}

	for k, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if isStreamingResponse(resp.Header) {
		p.relayStreaming(ctx, w, resp, flowID)
		return
	}
	p.relayBuffered(ctx, w, resp, flowID)
}

// relayBuffered copies a non-streaming response straight through, then
// hands the full body to the ingestor for extraction.
func (p *DirectProxy) relayBuffered(ctx context.Context, w http.ResponseWriter, resp *http.Response, flowID string) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("tokentap: direct proxy: reading upstream body: %v", err)
		return
	}
	w.Write(respBody)

	flowResp := flow.Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: respBody}
	if err := p.ingest.HandleResponse(ctx, flowID, flowResp); err != nil {
		log.Printf("tokentap: direct proxy: %v", err)
	}
}

// relayStreaming copies a streaming response to the client chunk by
// chunk while also feeding each chunk into the flow table's buffer, then
// signals completion once the upstream body is drained.
func (p *DirectProxy) relayStreaming(ctx context.Context, w http.ResponseWriter, resp *http.Response, flowID string) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			w.Write(chunk)
			if flusher != nil {
				flusher.Flush()
			}
			p.ingest.AppendChunk(flowID, chunk)
		}
		if readErr != nil {
			break
		}
	}

	flowResp := flow.Response{StatusCode: resp.StatusCode, Headers: resp.Header}
	if err := p.ingest.HandleResponse(ctx, flowID, flowResp); err != nil {
		log.Printf("tokentap: direct proxy: %v", err)
	}
}

func isStreamingResponse(headers http.Header) bool {
	ct := headers.Get("Content-Type")
	return strings.Contains(ct, "text/event-stream") ||
		strings.Contains(ct, "application/vnd.amazon.eventstream") ||
		headers.Get("Transfer-Encoding") == "chunked"
}

func newFlowID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(buf)
}
