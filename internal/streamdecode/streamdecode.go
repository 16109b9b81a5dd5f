// Package streamdecode turns a captured stream body into the ordered
// list of JSON payloads it carried, without knowing anything about what
// those payloads mean (that's internal/extract's job). It mirrors the
// frame formats the catalog can describe: plain SSE, newline-delimited
// JSON, a JSON array spread across chunks, and Amazon's binary
// eventstream framing, which it recognizes but does not decode.
package streamdecode

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pedro9bee/tokentap/internal/catalog"
)

// Format names mirror the catalog's response.sse.format values.
const (
	FormatSSE             = "sse"
	FormatJSONLines       = "json_lines"
	FormatSSEOrJSONLines  = "sse_or_json_lines"
	FormatEventStream     = "eventstream"
	defaultDoneMarker     = "[DONE]"
	eventStreamContentTyp = "application/vnd.amazon.eventstream"
)

// Result is the product of draining one response stream.
type Result struct {
	// Docs are individually decoded JSON payloads, in arrival order.
	Docs []any
	// RawText is the full concatenated body, used by fallbacks that
	// need to reparse the stream wholesale instead of frame-by-frame.
	RawText string
	// Truncated marks a stream cut off by the buffer cap before a natural
	// end was observed. Decode does not set it; the flow table records
	// truncation on its own state.
	Truncated bool
	// IsEventStream is set when the frames are AWS binary eventstream
	// records; Docs and RawText are not meaningful in that case, since
	// this package does not decode eventstream payloads.
	IsEventStream bool
}

// IsEventStreamContentType reports whether a response's content-type
// header identifies AWS's binary event-stream framing.
func IsEventStreamContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), eventStreamContentTyp)
}

// Decode drains raw according to format, honoring the provider's SSE
// config (done marker, use_last_chunk) when one is given — sse may be
// nil for providers without a streaming descriptor, in which case the
// common "[DONE]" sentinel is still skipped. For eventstream-framed
// bodies it only sets IsEventStream — no frame parsing is attempted.
func Decode(format string, sse *catalog.SSEResponseConfig, raw []byte) Result {
	if format == FormatEventStream {
		return Result{IsEventStream: true}
	}

	doneMarker := defaultDoneMarker
	useLastChunk := false
	if sse != nil {
		if sse.DoneMarker != "" {
			doneMarker = sse.DoneMarker
		}
		useLastChunk = sse.UseLastChunk
	}

	result := Result{RawText: string(raw)}

	switch format {
	case FormatJSONLines:
		result.Docs = decodeJSONLines(raw)
	case FormatSSEOrJSONLines:
		if docs := decodeJSONLines(raw); len(docs) > 0 {
			result.Docs = docs
		} else {
			result.Docs = decodeSSE(raw, doneMarker)
		}
	default: // FormatSSE and anything unrecognized
		result.Docs = decodeSSE(raw, doneMarker)
	}

	// use_last_chunk: the whole payload is additionally tried as a
	// top-level JSON array, and its last element is appended so
	// last-write-wins extraction reads that element's paths.
	if useLastChunk {
		if v, ok := LastJSONValue(raw); ok {
			result.Docs = append(result.Docs, v)
		}
	}

	return result
}

// decodeSSE parses "data: {...}" lines separated by blank lines,
// skipping payloads equal to doneMarker and any non-JSON payloads.
func decodeSSE(raw []byte, doneMarker string) []any {
	var docs []any
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == doneMarker {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(payload), &v); err == nil {
			docs = append(docs, v)
		}
	}
	return docs
}

// decodeJSONLines strips stray JSON-array framing characters
// (",", "[", "]") from each line and keeps every line that parses,
// in order. It also tolerates the whole body being a single JSON
// array, returning its elements.
func decodeJSONLines(raw []byte) []any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []any
		if err := json.Unmarshal(trimmed, &arr); err == nil {
			return arr
		}
	}

	var docs []any
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.Trim(strings.TrimSpace(scanner.Text()), ",[]")
		if line == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(line), &v); err == nil {
			docs = append(docs, v)
		}
	}
	return docs
}

// LastJSONValue returns the last element of a decoded array body, or
// the last successfully parsed newline-delimited value — whichever
// format raw turns out to be. Decode's use_last_chunk handling appends
// this single "most recent cumulative state" value to the ordered list.
func LastJSONValue(raw []byte) (any, bool) {
	docs := decodeJSONLines(raw)
	if len(docs) == 0 {
		return nil, false
	}
	return docs[len(docs)-1], true
}
