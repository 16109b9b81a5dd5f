package flow

import (
	"encoding/json"
	"strings"

	"github.com/pedro9bee/tokentap/internal/extract"
	"github.com/pedro9bee/tokentap/internal/identity"
)

func resolveDevice(req Request) identity.Device {
	ip := req.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	sessionID, embeddedDeviceID := "", ""
	if len(req.Body) > 0 {
		var body map[string]any
		if err := json.Unmarshal(req.Body, &body); err == nil {
			if events, ok := body["events"].([]any); ok && len(events) > 0 {
				if first, ok := events[0].(map[string]any); ok {
					if data, ok := first["event_data"].(map[string]any); ok {
						if s, ok := data["session_id"].(string); ok {
							sessionID = s
						}
						if d, ok := data["device_id"].(string); ok {
							embeddedDeviceID = d
						}
					}
				}
			}
		}
	}

	return identity.Resolve(ip, req.Headers.Get("User-Agent"), sessionID, embeddedDeviceID)
}

// extractContextMetadata reads the X-Tokentap-* headers directly, then
// falls back to inferring a program name from the user-agent when the
// client never set one explicitly.
func extractContextMetadata(headers map[string][]string, provider, host string) ContextMetadata {
	ctx := ContextMetadata{
		Program: firstHeader(headers, "X-Tokentap-Program"),
		Project: firstHeader(headers, "X-Tokentap-Project"),
		Session: firstHeader(headers, "X-Tokentap-Session"),
	}

	if raw := firstHeader(headers, "X-Tokentap-Context"); raw != "" {
		var extra map[string]any
		if err := json.Unmarshal([]byte(raw), &extra); err == nil {
			custom := make(map[string]any)
			for k, v := range extra {
				switch k {
				case "program":
					if ctx.Program == "" {
						if s, ok := v.(string); ok {
							ctx.Program = s
						}
					}
				case "project":
					if ctx.Project == "" {
						if s, ok := v.(string); ok {
							ctx.Project = s
						}
					}
				case "session":
					if ctx.Session == "" {
						if s, ok := v.(string); ok {
							ctx.Session = s
						}
					}
				default:
					custom[k] = v
				}
			}
			if len(custom) > 0 {
				ctx.Custom = custom
			}
		}
	}

	if ctx.Program == "" {
		ctx.Program = identity.DetectClientType(firstHeaderSlice(headers, "User-Agent"), provider, host)
	}

	return ctx
}

func firstHeader(headers map[string][]string, key string) string {
	return firstHeaderSlice(headers, key)
}

func firstHeaderSlice(headers map[string][]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

const (
	kiroTelemetryTarget = "sendtelemetry"
)

var telemetryPathKeywords = []string{"telemetry", "metrics", "clienttelemetry"}

// isTelemetryRequest filters out Kiro's SendTelemetry/SendTelemetryEvent calls (by
// the X-Amz-Target header) and any path carrying a telemetry/metrics
// keyword — none of these represent a model generation call.
func isTelemetryRequest(req Request, resp Response) bool {
	target := strings.ToLower(req.Headers.Get("X-Amz-Target"))
	if strings.Contains(target, kiroTelemetryTarget) {
		return true
	}
	path := strings.ToLower(req.Path)
	for _, kw := range telemetryPathKeywords {
		if strings.Contains(path, kw) {
			return true
		}
	}
	return false
}

// isTokenConsuming reports whether a flow represents real LLM inference
// traffic rather than telemetry/logging: its provider resolved to
// something other than the "unknown" capture-all placeholder, and the
// extracted request carries a thinking budget, at least one message, or
// some extracted text. It reads only the extracted fields, not the raw
// body: a body key such as "prompt" that the provider's extractor does
// not read does not count.
func isTokenConsuming(fields extract.RequestFields, providerName string) bool {
	if providerName == "unknown" {
		return false
	}
	if hasBudgetTokens(fields) {
		return true
	}
	return len(fields.Messages) > 0 || fields.TotalText != ""
}
