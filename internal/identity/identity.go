// Package identity assigns a stable device identifier to each captured
// flow and classifies the calling client (Claude Code, Kiro CLI/IDE,
// unknown) from whatever headers and user-agent string are available.
package identity

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/mileusna/useragent"
)

// Device describes what was learned about the calling client for one
// request. It is persisted whole on every event, so the fields carry
// serialization tags.
type Device struct {
	ID         string `json:"id" bson:"id"`
	IPAddress  string `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	OSFamily   string `json:"os_family,omitempty" bson:"os_family,omitempty"`
	OSVersion  string `json:"os_version,omitempty" bson:"os_version,omitempty"`
	Browser    string `json:"browser,omitempty" bson:"browser,omitempty"`
	IsMobile   bool   `json:"is_mobile,omitempty" bson:"is_mobile,omitempty"`
	IsBot      bool   `json:"is_bot,omitempty" bson:"is_bot,omitempty"`
	ClientType string `json:"client_type,omitempty" bson:"client_type,omitempty"`
}

// Resolve builds a Device from the available signals, in priority
// order: an explicit session_id or device_id embedded in the request
// body (the shape Claude Code's telemetry payloads use) beats a
// fingerprint derived from IP + OS + user-agent, which beats a random
// fallback scoped to this process's lifetime.
func Resolve(ip, userAgent string, sessionID, embeddedDeviceID string) Device {
	ua := useragent.Parse(userAgent)

	d := Device{
		IPAddress: ip,
		OSFamily:  ua.OS,
		OSVersion: ua.OSVersion,
		Browser:   ua.Name,
		IsMobile:  ua.Mobile,
		IsBot:     ua.Bot,
	}

	switch {
	case sessionID != "":
		d.ID = sessionID
	case embeddedDeviceID != "":
		d.ID = embeddedDeviceID
	default:
		d.ID = fingerprint(ip, ua.OS, userAgent)
	}

	return d
}

// fingerprint hashes ip|osFamily|userAgent (truncated to 50 bytes,
// matching the original's device-grouping granularity) into a short,
// stable device id. If every component is empty it returns a random id
// generated once per process (the same id for every such call) instead
// of hashing nothing into a constant value.
var (
	fallbackOnce sync.Once
	fallbackID   string
)

func fingerprint(ip, osFamily, userAgent string) string {
	if len(userAgent) > 50 {
		userAgent = userAgent[:50]
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{ip, osFamily, userAgent} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		fallbackOnce.Do(func() { fallbackID = "unknown-" + randomHex(8) })
		return fallbackID
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return "device-" + hex.EncodeToString(sum[:])[:12]
}

func randomHex(n int) string {
	b := make([]byte, n/2+1)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)[:n]
}

// DetectClientType classifies the originating client from its
// user-agent and provider, favoring explicit markers over provider
// guesses.
func DetectClientType(userAgent, provider, host string) string {
	ua := strings.ToLower(userAgent)

	if strings.Contains(ua, "kiro") {
		if containsAny(ua, "ide", "editor", "vscode") {
			return "kiro-ide"
		}
		return "kiro-cli"
	}
	if strings.Contains(ua, "claude") && strings.Contains(ua, "code") {
		return "claude-code"
	}
	if provider == "kiro" || strings.Contains(strings.ToLower(host), "amazonaws.com") {
		return "kiro-cli"
	}
	if provider == "anthropic" {
		return "claude-code"
	}
	return "unknown"
}

// FormatFingerprintDebug is a small helper for log lines; not used in
// identity decisions.
func FormatFingerprintDebug(d Device) string {
	return fmt.Sprintf("device=%s os=%s/%s client=%s", d.ID, d.OSFamily, d.OSVersion, d.ClientType)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
