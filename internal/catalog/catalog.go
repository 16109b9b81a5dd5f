package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

//go:embed providers.json
var baseProvidersJSON []byte

// CaptureMode selects whether unknown domains are dropped ("known_only")
// or recorded under the "unknown" provider entry ("capture_all").
type CaptureMode string

const (
	KnownOnly  CaptureMode = "known_only"
	CaptureAll CaptureMode = "capture_all"
)

// Catalog serves provider descriptors and resolves a request's host to the
// provider that should handle it. A Catalog is safe for concurrent use;
// Reload swaps its contents atomically so readers never see a partial
// update.
type Catalog struct {
	overridePath string
	cur          atomic.Pointer[snapshot]
}

type snapshot struct {
	capture   CaptureMode
	providers map[string]Provider
}

// Load builds a Catalog from the embedded base descriptor set, deep-merged
// with the JSON file at overridePath if it exists. overridePath may be
// empty, in which case only the base catalog is used.
func Load(overridePath string) (*Catalog, error) {
	c := &Catalog{overridePath: overridePath}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the override file (if configured) and deep-merges it
// onto the embedded base, replacing the catalog's contents atomically.
func (c *Catalog) Reload() error {
	var base map[string]any
	if err := json.Unmarshal(baseProvidersJSON, &base); err != nil {
		return fmt.Errorf("catalog: decoding embedded base catalog: %w", err)
	}

	merged := base
	if c.overridePath != "" {
		if raw, err := os.ReadFile(c.overridePath); err == nil {
			var overlay map[string]any
			if err := json.Unmarshal(raw, &overlay); err != nil {
				log.Printf("catalog: failed to parse override %s: %v (keeping base catalog)", c.overridePath, err)
			} else {
				merged = deepMerge(base, overlay)
				log.Printf("catalog: merged provider overrides from %s", c.overridePath)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("catalog: failed to read override %s: %v", c.overridePath, err)
		}
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("catalog: re-marshaling merged catalog: %w", err)
	}
	var doc document
	if err := json.Unmarshal(mergedJSON, &doc); err != nil {
		return fmt.Errorf("catalog: decoding merged catalog: %w", err)
	}

	mode := CaptureMode(doc.CaptureMode)
	if mode != KnownOnly && mode != CaptureAll {
		mode = KnownOnly
	}

	c.cur.Store(&snapshot{capture: mode, providers: doc.Providers})
	return nil
}

// deepMerge merges override onto base, recursing into nested objects and
// letting override win on any key it sets — scalars and arrays in
// override replace the base value outright, mirroring the original
// Python implementation's merge semantics.
func deepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if baseVal, ok := result[k]; ok {
			baseMap, baseIsMap := baseVal.(map[string]any)
			overrideMap, overrideIsMap := v.(map[string]any)
			if baseIsMap && overrideIsMap {
				result[k] = deepMerge(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// ByDomain finds the provider whose domain list matches host (exact match
// or suffix match, so "beta.api.anthropic.com" matches "api.anthropic.com").
// If no provider matches and the catalog is in capture-all mode, the
// "unknown" provider entry is returned instead.
func (c *Catalog) ByDomain(host string) (Provider, bool) {
	snap := c.cur.Load()
	for name, p := range snap.providers {
		if !p.Enabled || name == "unknown" {
			continue
		}
		for _, d := range p.Domains {
			if d == host || strings.HasSuffix(host, "."+d) || host == d {
				return p, true
			}
		}
	}
	if snap.capture == CaptureAll {
		if p, ok := snap.providers["unknown"]; ok && p.Enabled {
			return p, true
		}
	}
	return Provider{}, false
}

// ByPathPattern finds the provider whose api_patterns contains a string
// present anywhere in path. Used by the backward-compatible direct-mode
// proxy, where the client dials the proxy's own loopback address and
// the only signal available for routing is the request path, not the
// (loopback) host.
func (c *Catalog) ByPathPattern(path string) (Provider, bool) {
	snap := c.cur.Load()
	for name, p := range snap.providers {
		if !p.Enabled || name == "unknown" {
			continue
		}
		for _, pattern := range p.APIPatterns {
			if pattern != "" && strings.Contains(path, pattern) {
				return p, true
			}
		}
	}
	return Provider{}, false
}

// Get returns a provider by its catalog key, regardless of domain.
func (c *Catalog) Get(name string) (Provider, bool) {
	snap := c.cur.Load()
	p, ok := snap.providers[name]
	return p, ok
}

// CaptureMode reports the catalog's current capture mode.
func (c *Catalog) CaptureMode() CaptureMode {
	return c.cur.Load().capture
}

// Watch reloads the catalog whenever the override file is written or
// created. It starts its own goroutine and returns the watcher at once;
// that goroutine passes reload and watcher errors to events and keeps
// running until the watcher is closed. An empty overridePath, or an
// override file that does not exist yet, makes Watch a no-op that
// returns a nil watcher.
func (c *Catalog) Watch(events func(error)) (*fsnotify.Watcher, error) {
	if c.overridePath == "" {
		return nil, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog: creating watcher: %w", err)
	}
	if err := w.Add(c.overridePath); err != nil {
		// The override file may not exist yet; that's fine, there's just
		// nothing to watch until it's created.
		w.Close()
		return nil, nil
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := c.Reload(); err != nil && events != nil {
						events(err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if events != nil {
					events(err)
				}
			}
		}
	}()
	return w, nil
}
