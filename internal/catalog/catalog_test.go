package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByDomainExactMatch(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	p, ok := c.ByDomain("api.anthropic.com")
	require.True(t, ok)
	assert.Equal(t, "anthropic", p.Name)
}

func TestByDomainSuffixMatch(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	p, ok := c.ByDomain("beta.api.anthropic.com")
	require.True(t, ok)
	assert.Equal(t, "anthropic", p.Name)
}

func TestByDomainUnknownWithoutCaptureAll(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	_, ok := c.ByDomain("example.com")
	assert.False(t, ok)
}

func TestByDomainCaptureAllFallsBackToUnknown(t *testing.T) {
	dir := t.TempDir()
	overridePath := filepath.Join(dir, "providers.json")
	require.NoError(t, os.WriteFile(overridePath, []byte(`{"capture_mode":"capture_all","providers":{}}`), 0o644))

	c, err := Load(overridePath)
	require.NoError(t, err)

	p, ok := c.ByDomain("example.com")
	require.True(t, ok)
	assert.Equal(t, "unknown", p.Name)
}

func TestByPathPatternMatchesProviderAPIPattern(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	p, ok := c.ByPathPattern("/v1/messages")
	require.True(t, ok)
	assert.Equal(t, "anthropic", p.Name)

	p, ok = c.ByPathPattern("/v1beta/models/gemini-pro:streamGenerateContent")
	require.True(t, ok)
	assert.Equal(t, "gemini", p.Name)

	_, ok = c.ByPathPattern("/unrelated")
	assert.False(t, ok)
}

func TestOverrideDeepMergesOntoBase(t *testing.T) {
	dir := t.TempDir()
	overridePath := filepath.Join(dir, "providers.json")
	// Override only the cost metadata for anthropic; everything else
	// (domains, request/response paths) should survive from the base.
	require.NoError(t, os.WriteFile(overridePath, []byte(`{
		"providers": {
			"anthropic": {
				"metadata": {"cost_per_input_token": 0.000099}
			}
		}
	}`), 0o644))

	c, err := Load(overridePath)
	require.NoError(t, err)

	p, ok := c.Get("anthropic")
	require.True(t, ok)
	assert.Equal(t, []string{"api.anthropic.com"}, p.Domains)
	assert.Equal(t, "$.usage.input_tokens", p.Response.JSON.InputTokensPath)
	assert.InDelta(t, 0.000099, p.Metadata.CostPerInputToken, 1e-9)
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	overridePath := filepath.Join(dir, "providers.json")
	require.NoError(t, os.WriteFile(overridePath, []byte(`{"providers":{}}`), 0o644))

	c, err := Load(overridePath)
	require.NoError(t, err)
	_, ok := c.ByDomain("example.com")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(overridePath, []byte(`{"capture_mode":"capture_all","providers":{}}`), 0o644))
	require.NoError(t, c.Reload())

	_, ok = c.ByDomain("example.com")
	assert.True(t, ok)
}
