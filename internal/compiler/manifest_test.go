package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nativegate/gateway/internal/domain"
)

func TestSanitizeModuleName(t *testing.T) {
	assert.Equal(t, "abc123", sanitizeModuleName("abc123"))
	assert.Equal(t, "ab_cd_ef", sanitizeModuleName("ab-cd.ef"))
	assert.Equal(t, "upper", sanitizeModuleName("UPPER"))
}

func TestRequireLineBareVersion(t *testing.T) {
	line := requireLine("github.com/google/uuid", domain.Dependency{Version: "1.6.0"})
	assert.Equal(t, "require github.com/google/uuid v1.6.0", line)
}

func TestRequireLineStructured(t *testing.T) {
	noDefaults := false
	line := requireLine("github.com/example/lib", domain.Dependency{
		Version:         "2.0.0",
		Features:        []string{"json", "async"},
		Optional:        true,
		DefaultFeatures: &noDefaults,
	})
	assert.Contains(t, line, "require github.com/example/lib v2.0.0")
	assert.Contains(t, line, "features:json,async")
	assert.Contains(t, line, "optional")
	assert.Contains(t, line, "no-default-features")
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "v0.0.0", normalizeVersion(""))
	assert.Equal(t, "v1.2.3", normalizeVersion("1.2.3"))
	assert.Equal(t, "v1.2.3", normalizeVersion("v1.2.3"))
}

func TestGoModSourceDeterministicOrder(t *testing.T) {
	deps := domain.DependencyManifest{
		"github.com/zeta/pkg":  {Version: "1.0.0"},
		"github.com/alpha/pkg": {Version: "2.0.0"},
	}
	src := goModSource("handler123", "/abs/path/to/handlersdk", deps)

	require.Contains(t, src, "module handler/handler123")
	require.Contains(t, src, "go 1.24")
	require.Contains(t, src, "replace github.com/nativegate/gateway/pkg/handlersdk => /abs/path/to/handlersdk")

	alphaIdx := indexOf(src, "github.com/alpha/pkg")
	zetaIdx := indexOf(src, "github.com/zeta/pkg")
	require.Greater(t, zetaIdx, alphaIdx, "dependencies must be sorted alphabetically for deterministic output")
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
