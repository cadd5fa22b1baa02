package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nativegate/gateway/internal/domain"
)

// sanitizeModuleName turns an endpoint id into a valid Go module path
// segment, the substitute for spec.md §4.2's `handler_<sanitized_endpoint_id>`
// crate name.
func sanitizeModuleName(endpointID string) string {
	var b strings.Builder
	for _, r := range endpointID {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// requireLine serializes one dependency manifest entry to a go.mod require
// line, plus an optional feature comment, per §4.2's dependency
// serialization rule: a bare version string needs no extra annotation; a
// structured entry's features are recorded as a documentation comment since
// Go modules have no build-feature-flag concept.
func requireLine(name string, dep domain.Dependency) string {
	line := fmt.Sprintf("require %s %s", name, normalizeVersion(dep.Version))
	if len(dep.Features) == 0 && !dep.Optional && dep.DefaultFeatures == nil {
		return line
	}

	var annotations []string
	if len(dep.Features) > 0 {
		annotations = append(annotations, "features:"+strings.Join(dep.Features, ","))
	}
	if dep.Optional {
		annotations = append(annotations, "optional")
	}
	if dep.DefaultFeatures != nil && !*dep.DefaultFeatures {
		annotations = append(annotations, "no-default-features")
	}
	return fmt.Sprintf("%s // %s", line, strings.Join(annotations, " "))
}

func normalizeVersion(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// goModSource renders the materialized tree's go.mod: the module name, the
// Go directive, a replace directive pinning the handler SDK to the
// gateway's own vendored copy (so a handler never fetches it from the
// network), and one require line per declared dependency, sorted for
// deterministic output.
func goModSource(moduleName, sdkReplacePath string, deps domain.DependencyManifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module handler/%s\n\n", moduleName)
	b.WriteString("go 1.24\n\n")
	fmt.Fprintf(&b, "require %s v0.0.0\n\n", sdkModulePath)
	fmt.Fprintf(&b, "replace %s => %s\n", sdkModulePath, sdkReplacePath)

	if len(deps) == 0 {
		return b.String()
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("\n")
	for _, name := range names {
		b.WriteString(requireLine(name, deps[name]))
		b.WriteString("\n")
	}
	return b.String()
}

// sdkModulePath is the import path a handler's generated shim and
// hand-written source use to reach pkg/handlersdk's Request/Response/Context
// types.
const sdkModulePath = "github.com/nativegate/gateway/pkg/handlersdk"
