// Package compiler implements the materialize/compile/install pipeline
// described in §4.2: a handler's stored source and dependency manifest
// become a standalone Go module tree, which is cross-compiled to a
// GOOS=wasip1 GOARCH=wasm artifact and installed where the registry expects
// it.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nativegate/gateway/internal/domain"
)

// Pipeline owns the on-disk layout for materialized handler trees and
// compiled artifacts.
type Pipeline struct {
	workRoot      string // where materialized module trees are written and built
	artifactsRoot string // where the registry expects libhandler_<id>.wasm to live
	sdkPath       string // absolute path to pkg/handlersdk, pinned via go.mod replace
	goBin         string
	buildTimeout  time.Duration
	logger        *zap.Logger
}

// New builds a Pipeline. sdkPath is an absolute filesystem path to the
// gateway's own pkg/handlersdk, so every materialized tree's go.mod replace
// directive resolves without the handler ever reaching the network for it.
func New(workRoot, artifactsRoot, sdkPath string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		workRoot:      workRoot,
		artifactsRoot: artifactsRoot,
		sdkPath:       sdkPath,
		goBin:         "go",
		buildTimeout:  2 * time.Minute,
		logger:        logger,
	}
}

// Compile runs the full materialize → build → install sequence for ep,
// returning the path to the installed artifact on success. Any failure at
// any stage is wrapped in domain.ErrCompileFailed.
func (p *Pipeline) Compile(ctx context.Context, ep *domain.Endpoint) (string, error) {
	treeDir := filepath.Join(p.workRoot, ep.ID.String())
	if err := p.materialize(treeDir, ep); err != nil {
		return "", fmt.Errorf("%w: materialize: %v", domain.ErrCompileFailed, err)
	}

	wasmPath, err := p.build(ctx, treeDir, ep.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCompileFailed, err)
	}

	installed, err := p.install(wasmPath, ep.ID)
	if err != nil {
		return "", fmt.Errorf("%w: install: %v", domain.ErrCompileFailed, err)
	}

	p.logger.Info("handler compiled",
		zap.String("endpoint_id", ep.ID.String()), zap.String("artifact", installed))
	return installed, nil
}

// materialize writes the standalone module tree: go.mod (from the
// endpoint's dependency manifest), the generated shim (main.go), and the
// user's source verbatim (handler.go) — matching spec.md §4.2's
// lib.rs/handler.rs split as two files in one compilation unit.
func (p *Pipeline) materialize(treeDir string, ep *domain.Endpoint) error {
	if err := os.RemoveAll(treeDir); err != nil {
		return fmt.Errorf("clear previous tree: %w", err)
	}
	if err := os.MkdirAll(treeDir, 0o755); err != nil {
		return fmt.Errorf("create tree dir: %w", err)
	}

	moduleName := sanitizeModuleName(ep.ID.String())
	goModContents := goModSource(moduleName, p.sdkPath, ep.Dependencies)
	if err := os.WriteFile(filepath.Join(treeDir, "go.mod"), []byte(goModContents), 0o644); err != nil {
		return fmt.Errorf("write go.mod: %w", err)
	}

	var shimBuf bytes.Buffer
	if err := shimTemplate.Execute(&shimBuf, shimData{SDKModulePath: sdkModulePath}); err != nil {
		return fmt.Errorf("render shim: %w", err)
	}
	if err := os.WriteFile(filepath.Join(treeDir, "main.go"), shimBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write main.go: %w", err)
	}

	if err := os.WriteFile(filepath.Join(treeDir, "handler.go"), []byte(ep.Source), 0o644); err != nil {
		return fmt.Errorf("write handler.go: %w", err)
	}
	return nil
}

// build cross-compiles the materialized tree to a wasip1/wasm binary,
// capturing stderr for diagnostics on failure.
func (p *Pipeline) build(ctx context.Context, treeDir string, endpointID uuid.UUID) (string, error) {
	buildCtx, cancel := context.WithTimeout(ctx, p.buildTimeout)
	defer cancel()

	outName := fmt.Sprintf("handler_%s.wasm", sanitize(endpointID.String()))
	outPath := filepath.Join(treeDir, outName)

	cmd := exec.CommandContext(buildCtx, p.goBin, "build", "-o", outPath, ".")
	cmd.Dir = treeDir
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm", "CGO_ENABLED=0")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("go build: %w: %s", err, stderr.String())
	}
	return outPath, nil
}

// install copies the built artifact to the path the registry loads from:
// <artifactsRoot>/<endpoint id>/libhandler_<sanitized id>.wasm, the naming
// convention registry.artifactFilename expects (§2's "libhandler_ prefix
// kept for continuity" from the native-plugin ABI this replaces).
func (p *Pipeline) install(wasmPath string, endpointID uuid.UUID) (string, error) {
	destDir := filepath.Join(p.artifactsRoot, endpointID.String())
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	destPath := filepath.Join(destDir, fmt.Sprintf("libhandler_%s.wasm", sanitize(endpointID.String())))
	data, err := os.ReadFile(wasmPath)
	if err != nil {
		return "", fmt.Errorf("read built artifact: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write installed artifact: %w", err)
	}
	return destPath, nil
}

// sanitize mirrors registry.sanitize; duplicated rather than shared to keep
// the two packages decoupled (the registry must never import the compiler,
// which shells out and touches the filesystem in ways the hot request path
// should never depend on).
func sanitize(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
