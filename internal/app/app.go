// Package app implements the application layer tying manifest loading,
// resolution and orchestration together.
package app

import (
	"context"
	"runtime"

	"go.trai.ch/forge/internal/adapters/config"
	"go.trai.ch/forge/internal/build"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/orchestrator"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// BuildOptions carry the command-line knobs of one build invocation.
type BuildOptions struct {
	// Jobs overrides the manifest's parallelism when positive.
	Jobs int

	// Locked enforces the lock file instead of regenerating it.
	Locked bool

	// Force rebuilds even on stamp or cache hits.
	Force bool
}

// App exposes the tool's top-level operations.
type App struct {
	workspace    *config.Workspace
	resolver     *resolver.Resolver
	orchestrator *orchestrator.Orchestrator
	toolchains   ports.ToolchainResolver
	artifacts    ports.ArtifactStore
	logger       ports.Logger
}

// New creates a new App instance.
func New(
	workspace *config.Workspace,
	res *resolver.Resolver,
	orch *orchestrator.Orchestrator,
	toolchains ports.ToolchainResolver,
	artifacts ports.ArtifactStore,
	logger ports.Logger,
) *App {
	return &App{
		workspace:    workspace,
		resolver:     res,
		orchestrator: orch,
		toolchains:   toolchains,
		artifacts:    artifacts,
		logger:       logger,
	}
}

// Build resolves the manifest and builds every requested package.
func (a *App) Build(ctx context.Context, opts BuildOptions) (*domain.BuildReport, error) {
	manifest, res, err := a.resolve()
	if err != nil {
		return nil, err
	}

	board, err := a.loadBoard(manifest)
	if err != nil {
		return nil, err
	}

	jobs := manifest.Jobs
	if opts.Jobs > 0 {
		jobs = opts.Jobs
	}

	toolchainVersion := ""
	if c, err := a.toolchains.Resolve(ctx, domain.Toolchain{}, board.Target); err == nil {
		toolchainVersion = c.Version
	}

	return a.orchestrator.Run(ctx, res, orchestrator.Options{
		Jobs:             jobs,
		Locked:           opts.Locked,
		Force:            opts.Force,
		Board:            *board,
		PackageOptions:   manifest.PackageOptions,
		ForgeVersion:     build.Version,
		ToolchainVersion: toolchainVersion,
	})
}

// Fetch downloads and verifies every resolved source without building.
func (a *App) Fetch(ctx context.Context) error {
	_, res, err := a.resolve()
	if err != nil {
		return err
	}
	return a.orchestrator.FetchSources(ctx, res)
}

// Plan resolves the manifest and returns the build plan without executing it.
func (a *App) Plan(_ context.Context) (*resolver.Resolution, error) {
	_, res, err := a.resolve()
	return res, err
}

// CacheInfo summarizes the artifact cache.
func (a *App) CacheInfo() (ports.StoreInfo, error) {
	return a.artifacts.Info()
}

// CacheClean removes every cached artifact.
func (a *App) CacheClean() error {
	return a.artifacts.Clean()
}

// CacheExport writes the artifact cache as a portable archive.
func (a *App) CacheExport(dest string) error {
	return a.artifacts.Export(dest)
}

// CacheImport merges an exported archive into the artifact cache.
func (a *App) CacheImport(src string) error {
	return a.artifacts.Import(src)
}

func (a *App) resolve() (*domain.Manifest, *resolver.Resolution, error) {
	manifest, err := config.LoadManifest(a.workspace.ManifestPath())
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to load manifest")
	}

	res, err := a.resolver.Resolve(manifest.Packages)
	if err != nil {
		return nil, nil, err
	}
	return manifest, res, nil
}

// loadBoard reads the referenced board descriptor and overlays the manifest's
// board option overrides. Without a board reference the host platform is the
// target.
func (a *App) loadBoard(manifest *domain.Manifest) (*domain.Board, error) {
	if manifest.BoardName == "" {
		return &domain.Board{
			Name:    "host",
			Target:  hostTriple(),
			Options: manifest.BoardOptions,
		}, nil
	}

	board, err := config.LoadBoard(a.workspace.BoardPath(manifest.BoardName))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to load board"), "board", manifest.BoardName)
	}

	if len(manifest.BoardOptions) > 0 {
		merged := make(map[string]string, len(board.Options)+len(manifest.BoardOptions))
		for k, v := range board.Options {
			merged[k] = v
		}
		for k, v := range manifest.BoardOptions {
			merged[k] = v
		}
		board.Options = merged
	}
	return board, nil
}

func hostTriple() string {
	switch runtime.GOARCH {
	case "arm64":
		return "aarch64-linux-gnu"
	default:
		return "x86_64-linux-gnu"
	}
}
