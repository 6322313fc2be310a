package orchestrator

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/cas"       //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/config"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/fetch"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/fs"        //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/lockfile"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/shell"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/toolchain" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/core/ports"
)

// NodeID is the unique identifier for the orchestrator Graft node.
const NodeID graft.ID = "engine.orchestrator"

func init() {
	graft.Register(graft.Node[*Orchestrator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			shell.NodeID,
			toolchain.NodeID,
			cas.NodeID,
			fs.StampsNodeID,
			fs.VerifierNodeID,
			fs.HasherNodeID,
			fetch.DownloaderNodeID,
			fetch.GitNodeID,
			lockfile.NodeID,
			logger.NodeID,
			config.NodeID,
		},
		Run: runNode,
	})
}

func runNode(ctx context.Context) (*Orchestrator, error) {
	executor, err := graft.Dep[ports.StepExecutor](ctx)
	if err != nil {
		return nil, err
	}
	toolchains, err := graft.Dep[ports.ToolchainResolver](ctx)
	if err != nil {
		return nil, err
	}
	artifacts, err := graft.Dep[ports.ArtifactStore](ctx)
	if err != nil {
		return nil, err
	}
	stamps, err := graft.Dep[ports.StampStore](ctx)
	if err != nil {
		return nil, err
	}
	downloader, err := graft.Dep[ports.Downloader](ctx)
	if err != nil {
		return nil, err
	}
	git, err := graft.Dep[ports.GitFetcher](ctx)
	if err != nil {
		return nil, err
	}
	verifier, err := graft.Dep[ports.Verifier](ctx)
	if err != nil {
		return nil, err
	}
	prints, err := graft.Dep[ports.Fingerprinter](ctx)
	if err != nil {
		return nil, err
	}
	locks, err := graft.Dep[ports.LockStore](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	ws, err := graft.Dep[*config.Workspace](ctx)
	if err != nil {
		return nil, err
	}

	return New(executor, toolchains, artifacts, stamps, downloader, git, verifier, prints, locks, log, Layout{Root: ws.Root}), nil
}
