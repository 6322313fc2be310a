package toolchain

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/config"
	"go.trai.ch/forge/internal/adapters/fetch"
	"go.trai.ch/forge/internal/adapters/logger"
	"go.trai.ch/forge/internal/adapters/shell"
	"go.trai.ch/forge/internal/core/ports"
)

// NodeID is the unique identifier for the toolchain resolver Graft node.
const NodeID graft.ID = "adapter.toolchain_resolver"

func init() {
	graft.Register(graft.Node[ports.ToolchainResolver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fetch.DownloaderNodeID,
			shell.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (ports.ToolchainResolver, error) {
			ws, err := graft.Dep[*config.Workspace](ctx)
			if err != nil {
				return nil, err
			}
			downloader, err := graft.Dep[ports.Downloader](ctx)
			if err != nil {
				return nil, err
			}
			executor, err := graft.Dep[ports.StepExecutor](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewResolver(ws.ToolchainsDir(), downloader, executor, log), nil
		},
	})
}
