package cas

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/config"
	"go.trai.ch/forge/internal/adapters/logger"
	"go.trai.ch/forge/internal/core/ports"
)

// NodeID is the unique identifier for the artifact store Graft node.
const NodeID graft.ID = "adapter.artifact_store"

// RemoteEnv names a read-only remote artifact store consulted on local misses.
const RemoteEnv = "FORGE_CACHE_REMOTE"

func init() {
	graft.Register(graft.Node[ports.ArtifactStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (ports.ArtifactStore, error) {
			ws, err := graft.Dep[*config.Workspace](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			var remote *Remote
			if url := os.Getenv(RemoteEnv); url != "" {
				remote = NewRemote(url)
			}
			return NewStore(ws.CacheDir(), remote, log)
		},
	})
}
