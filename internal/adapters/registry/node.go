package registry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/config"
	"go.trai.ch/forge/internal/core/ports"
)

// NodeID is the unique identifier for the package universe Graft node.
const NodeID graft.ID = "adapter.package_universe"

func init() {
	graft.Register(graft.Node[ports.PackageUniverse]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.PackageUniverse, error) {
			ws, err := graft.Dep[*config.Workspace](ctx)
			if err != nil {
				return nil, err
			}
			return NewLocal(ws.PackagesDir()), nil
		},
	})
}
