package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/config"
	"go.trai.ch/forge/internal/core/ports"
)

const (
	// VerifierNodeID is the unique identifier for the verifier Graft node.
	VerifierNodeID graft.ID = "adapter.verifier"
	// HasherNodeID is the unique identifier for the fingerprinter Graft node.
	HasherNodeID graft.ID = "adapter.hasher"
	// StampsNodeID is the unique identifier for the stamp store Graft node.
	StampsNodeID graft.ID = "adapter.stamp_store"
)

func init() {
	graft.Register(graft.Node[ports.Verifier]{
		ID:        VerifierNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Verifier, error) {
			return NewVerifier(), nil
		},
	})

	graft.Register(graft.Node[ports.Fingerprinter]{
		ID:        HasherNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Fingerprinter, error) {
			return NewHasher(), nil
		},
	})

	graft.Register(graft.Node[ports.StampStore]{
		ID:        StampsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.StampStore, error) {
			ws, err := graft.Dep[*config.Workspace](ctx)
			if err != nil {
				return nil, err
			}
			return NewStampStore(ws.StampsDir()), nil
		},
	})
}
