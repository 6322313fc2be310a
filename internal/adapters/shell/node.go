package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/core/ports"
)

// NodeID is the unique identifier for the step executor Graft node.
const NodeID graft.ID = "adapter.step_executor"

func init() {
	graft.Register(graft.Node[ports.StepExecutor]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.StepExecutor, error) {
			return NewExecutor(), nil
		},
	})
}
