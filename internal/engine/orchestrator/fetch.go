package orchestrator

import (
	"context"
	"runtime"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/engine/resolver"
	"golang.org/x/sync/errgroup"
)

// FetchSources downloads and verifies every source of the resolution without
// building anything. The first failure cancels the remaining downloads.
func (o *Orchestrator) FetchSources(ctx context.Context, res *resolver.Resolution) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, node := range res.Plan.Nodes {
		spec := res.Specs[node.Name]
		task := &domain.BuildTask{Name: node.Name, Version: node.Version}

		g.Go(func() error {
			kind, err := spec.Source.Kind()
			if err != nil {
				return err
			}
			_, err = o.prepareSource(ctx, spec, kind, task)
			return err
		})
	}

	return g.Wait()
}
