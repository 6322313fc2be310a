package fetch

import (
	"context"
	"runtime"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/fs"
	"go.trai.ch/forge/internal/adapters/logger"
	"go.trai.ch/forge/internal/core/ports"
)

const (
	// DownloaderNodeID is the unique identifier for the downloader Graft node.
	DownloaderNodeID graft.ID = "adapter.downloader"
	// GitNodeID is the unique identifier for the git fetcher Graft node.
	GitNodeID graft.ID = "adapter.git_fetcher"
)

func init() {
	graft.Register(graft.Node[ports.Downloader]{
		ID:        DownloaderNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			fs.VerifierNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (ports.Downloader, error) {
			verifier, err := graft.Dep[ports.Verifier](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewDownloader(verifier, log, int64(runtime.NumCPU())), nil
		},
	})

	graft.Register(graft.Node[ports.GitFetcher]{
		ID:        GitNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.GitFetcher, error) {
			return NewGitFetcher(), nil
		},
	})
}
