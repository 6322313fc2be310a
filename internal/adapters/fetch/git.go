package fetch

import (
	"context"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.GitFetcher = (*GitFetcher)(nil)

// GitFetcher materializes git-sourced packages with go-git.
type GitFetcher struct{}

// NewGitFetcher creates a new GitFetcher.
func NewGitFetcher() *GitFetcher {
	return &GitFetcher{}
}

// Clone clones url into dest at the declared ref and returns the resolved
// commit SHA. An existing dest is replaced so a retried build never sees a
// half-checked-out tree.
func (f *GitFetcher) Clone(ctx context.Context, url string, ref domain.GitRef, dest string) (string, error) {
	if err := os.RemoveAll(dest); err != nil {
		return "", zerr.Wrap(err, "failed to clear clone destination")
	}

	opts := &git.CloneOptions{URL: url}
	switch {
	case ref.Tag != "":
		opts.ReferenceName = plumbing.NewTagReferenceName(ref.Tag)
		opts.SingleBranch = true
		opts.Depth = 1
	case ref.Branch != "":
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref.Branch)
		opts.SingleBranch = true
		opts.Depth = 1
	}

	repo, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		return "", zerr.With(zerr.With(zerr.Wrap(err, "failed to clone repository"), "url", url), "ref", ref.String())
	}

	if ref.Rev != "" {
		wt, err := repo.Worktree()
		if err != nil {
			return "", zerr.Wrap(err, "failed to open worktree")
		}
		hash := plumbing.NewHash(ref.Rev)
		if err := wt.Checkout(&git.CheckoutOptions{Hash: hash}); err != nil {
			return "", zerr.With(zerr.Wrap(err, "failed to check out revision"), "rev", ref.Rev)
		}
		return hash.String(), nil
	}

	head, err := repo.Head()
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve HEAD")
	}
	return head.Hash().String(), nil
}
