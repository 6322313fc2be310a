package ports

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
)

// ToolchainResolver turns a declared toolchain requirement into a concrete
// compiler environment descriptor. External toolchains are downloaded and
// extracted once per resolved URL, shared across packages.
type ToolchainResolver interface {
	Resolve(ctx context.Context, tc domain.Toolchain, target string) (*domain.Compiler, error)
}

// Fingerprinter computes build fingerprints. Identical inputs must always
// yield identical fingerprints; cache correctness depends on it.
type Fingerprinter interface {
	Fingerprint(in domain.FingerprintInput) domain.Fingerprint
}
