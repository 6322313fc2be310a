// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/forge/internal/core/domain"

// PackageUniverse is the resolver's view of all available packages, supplied
// by a registry or local-package collaborator. Implementations are free to
// cache; the resolver performs no I/O of its own.
type PackageUniverse interface {
	// Versions returns every available spec for a package name, unordered.
	// An unknown name returns an empty slice, not an error; the resolver
	// turns that into ErrUnknownPackage with the requiring package attached.
	Versions(name string) ([]*domain.PackageSpec, error)
}
