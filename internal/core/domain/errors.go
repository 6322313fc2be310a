package domain

import "go.trai.ch/zerr"

var (
	// ErrInvalidSource is returned when a package declares zero or more than one source type.
	ErrInvalidSource = zerr.New("package must declare exactly one source type")

	// ErrMissingField is returned when a required manifest or package field is absent.
	ErrMissingField = zerr.New("missing required field")

	// ErrInvalidOption is returned when an option definition or value is malformed.
	ErrInvalidOption = zerr.New("invalid option")

	// ErrUnknownOption is returned when an override names an option the package does not declare.
	ErrUnknownOption = zerr.New("unknown option")

	// ErrUnknownPackage is returned when a dependency references a name absent from the universe.
	ErrUnknownPackage = zerr.New("unknown package")

	// ErrVersionConflict is returned when merged constraints for a package have an empty intersection.
	ErrVersionConflict = zerr.New("version conflict")

	// ErrCycleDetected is returned when the dependency graph contains a cycle.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrDuplicateNode is returned when the same package is added to a graph twice.
	ErrDuplicateNode = zerr.New("package already in graph")

	// ErrChecksumMismatch is returned when downloaded content does not match its expected digest.
	ErrChecksumMismatch = zerr.New("checksum mismatch")

	// ErrDownloadFailed is returned after all download attempts for an artifact are exhausted.
	ErrDownloadFailed = zerr.New("download failed")

	// ErrUnsupportedTarget is returned when no external toolchain is known for a target triple.
	ErrUnsupportedTarget = zerr.New("unsupported target triple")

	// ErrToolchainUnavailable is returned when the auto toolchain provider has no build
	// for the current host platform.
	ErrToolchainUnavailable = zerr.New("no toolchain build for host platform")

	// ErrNoURLForHost is returned when an explicit toolchain map has no entry for the host.
	ErrNoURLForHost = zerr.New("no toolchain URL for host platform")

	// ErrBuildStepFailed is returned when a build or install step exits non-zero.
	ErrBuildStepFailed = zerr.New("build step failed")

	// ErrBlockedByDependency marks a package that was never scheduled because a
	// transitive build-time dependency failed.
	ErrBlockedByDependency = zerr.New("blocked by dependency failure")

	// ErrLockMismatch is returned in locked mode when the resolution diverges from the lock file.
	ErrLockMismatch = zerr.New("lock file mismatch")

	// ErrLockMissing is returned when locked mode is requested but no lock file exists.
	ErrLockMissing = zerr.New("lock file not found")

	// ErrCacheUnavailable is returned when the artifact store cannot be read or written.
	// Callers treat it as a cache miss, never as a build failure.
	ErrCacheUnavailable = zerr.New("artifact store unavailable")

	// ErrInvalidLocator is returned when a source locator string cannot be parsed.
	ErrInvalidLocator = zerr.New("invalid source locator")
)
