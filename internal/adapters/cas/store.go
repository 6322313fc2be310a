// Package cas implements the content-addressable build artifact cache.
package cas

import (
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ArtifactStore = (*Store)(nil)

const (
	objectsDir = "objects"
	metaSuffix = ".json"

	dirPerm = 0o750
)

// Store is a file-backed artifact store. Each fingerprint owns two files under
// objects/: the packed blob and a JSON metadata sidecar. Blobs are immutable
// once written; all writes go through temp+rename.
type Store struct {
	root   string
	remote *Remote
	logger ports.Logger

	mu sync.Mutex
}

// NewStore creates a store rooted at root. remote may be nil.
func NewStore(root string, remote *Remote, logger ports.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, objectsDir), dirPerm); err != nil {
		return nil, zerr.Wrap(err, "failed to create store directory")
	}
	return &Store{root: root, remote: remote, logger: logger}, nil
}

// Get returns the artifact metadata for a fingerprint, or (nil, nil) on a
// miss. On a local miss a configured remote is consulted and a remote hit is
// written through to the local store.
func (s *Store) Get(fp domain.Fingerprint) (*ports.Artifact, error) {
	meta, err := s.readMeta(fp)
	if err != nil || meta != nil {
		return meta, err
	}
	if s.remote == nil {
		return nil, nil
	}
	return s.pullRemote(fp)
}

// Put packs the installable tree at dir into a blob stored under fp. A put
// for an already-present key is dropped: the first writer wins.
func (s *Store) Put(fp domain.Fingerprint, dir string, meta ports.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.blobPath(fp)); err == nil {
		s.logger.Warn(fmt.Sprintf("artifact %s already stored, dropping duplicate put", fp))
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, objectsDir), ".blob-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp blob")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Cleanup of leftover temp file

	if err := packTree(dir, tmp); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, "failed to pack artifact"), "dir", dir)
	}
	stat, err := tmp.Stat()
	if err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "failed to stat temp blob")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to close temp blob")
	}

	meta.Fingerprint = fp
	meta.Size = stat.Size()
	if err := s.writeMeta(fp, meta); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.blobPath(fp)); err != nil {
		_ = os.Remove(s.metaPath(fp))
		return zerr.Wrap(err, "failed to commit blob")
	}
	return nil
}

// Restore unpacks the blob for fp into dest, replacing dest if it exists.
func (s *Store) Restore(fp domain.Fingerprint, dest string) error {
	f, err := os.Open(s.blobPath(fp)) //nolint:gosec // Path is store-internal
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open blob"), "fingerprint", string(fp))
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	if err := os.RemoveAll(dest); err != nil {
		return zerr.Wrap(err, "failed to clear restore destination")
	}
	if err := unpackTree(f, dest); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to unpack artifact"), "fingerprint", string(fp))
	}
	return nil
}

// Info summarizes the store contents.
func (s *Store) Info() (ports.StoreInfo, error) {
	var info ports.StoreInfo
	entries, err := os.ReadDir(filepath.Join(s.root, objectsDir))
	if err != nil {
		return info, zerr.Wrap(err, "failed to read store directory")
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), metaSuffix) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info.Objects++
		info.TotalBytes += fi.Size()
	}
	return info, nil
}

// Clean removes every stored object.
func (s *Store) Clean() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, objectsDir)
	if err := os.RemoveAll(dir); err != nil {
		return zerr.Wrap(err, "failed to remove store objects")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return zerr.Wrap(err, "failed to recreate store directory")
	}
	return nil
}

func (s *Store) pullRemote(fp domain.Fingerprint) (*ports.Artifact, error) {
	meta, err := s.remote.FetchMeta(fp)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("remote store lookup for %s failed: %v", fp, err))
		return nil, nil
	}
	if meta == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Join(s.root, objectsDir), ".blob-*")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create temp blob")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Cleanup of leftover temp file

	if err := s.remote.FetchBlob(fp, tmp); err != nil {
		_ = tmp.Close()
		s.logger.Warn(fmt.Sprintf("remote blob download for %s failed: %v", fp, err))
		return nil, nil
	}
	if err := tmp.Close(); err != nil {
		return nil, zerr.Wrap(err, "failed to close temp blob")
	}
	if err := s.writeMeta(fp, *meta); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), s.blobPath(fp)); err != nil {
		_ = os.Remove(s.metaPath(fp))
		return nil, zerr.Wrap(err, "failed to commit blob")
	}
	return meta, nil
}

func (s *Store) readMeta(fp domain.Fingerprint) (*ports.Artifact, error) {
	data, err := os.ReadFile(s.metaPath(fp)) //nolint:gosec // Path is store-internal
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, "failed to read artifact metadata")
	}
	var meta ports.Artifact
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, zerr.Wrap(err, "failed to unmarshal artifact metadata")
	}
	// The sidecar may exist without its blob after an interrupted write.
	if _, err := os.Stat(s.blobPath(fp)); err != nil {
		return nil, nil
	}
	return &meta, nil
}

func (s *Store) writeMeta(fp domain.Fingerprint, meta ports.Artifact) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal artifact metadata")
	}
	tmp, err := os.CreateTemp(filepath.Join(s.root, objectsDir), ".meta-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp metadata")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to write artifact metadata")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to close temp metadata")
	}
	return os.Rename(tmp.Name(), s.metaPath(fp))
}

func (s *Store) blobPath(fp domain.Fingerprint) string {
	return filepath.Join(s.root, objectsDir, string(fp))
}

func (s *Store) metaPath(fp domain.Fingerprint) string {
	return s.blobPath(fp) + metaSuffix
}
