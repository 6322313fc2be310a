package cas

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

const indexName = "index.json"

// Export writes the whole store as a tar.gz archive: an index of artifact
// metadata followed by the object files.
func (s *Store) Export(dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.root, objectsDir))
	if err != nil {
		return zerr.Wrap(err, "failed to read store directory")
	}

	var index []ports.Artifact
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
		if strings.HasSuffix(e.Name(), metaSuffix) {
			continue
		}
		meta, err := s.readMeta(domain.Fingerprint(e.Name()))
		if err != nil || meta == nil {
			continue
		}
		index = append(index, *meta)
	}
	sort.Strings(names)
	sort.Slice(index, func(i, j int) bool { return index[i].Fingerprint < index[j].Fingerprint })

	out, err := os.Create(dest) //nolint:gosec // Destination chosen by the user
	if err != nil {
		return zerr.Wrap(err, "failed to create export archive")
	}
	defer out.Close() //nolint:errcheck // Best effort close in defer

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	if err := writeIndex(tw, index); err != nil {
		return err
	}
	for _, name := range names {
		if err := exportObject(tw, filepath.Join(s.root, objectsDir, name), name); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return zerr.Wrap(err, "failed to finish export tar stream")
	}
	if err := gz.Close(); err != nil {
		return zerr.Wrap(err, "failed to finish export gzip stream")
	}
	return out.Close()
}

// Import merges an exported archive into the store. Objects already present
// locally are kept as-is.
func (s *Store) Import(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(src) //nolint:gosec // Source chosen by the user
	if err != nil {
		return zerr.Wrap(err, "failed to open import archive")
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	gz, err := gzip.NewReader(f)
	if err != nil {
		return zerr.Wrap(err, "failed to open import gzip stream")
	}
	defer gz.Close() //nolint:errcheck // Best effort close in defer

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return zerr.Wrap(err, "failed to read import tar stream")
		}
		if err := s.importObject(tr, hdr); err != nil {
			return err
		}
	}
}

func (s *Store) importObject(tr *tar.Reader, hdr *tar.Header) error {
	name := filepath.FromSlash(hdr.Name)
	if hdr.Typeflag != tar.TypeReg || !strings.HasPrefix(name, objectsDir+string(os.PathSeparator)) {
		return nil
	}
	base := filepath.Base(name)
	if strings.Contains(base, string(os.PathSeparator)) || base == "." || base == ".." {
		return zerr.With(zerr.New("archive entry escapes destination"), "entry", hdr.Name)
	}

	target := filepath.Join(s.root, objectsDir, base)
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, objectsDir), ".import-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp object")
	}
	if _, err := io.Copy(tmp, tr); err != nil { //nolint:gosec // Archives are locally produced
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return zerr.With(zerr.Wrap(err, "failed to extract object"), "entry", hdr.Name)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to close temp object")
	}
	return os.Rename(tmp.Name(), target)
}

func writeIndex(tw *tar.Writer, index []ports.Artifact) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal export index")
	}
	hdr := &tar.Header{
		Name:     indexName,
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  zeroTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return zerr.Wrap(err, "failed to write index header")
	}
	if _, err := tw.Write(data); err != nil {
		return zerr.Wrap(err, "failed to write export index")
	}
	return nil
}

func exportObject(tw *tar.Writer, path, name string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return zerr.Wrap(err, "failed to stat object")
	}
	hdr := &tar.Header{
		Name:     objectsDir + "/" + name,
		Typeflag: tar.TypeReg,
		Mode:     int64(fi.Mode() & iofs.ModePerm),
		Size:     fi.Size(),
		ModTime:  zeroTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return zerr.Wrap(err, "failed to write object header")
	}

	f, err := os.Open(path) //nolint:gosec // Path is store-internal
	if err != nil {
		return zerr.Wrap(err, "failed to open object")
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	if _, err := io.Copy(tw, f); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to copy object"), "object", name)
	}
	return nil
}
