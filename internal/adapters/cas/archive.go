package cas

import (
	"archive/tar"
	"compress/gzip"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

func zeroTime() time.Time {
	return time.Unix(0, 0).UTC()
}

// packTree writes the tree rooted at dir as a gzip-compressed tar stream.
// Entries are emitted in sorted path order so identical trees produce
// identical archives.
func packTree(dir string, w io.Writer) error {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return zerr.Wrap(err, "failed to walk tree")
	}
	sort.Strings(paths)

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, path := range paths {
		if err := packEntry(tw, dir, path); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return zerr.Wrap(err, "failed to finish tar stream")
	}
	if err := gz.Close(); err != nil {
		return zerr.Wrap(err, "failed to finish gzip stream")
	}
	return nil
}

func packEntry(tw *tar.Writer, dir, path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return zerr.Wrap(err, "failed to stat entry")
	}

	link := ""
	if fi.Mode()&os.ModeSymlink != 0 {
		link, err = os.Readlink(path)
		if err != nil {
			return zerr.Wrap(err, "failed to read symlink")
		}
	}

	hdr, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return zerr.Wrap(err, "failed to build tar header")
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return zerr.Wrap(err, "failed to relativize path")
	}
	hdr.Name = filepath.ToSlash(rel)
	// Strip time and ownership so archive bytes depend on content only.
	hdr.ModTime = zeroTime()
	hdr.AccessTime = zeroTime()
	hdr.ChangeTime = zeroTime()
	hdr.Uid = 0
	hdr.Gid = 0
	hdr.Uname = ""
	hdr.Gname = ""

	if err := tw.WriteHeader(hdr); err != nil {
		return zerr.Wrap(err, "failed to write tar header")
	}
	if !fi.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path) //nolint:gosec // Path comes from walking the packed tree
	if err != nil {
		return zerr.Wrap(err, "failed to open entry")
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	if _, err := io.Copy(tw, f); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to copy entry content"), "path", path)
	}
	return nil
}

// unpackTree extracts a gzip-compressed tar stream into dest. Entries that
// would escape dest are rejected.
func unpackTree(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return zerr.Wrap(err, "failed to open gzip stream")
	}
	defer gz.Close() //nolint:errcheck // Best effort close in defer

	if err := os.MkdirAll(dest, dirPerm); err != nil {
		return zerr.Wrap(err, "failed to create destination")
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return zerr.Wrap(err, "failed to read tar stream")
		}
		if err := unpackEntry(tr, dest, hdr); err != nil {
			return err
		}
	}
}

func unpackEntry(tr *tar.Reader, dest string, hdr *tar.Header) error {
	target := filepath.Join(dest, filepath.FromSlash(hdr.Name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return zerr.With(zerr.New("archive entry escapes destination"), "entry", hdr.Name)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, iofs.FileMode(hdr.Mode)&0o777|0o700) //nolint:gosec // Mode comes from our own archives
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
			return zerr.Wrap(err, "failed to create parent directory")
		}
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
			return zerr.Wrap(err, "failed to create parent directory")
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, iofs.FileMode(hdr.Mode)&0o777) //nolint:gosec // Mode comes from our own archives
		if err != nil {
			return zerr.Wrap(err, "failed to create file")
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // Archives are locally produced
			_ = f.Close()
			return zerr.With(zerr.Wrap(err, "failed to extract file"), "entry", hdr.Name)
		}
		return f.Close()
	default:
		return zerr.With(zerr.New("unsupported archive entry type"), "entry", hdr.Name)
	}
}
