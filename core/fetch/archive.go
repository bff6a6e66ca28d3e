package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/CedarPress/core/errors"
)

// archiveReader wraps a tar.Reader with automatic decompression handling
// for the gz and xz streams resource publishers use.
type archiveReader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

func newArchiveReader(path string) (*archiveReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}

	var reader io.Reader = f
	var decompressor io.Closer

	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.NewParse("tar.xz", path, err)
		}
		reader = xzr
		decompressor = nil // xz reader doesn't need closing
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.NewParse("tar.gz", path, err)
		}
		reader = gzr
		decompressor = gzr
	default:
		f.Close()
		return nil, errors.Wrapf(errors.ErrFetch, "unsupported archive format: %s", path)
	}

	return &archiveReader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

func (r *archiveReader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// visitor is a callback for iterating archive entries. Return true to
// stop iteration.
type visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

func (r *archiveReader) iterate(fn visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.NewParse("tar", r.file.Name(), err)
		}

		stop, err := fn(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// Extract unpacks the archive at path into dest. Zip, tar.gz, and tar.xz
// archives are recognized by suffix.
func Extract(path, dest string) error {
	if strings.HasSuffix(path, ".zip") {
		return extractZip(path, dest)
	}
	return extractTar(path, dest)
}

func extractTar(path, dest string) error {
	r, err := newArchiveReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	return r.iterate(func(header *tar.Header, content io.Reader) (bool, error) {
		target, err := securePath(dest, header.Name)
		if err != nil {
			return false, err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return false, errors.NewIO("mkdir", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, content, header.FileInfo().Mode()); err != nil {
				return false, err
			}
		}
		// Symlinks and special entries are skipped
		return false, nil
	})
}

func extractZip(path, dest string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return errors.NewParse("zip", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		target, err := securePath(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.NewIO("mkdir", target, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return errors.NewParse("zip", f.Name, err)
		}
		err = writeEntry(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(target string, content io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.NewIO("mkdir", filepath.Dir(target), err)
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return errors.NewIO("create", target, err)
	}
	_, err = io.Copy(out, content)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.NewIO("write", target, err)
	}
	return nil
}

// securePath joins an archive entry name onto dest, rejecting entries
// that would escape it.
func securePath(dest, name string) (string, error) {
	clean := filepath.Clean(dest)
	target := filepath.Join(dest, filepath.FromSlash(name))
	if target != clean && !strings.HasPrefix(target, clean+string(os.PathSeparator)) {
		return "", errors.Wrapf(errors.ErrFetch, "archive entry escapes destination: %s", name)
	}
	return target, nil
}
