package preparer

import (
	"archive/tar"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
)

// Extract unpacks a tar archive, gzipped or not, into target. Entries
// that would land outside target are an error.
func Extract(r io.Reader, target string) error {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := pgzip.NewReader(br)
		if err != nil {
			return errors.Wrap(err, "reading gzip header")
		}
		defer gz.Close()
		src = gz
	}

	root := filepath.Clean(target)
	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading archive")
		}
		dest, err := within(root, hdr.Name)
		if err != nil {
			return err
		}
		if err := noLinkedParents(root, dest); err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, hdr.FileInfo().Mode().Perm()|0700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := removeSymlink(dest); err != nil {
				return err
			}
			if err := writeFile(dest, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return fmt.Errorf("symlink %s points outside the archive", hdr.Name)
			}
			if _, err := within(root, filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			if err := removeSymlink(dest); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return err
			}
		case tar.TypeLink:
			old, err := within(root, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := noLinkedParents(root, old); err != nil {
				return err
			}
			if err := removeSymlink(dest); err != nil {
				return err
			}
			if err := os.Link(old, dest); err != nil {
				return err
			}
		}
	}
}

func within(root, name string) (string, error) {
	dest := filepath.Join(root, name)
	if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes the target directory", name)
	}
	return dest, nil
}

// noLinkedParents refuses a path under root that goes through a
// symlink extracted earlier. Checking link targets as text is not
// enough: a link to ".." followed by a link to "../x" stays inside
// root on paper and lands in a sibling directory on disk.
func noLinkedParents(root, dest string) error {
	rel, err := filepath.Rel(root, filepath.Dir(dest))
	if err != nil || rel == "." {
		return err
	}
	dir := root
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		dir = filepath.Join(dir, part)
		fi, err := os.Lstat(dir)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("archive entry %q is beneath the symlink %q", strings.TrimPrefix(dest, root+string(os.PathSeparator)), part)
		}
	}
	return nil
}

// removeSymlink clears a symlink left at path by an earlier entry, so
// that writing path does not follow it.
func removeSymlink(path string) error {
	fi, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return os.Remove(path)
	}
	return nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
