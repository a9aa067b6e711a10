package install

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/jamctl/pkg/types"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// extractArchive unpacks the archive at src into dest, choosing the format
// from the asset name.
func extractArchive(src, dest, assetName string) error {
	switch {
	case strings.HasSuffix(assetName, ".tar.gz"), strings.HasSuffix(assetName, ".tgz"):
		return extractTarGz(src, dest)
	case strings.HasSuffix(assetName, ".tar.zst"):
		return extractTarZst(src, dest)
	case strings.HasSuffix(assetName, ".zip"):
		return extractZip(src, dest)
	default:
		return fmt.Errorf("%w: unsupported archive format %q", types.ErrCorruptArtifact, assetName)
	}
}

func extractTarGz(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return types.IOError("failed to open archive", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: invalid gzip stream: %v", types.ErrCorruptArtifact, err)
	}
	defer gz.Close()

	return extractTar(gz, dest)
}

func extractTarZst(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return types.IOError("failed to open archive", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: invalid zstd stream: %v", types.ErrCorruptArtifact, err)
	}
	defer zr.Close()

	return extractTar(zr, dest)
}

func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: invalid tar stream: %v", types.ErrCorruptArtifact, err)
		}

		target, err := entryPath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return types.IOError("failed to create directory", err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLink(dest, target, hdr.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return types.IOError("failed to create directory", err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return types.IOError("failed to create symlink", err)
			}
		case tar.TypeLink:
			source, err := entryPath(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil {
				return types.IOError("failed to create hard link", err)
			}
		default:
			// Device nodes, fifos and the like have no place in a toolchain
		}
	}
}

func extractZip(src, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("%w: invalid zip archive: %v", types.ErrCorruptArtifact, err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		target, err := entryPath(dest, zf.Name)
		if err != nil {
			return err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return types.IOError("failed to create directory", err)
			}
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("%w: failed to read zip entry %s: %v", types.ErrCorruptArtifact, zf.Name, err)
		}
		mode := zf.Mode().Perm()
		if mode == 0 {
			mode = 0644
		}
		err = writeFile(target, rc, mode)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return types.IOError("failed to create directory", err)
	}
	// An earlier entry may have left a symlink here; replace it, never follow it
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return types.IOError("failed to replace symlink", err)
		}
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return types.IOError("failed to create file", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("%w: failed to extract %s: %v", types.ErrCorruptArtifact, filepath.Base(target), err)
	}
	if err := out.Close(); err != nil {
		return types.IOError("failed to close file", err)
	}
	return nil
}

// entryPath resolves an archive entry name under dest. Entries that escape
// dest, or that sit below a symlink created by an earlier entry, are rejected.
func entryPath(dest, name string) (string, error) {
	target, err := safeJoin(dest, name)
	if err != nil {
		return "", err
	}
	if err := checkParents(dest, target, name); err != nil {
		return "", err
	}
	return target, nil
}

// safeJoin resolves an archive entry name under dest, rejecting entries
// that would escape it.
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: absolute path in archive: %s", types.ErrCorruptArtifact, name)
	}
	target := filepath.Join(dest, name)
	if !within(dest, target) {
		return "", fmt.Errorf("%w: path escapes archive root: %s", types.ErrCorruptArtifact, name)
	}
	return target, nil
}

// checkParents walks the existing directories between dest and target and
// fails if any of them is a symlink.
func checkParents(dest, target, name string) error {
	rel, err := filepath.Rel(dest, filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("%w: path escapes archive root: %s", types.ErrCorruptArtifact, name)
	}
	if rel == "." {
		return nil
	}

	cur := dest
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return types.IOError("failed to inspect extracted path", err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: entry %s is below a symlink", types.ErrCorruptArtifact, name)
		}
	}
	return nil
}

// checkLink validates a symlink target component by component, so a link
// cannot reach outside dest by stepping through another link.
func checkLink(dest, target, linkname string) error {
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("%w: absolute symlink in archive: %s", types.ErrCorruptArtifact, linkname)
	}

	parts := strings.Split(filepath.ToSlash(linkname), "/")
	cur := filepath.Dir(target)
	for n, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			cur = filepath.Join(cur, part)
			last := n == len(parts)-1
			if info, err := os.Lstat(cur); err == nil && !last && info.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("%w: symlink %s resolves through another symlink", types.ErrCorruptArtifact, linkname)
			}
		}
		if !within(dest, cur) {
			return fmt.Errorf("%w: symlink escapes archive root: %s", types.ErrCorruptArtifact, linkname)
		}
	}
	return nil
}

func within(dest, path string) bool {
	rel, err := filepath.Rel(dest, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
