package htmlresults

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mowakeb/internal/util"
)

var ErrArchiveNotFound = errors.New("zip archive not found")

// extractZip unpacks zipPath into dst. Entries that would land outside dst
// are rejected.
func extractZip(zipPath, dst string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open zip %s: %w", zipPath, err)
	}
	defer zr.Close()

	if err := util.EnsureDir(dst); err != nil {
		return err
	}
	root, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dst, err)
	}

	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if !util.WithinDir(root, target) {
			return fmt.Errorf("zip entry %q escapes extraction dir", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := util.EnsureDir(target); err != nil {
				return err
			}
			continue
		}
		if err := util.EnsureDir(filepath.Dir(target)); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// htmlFiles lists *.html files under root recursively, sorted by path.
func htmlFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".html") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}
