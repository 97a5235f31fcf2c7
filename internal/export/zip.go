package export

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ZipFiles packs files (archive name -> path on disk) into zipPath.
// Entries are written in name order.
func ZipFiles(zipPath string, files map[string]string) error {
	if err := EnsureDir(filepath.Dir(zipPath)); err != nil {
		return err
	}
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer out.Close()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(out)
	for _, name := range names {
		if err := addFile(zw, name, files[name]); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func addFile(zw *zip.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func EnsureDir(dir string) error { return os.MkdirAll(dir, 0o755) }
