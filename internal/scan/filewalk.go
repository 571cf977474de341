package scan

import (
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var exts = []string{".html", ".htm", ".js", ".jsx", ".mjs", ".cjs", ".zip", ".jar"}

// Source is a named input found by WalkDir. Open may be called once per
// scan.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// WalkDir lists the supported files under root in lexical order. Entries
// of zip and jar archives are listed as "archive:entry" and read into
// memory; plain files are opened lazily.
func WalkDir(root string) ([]Source, error) {
	var sources []Source
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matchExt(path) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".zip" || ext == ".jar" {
			entries, err := readArchive(path)
			if err != nil {
				return err
			}
			sources = append(sources, entries...)
			return nil
		}
		name := path
		sources = append(sources, Source{
			Name: name,
			Open: func() (io.ReadCloser, error) { return os.Open(name) },
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

func readArchive(path string) ([]Source, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out []Source
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !matchExt(zf.Name) || isArchive(zf.Name) {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(rc, MaxBodySize))
		rc.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, Source{
			Name: path + ":" + zf.Name,
			Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
		})
	}
	return out, nil
}

func matchExt(path string) bool { return hasExt(path, exts) }

func isArchive(path string) bool { return hasExt(path, []string{".zip", ".jar"}) }
