// Package scanner builds the manifest of image files found under a root
// directory.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions is the fixed allow-list of image extensions, lower-cased.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff"}

var supported = func() map[string]struct{} {
	m := make(map[string]struct{}, len(SupportedExtensions))
	for _, ext := range SupportedExtensions {
		m[ext] = struct{}{}
	}
	return m
}()

// ImageEntry is one discovered file. Entries are never modified after a scan.
type ImageEntry struct {
	AbsolutePath string `json:"absolute_path"`
	RelativePath string `json:"relative_path"` // slash-separated, relative to the scan root
	Name         string `json:"name"`
	SizeBytes    int64  `json:"size_bytes"`
	Extension    string `json:"extension"` // lower-cased, with leading dot
}

// ScanError reports the path that made a scan fail. Any error aborts the
// whole scan; there is no partial manifest.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// IsSupported reports whether ext (any case, with leading dot) is on the allow-list.
func IsSupported(ext string) bool {
	_, ok := supported[strings.ToLower(ext)]
	return ok
}

// Scan walks root recursively and returns every allow-listed file beneath it.
// A symlinked root is resolved once and walked; below the root, symlinks are
// resolved with os.Stat and a link to a directory is not followed.
// AbsolutePath keeps the caller's spelling of root. Manifest order follows
// the walk and callers should not rely on it.
func Scan(root string) ([]ImageEntry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Path: root, Err: err}
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, &ScanError{Path: absRoot, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Path: absRoot, Err: fmt.Errorf("not a directory")}
	}

	// WalkDir does not descend into a root that is itself a symlink.
	walkRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, &ScanError{Path: absRoot, Err: err}
	}

	// callerPath re-spells a walked path under the root the caller passed in.
	callerPath := func(path string) string {
		if rel, err := filepath.Rel(walkRoot, path); err == nil {
			return filepath.Join(absRoot, rel)
		}
		return path
	}

	entries := make([]ImageEntry, 0)
	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &ScanError{Path: callerPath(path), Err: err}
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !IsSupported(ext) {
			return nil
		}

		fi, err := os.Stat(path)
		if err != nil {
			return &ScanError{Path: callerPath(path), Err: err}
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		rel, err := relativeTo(walkRoot, path)
		if err != nil {
			return &ScanError{Path: callerPath(path), Err: err}
		}

		entries = append(entries, ImageEntry{
			AbsolutePath: callerPath(path),
			RelativePath: rel,
			Name:         d.Name(),
			SizeBytes:    fi.Size(),
			Extension:    ext,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// relativeTo returns path relative to root with forward slashes, refusing
// anything that would climb out of root.
func relativeTo(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path escapes scan root")
	}
	return rel, nil
}
