package compressor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDestination joins outputRoot with the slash-separated relativePath
// and creates every missing parent directory. Calling it again for the same
// or a sibling path is a no-op.
func EnsureDestination(outputRoot, relativePath string) (string, error) {
	if outputRoot == "" {
		return "", &OutputWriteError{Path: relativePath, Err: fmt.Errorf("output root is empty")}
	}

	rel := filepath.Clean(filepath.FromSlash(relativePath))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &OutputWriteError{Path: relativePath, Err: fmt.Errorf("invalid relative path")}
	}

	dest := filepath.Join(outputRoot, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", &OutputWriteError{Path: dest, Err: err}
	}
	return dest, nil
}
