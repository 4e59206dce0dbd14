package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates rel under root with size bytes of content.
func writeFile(t *testing.T, root, rel string, size int) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func relPaths(entries []ImageEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.RelativePath)
	}
	sort.Strings(out)
	return out
}

func TestScan_EmptyDirectory(t *testing.T) {
	entries, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestScan_NestedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/x.jpg", 10000)
	writeFile(t, root, "a/b/y.png", 20000)
	writeFile(t, root, "a/b/notes.txt", 10)
	writeFile(t, root, "top.WEBP", 5)
	writeFile(t, root, "c/d/e/scan.TiFf", 7)
	writeFile(t, root, "c/old.tif", 7) // .tif is not on the allow-list

	entries, err := Scan(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/b/y.png", "a/x.jpg", "c/d/e/scan.TiFf", "top.WEBP"}, relPaths(entries))

	for _, e := range entries {
		assert.True(t, IsSupported(e.Extension), e.Extension)
		assert.Equal(t, strings.ToLower(e.Extension), e.Extension)
		assert.Equal(t, filepath.Base(e.AbsolutePath), e.Name)
		assert.False(t, strings.Contains(e.RelativePath, ".."))
		assert.Equal(t, e.AbsolutePath, filepath.Join(root, filepath.FromSlash(e.RelativePath)))
	}
}

func TestScan_RecordsSizes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/x.jpg", 10000)
	writeFile(t, root, "a/b/y.png", 20000)

	entries, err := Scan(root)
	require.NoError(t, err)

	sizes := map[string]int64{}
	for _, e := range entries {
		sizes[e.RelativePath] = e.SizeBytes
	}
	assert.Equal(t, map[string]int64{"a/x.jpg": 10000, "a/b/y.png": 20000}, sizes)
}

func TestScan_RelativeRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.gif", 1)

	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, root)
	require.NoError(t, err)

	entries, err := Scan(rel)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, filepath.IsAbs(entries[0].AbsolutePath))
	assert.Equal(t, "x.gif", entries[0].RelativePath)
}

func TestScan_MissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := Scan(missing)
	var scanErr *ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, missing, scanErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestScan_RootIsFile(t *testing.T) {
	file := writeFile(t, t.TempDir(), "x.jpg", 1)

	_, err := Scan(file)
	var scanErr *ScanError
	assert.True(t, errors.As(err, &scanErr))
}

func TestScan_BrokenSymlinkAbortsScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ok.jpg", 1)
	link := filepath.Join(root, "sub", "gone.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(link), 0o755))
	if err := os.Symlink(filepath.Join(root, "missing.jpg"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	entries, err := Scan(root)
	assert.Nil(t, entries)
	var scanErr *ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, link, scanErr.Path)
}

func TestScan_SymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	writeFile(t, target, "a/x.jpg", 3)
	writeFile(t, target, "y.png", 5)
	link := filepath.Join(t.TempDir(), "photos")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	entries, err := Scan(link)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/x.jpg", "y.png"}, relPaths(entries))
	for _, e := range entries {
		assert.Equal(t, filepath.Join(link, filepath.FromSlash(e.RelativePath)), e.AbsolutePath)
		assert.Positive(t, e.SizeBytes)
	}
}

func TestScan_UnreadableDirectoryAbortsScan(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, root, "ok.jpg", 1)
	locked := filepath.Join(root, "locked")
	writeFile(t, root, "locked/x.jpg", 1)
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	_, err := Scan(root)
	var scanErr *ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, locked, scanErr.Path)
}

func TestIsSupported(t *testing.T) {
	for _, ext := range []string{".jpg", ".JPEG", ".Png", ".gif", ".webp", ".BMP", ".tiff"} {
		assert.True(t, IsSupported(ext), ext)
	}
	for _, ext := range []string{".tif", ".heic", ".txt", "", "jpg"} {
		assert.False(t, IsSupported(ext), ext)
	}
}
