package compressor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"photo-compressor-go/internal/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCodec records its calls and fails or panics for chosen sources.
type fakeCodec struct {
	calls   []string
	quality []int
	fail    map[string]error
	panics  map[string]bool
}

func (f *fakeCodec) Compress(src, dst string, format Format, quality int) (CompressedFile, error) {
	f.calls = append(f.calls, src)
	f.quality = append(f.quality, quality)
	if f.panics[src] {
		panic("decoder blew up")
	}
	if err := f.fail[src]; err != nil {
		return CompressedFile{}, &CompressionError{Path: src, Op: "decode", Err: err}
	}
	return CompressedFile{Path: dst, OriginalSize: 1000, CompressedSize: 600}, nil
}

func requestsFor(outRoot string, rels ...string) []Request {
	reqs := make([]Request, 0, len(rels))
	for _, rel := range rels {
		reqs = append(reqs, Request{
			Entry: scanner.ImageEntry{
				AbsolutePath: "/src/" + rel,
				RelativePath: rel,
				Name:         filepath.Base(rel),
				Extension:    filepath.Ext(rel),
			},
			Quality:    70,
			OutputRoot: outRoot,
		})
	}
	return reqs
}

func TestRunner_OrderAndProgress(t *testing.T) {
	out := t.TempDir()
	codec := &fakeCodec{}
	reqs := requestsFor(out, "c.jpg", "a/b.png", "a.webp", "z/y/x.gif")

	var progress []int
	outcomes := NewRunner(codec, nil).Run(reqs, ProgressFunc(func(n int) {
		progress = append(progress, n)
	}))

	require.Len(t, outcomes, len(reqs))
	for i, o := range outcomes {
		assert.Equal(t, reqs[i].Entry.AbsolutePath, o.SourcePath)
		assert.True(t, o.Succeeded)
		assert.Equal(t, filepath.Join(out, filepath.FromSlash(reqs[i].Entry.RelativePath)), o.DestinationPath)
		assert.Equal(t, 40.0, o.SavedPercentage)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	assert.Equal(t, []string{"/src/c.jpg", "/src/a/b.png", "/src/a.webp", "/src/z/y/x.gif"}, codec.calls)
}

func TestRunner_FailureIsolation(t *testing.T) {
	out := t.TempDir()
	codec := &fakeCodec{
		fail:   map[string]error{"/src/bad.jpg": errors.New("corrupt")},
		panics: map[string]bool{"/src/boom.png": true},
	}
	reqs := requestsFor(out, "ok1.jpg", "bad.jpg", "boom.png", "ok2.png")

	var progress []int
	outcomes := NewRunner(codec, nil).Run(reqs, ProgressFunc(func(n int) { progress = append(progress, n) }))

	require.Len(t, outcomes, 4)
	assert.True(t, outcomes[0].Succeeded)
	assert.True(t, outcomes[3].Succeeded)

	for _, o := range []Outcome{outcomes[1], outcomes[2]} {
		assert.False(t, o.Succeeded)
		assert.Empty(t, o.DestinationPath)
		assert.Zero(t, o.CompressedSize)
		assert.Zero(t, o.SavedPercentage)
		assert.NotEmpty(t, o.Detail)
	}
	assert.Contains(t, outcomes[1].Detail, "corrupt")
	assert.Contains(t, outcomes[2].Detail, "panic")
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
}

func TestRunner_MaterializeFailureSkipsCodec(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "blocked"), []byte("x"), 0o644))
	codec := &fakeCodec{}
	reqs := requestsFor(out, "blocked/x.jpg", "fine.jpg")

	outcomes := NewRunner(codec, nil).Run(reqs, nil)

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Succeeded)
	assert.Contains(t, outcomes[0].Detail, "prepare output")
	assert.True(t, outcomes[1].Succeeded)
	assert.Equal(t, []string{"/src/fine.jpg"}, codec.calls)
}

func TestRunner_EscapingRelativePathFails(t *testing.T) {
	codec := &fakeCodec{}
	reqs := requestsFor(t.TempDir(), "../outside.jpg")

	outcomes := NewRunner(codec, nil).Run(reqs, nil)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Succeeded)
	assert.Empty(t, codec.calls)
}

func TestRunner_ClampsQuality(t *testing.T) {
	out := t.TempDir()
	codec := &fakeCodec{}
	reqs := requestsFor(out, "a.jpg", "b.jpg", "c.jpg")
	reqs[0].Quality = 0
	reqs[1].Quality = 150
	reqs[2].Quality = 42

	outcomes := NewRunner(codec, nil).Run(reqs, nil)
	for _, o := range outcomes {
		assert.True(t, o.Succeeded)
	}
	assert.Equal(t, []int{1, 100, 42}, codec.quality)
}

func TestRunner_EmptyBatch(t *testing.T) {
	called := false
	outcomes := NewRunner(&fakeCodec{}, nil).Run(nil, ProgressFunc(func(int) { called = true }))
	assert.Empty(t, outcomes)
	assert.False(t, called)
}

func TestRunner_MinimalEntry(t *testing.T) {
	out := t.TempDir()
	codec := &fakeCodec{}
	reqs := []Request{{
		Entry:      scanner.ImageEntry{AbsolutePath: "/src/deep/photo.PNG"},
		Quality:    60,
		OutputRoot: out,
	}}

	outcomes := NewRunner(codec, nil).Run(reqs, nil)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Succeeded)
	assert.Equal(t, filepath.Join(out, "photo.PNG"), outcomes[0].DestinationPath)
}

func TestRunner_RealCodecMirrorsTree(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeImage(t, in, "a/x.jpg")
	writeImage(t, in, "a/b/y.png")

	entries, err := scanner.Scan(in)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	reqs := make([]Request, 0, len(entries))
	for _, e := range entries {
		reqs = append(reqs, Request{Entry: e, Quality: 50, OutputRoot: out})
	}

	outcomes := NewRunner(NewImagingCodec(), nil).Run(reqs, nil)
	require.Len(t, outcomes, 2)
	for i, o := range outcomes {
		require.True(t, o.Succeeded, o.Detail)
		assert.Equal(t, filepath.Join(out, filepath.FromSlash(entries[i].RelativePath)), o.DestinationPath)
		assert.Equal(t, entries[i].SizeBytes, o.OriginalSize)
		assert.Equal(t, SavedPercentage(o.OriginalSize, o.CompressedSize), o.SavedPercentage)

		info, err := os.Stat(o.DestinationPath)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), o.CompressedSize)
	}
	assert.FileExists(t, filepath.Join(out, "a", "x.jpg"))
	assert.FileExists(t, filepath.Join(out, "a", "b", "y.png"))
}
