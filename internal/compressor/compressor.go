package compressor

import (
	"fmt"
	"math"
	"strings"

	"photo-compressor-go/internal/scanner"
)

// Format is the output encoding chosen for one item.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
	FormatWEBP
)

// String returns the lower-case name of the format.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatWEBP:
		return "webp"
	default:
		return "jpeg"
	}
}

// FormatForExtension maps a file extension to its output format. Anything
// without a native encoder (gif, bmp, tiff, unknown) is normalized to JPEG.
func FormatForExtension(ext string) Format {
	switch strings.ToLower(ext) {
	case ".png":
		return FormatPNG
	case ".webp":
		return FormatWEBP
	default:
		return FormatJPEG
	}
}

// Quality bounds accepted by the encoders.
const (
	MinQuality = 1
	MaxQuality = 100
)

// ClampQuality pins q into [MinQuality, MaxQuality].
func ClampQuality(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

// Request is one unit of work for the batch runner. Entry may carry only
// AbsolutePath, RelativePath and Extension.
type Request struct {
	Entry      scanner.ImageEntry
	Quality    int
	OutputRoot string
}

// Outcome describes the result of compressing a single file. Exactly one
// Outcome is produced per Request.
type Outcome struct {
	SourcePath      string  `json:"source_path"`
	DestinationPath string  `json:"destination_path"`
	OriginalSize    int64   `json:"original_size_bytes"`
	CompressedSize  int64   `json:"compressed_size_bytes"`
	SavedPercentage float64 `json:"saved_percentage"`
	Succeeded       bool    `json:"succeeded"`
	Detail          string  `json:"detail"`
}

// CompressedFile is what a Codec reports after a successful write.
type CompressedFile struct {
	Path           string
	OriginalSize   int64
	CompressedSize int64
}

// Codec compresses one source file into destinationPath.
type Codec interface {
	Compress(sourcePath, destinationPath string, format Format, quality int) (CompressedFile, error)
}

// ProgressSink receives the 1-based count of processed items.
type ProgressSink interface {
	Report(count int)
}

// ProgressFunc adapts a plain function to a ProgressSink.
type ProgressFunc func(count int)

// Report calls f(count).
func (f ProgressFunc) Report(count int) { f(count) }

// SavedPercentage returns (original-compressed)/original*100 rounded to two
// decimals, or 0 when original is not positive.
func SavedPercentage(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	pct := float64(original-compressed) * 100 / float64(original)
	return math.Round(pct*100) / 100
}

// OutputWriteError means the destination directory for an item could not be
// prepared.
type OutputWriteError struct {
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("prepare output %s: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error { return e.Err }

// CompressionError wraps a read, decode, encode or write failure for one item.
type CompressionError struct {
	Path string
	Op   string
	Err  error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("compress %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }
