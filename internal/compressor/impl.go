package compressor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// pngBestCompressionMax is the highest quality that still asks the PNG
// encoder for its smallest output.
const pngBestCompressionMax = 50

// ImagingCodec is the default Codec. It decodes anything the image package
// knows (jpeg, png, gif, bmp, tiff, webp) and encodes JPEG, PNG or WEBP.
type ImagingCodec struct{}

// NewImagingCodec creates a new ImagingCodec instance.
func NewImagingCodec() *ImagingCodec {
	return &ImagingCodec{}
}

// Compress reads sourcePath fully, re-encodes it as format and writes the
// result to destinationPath through a temp file in the same directory, so
// the destination is either absent or complete.
func (c *ImagingCodec) Compress(sourcePath, destinationPath string, format Format, quality int) (CompressedFile, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return CompressedFile{}, &CompressionError{Path: sourcePath, Op: "read", Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return CompressedFile{}, &CompressionError{Path: sourcePath, Op: "decode", Err: err}
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, format, quality); err != nil {
		return CompressedFile{}, &CompressionError{Path: sourcePath, Op: "encode", Err: err}
	}

	if err := writeFileAtomic(destinationPath, buf.Bytes()); err != nil {
		return CompressedFile{}, &CompressionError{Path: sourcePath, Op: "write", Err: err}
	}

	return CompressedFile{
		Path:           destinationPath,
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(buf.Len()),
	}, nil
}

// encode writes img to w in the given format. PNG is lossless, so quality
// only picks the compression level.
func encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatPNG:
		level := png.DefaultCompression
		if quality <= pngBestCompressionMax {
			level = png.BestCompression
		}
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(level))
	case FormatWEBP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported format %d", int(format))
	}
}

// writeFileAtomic writes data next to dst and renames it into place.
func writeFileAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write tmp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close tmp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
