package extractor

import (
	"fmt"
	"image"
	"io"
	"os"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// EXIFInspector reads dimensions from the image header and the capture date
// from EXIF when the file carries any.
type EXIFInspector struct {
	logger *logrus.Logger
}

// NewEXIFInspector returns a new EXIFInspector.
func NewEXIFInspector(logger *logrus.Logger) *EXIFInspector {
	return &EXIFInspector{logger: logger}
}

// Inspect returns metadata for filePath. A file without EXIF is not an
// error; CapturedAt is simply nil.
func (e *EXIFInspector) Inspect(filePath string) (*Metadata, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	meta := &Metadata{
		Path:      filePath,
		Format:    format,
		Width:     cfg.Width,
		Height:    cfg.Height,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind file: %w", err)
	}
	if date, source, err := e.extractWithGoExif(file); err == nil {
		meta.CapturedAt = date
		meta.DateSource = source
	} else {
		e.logger.Debugf("No EXIF date for %s: %v", filePath, err)
	}

	return meta, nil
}

// extractWithGoExif tries DateTimeOriginal, DateTimeDigitized and DateTime in turn.
func (e *EXIFInspector) extractWithGoExif(file *os.File) (*time.Time, DateSource, error) {
	x, err := exif.Decode(file)
	if err != nil {
		return nil, DateSourceUnknown, fmt.Errorf("failed to decode EXIF: %w", err)
	}

	tags := []struct {
		name   exif.FieldName
		source DateSource
	}{
		{exif.DateTimeOriginal, DateSourceEXIFDateTimeOriginal},
		{exif.DateTimeDigitized, DateSourceEXIFDateTimeDigitized},
		{exif.DateTime, DateSourceEXIFDateTime},
	}
	for _, tag := range tags {
		field, err := x.Get(tag.name)
		if err != nil {
			continue
		}
		dateStr, err := field.StringVal()
		if err != nil {
			continue
		}
		if date := parseEXIFDateTime(dateStr); date != nil {
			return date, tag.source, nil
		}
	}

	return nil, DateSourceUnknown, fmt.Errorf("no valid date found in EXIF")
}

// parseEXIFDateTime parses an EXIF date time string. Returns nil if no
// known layout matches.
func parseEXIFDateTime(dateStr string) *time.Time {
	if dateStr == "" {
		return nil
	}

	formats := []string{
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02",
		"2006-01-02",
		time.RFC3339,
	}

	for _, format := range formats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return &date
		}
	}
	return nil
}
