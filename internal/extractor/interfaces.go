package extractor

import (
	"time"
)

// Inspector reads descriptive metadata from an image file without decoding
// its pixels.
type Inspector interface {
	Inspect(filePath string) (*Metadata, error)
}

// DateSource represents the EXIF tag the capture date came from.
type DateSource int

const (
	DateSourceUnknown DateSource = iota
	DateSourceEXIFDateTimeOriginal
	DateSourceEXIFDateTimeDigitized
	DateSourceEXIFDateTime
)

// Metadata describes one image file.
type Metadata struct {
	Path       string
	Format     string
	Width      int
	Height     int
	SizeBytes  int64
	ModTime    time.Time
	CapturedAt *time.Time
	DateSource DateSource
}

// String returns a human-readable description of the date source.
func (ds DateSource) String() string {
	switch ds {
	case DateSourceEXIFDateTimeOriginal:
		return "EXIF DateTimeOriginal"
	case DateSourceEXIFDateTimeDigitized:
		return "EXIF DateTimeDigitized"
	case DateSourceEXIFDateTime:
		return "EXIF DateTime"
	default:
		return "Unknown"
	}
}
