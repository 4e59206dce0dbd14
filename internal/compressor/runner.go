package compressor

import (
	"fmt"
	"path/filepath"
	"strings"

	"photo-compressor-go/internal/logger"
	"photo-compressor-go/internal/scanner"

	"github.com/sirupsen/logrus"
)

// Runner drives a batch of requests through materialization and the codec,
// one item at a time and in input order.
type Runner struct {
	codec Codec
	log   *logrus.Logger
}

// NewRunner returns a Runner using codec. A nil log discards output.
func NewRunner(codec Codec, log *logrus.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{codec: codec, log: log}
}

// Run processes every request and returns one Outcome per request, in the
// same order. Item failures are recorded, never returned, so Run always
// completes. sink, if non-nil, is called with 1..len(requests) after each item.
func (r *Runner) Run(requests []Request, sink ProgressSink) []Outcome {
	r.log.WithField("items", len(requests)).Info("Starting compression batch")

	outcomes := make([]Outcome, 0, len(requests))
	failed := 0
	for i, req := range requests {
		out := r.process(req)
		if !out.Succeeded {
			failed++
		}
		outcomes = append(outcomes, out)
		if sink != nil {
			sink.Report(i + 1)
		}
	}

	r.log.WithFields(logrus.Fields{
		"items":     len(requests),
		"succeeded": len(requests) - failed,
		"failed":    failed,
	}).Info("Compression batch completed")
	return outcomes
}

// process handles one request: materialize -> compress.
func (r *Runner) process(req Request) Outcome {
	src := req.Entry.AbsolutePath
	out := Outcome{
		SourcePath:   src,
		OriginalSize: req.Entry.SizeBytes,
	}

	dest, err := EnsureDestination(req.OutputRoot, relativePath(req.Entry))
	if err != nil {
		return r.fail(out, "materialize", err)
	}

	format := FormatForExtension(extension(req.Entry))
	quality := ClampQuality(req.Quality)
	if quality != req.Quality {
		logger.WithFile(r.log, src).Warnf("Quality %d out of range, using %d", req.Quality, quality)
	}

	file, err := r.compress(src, dest, format, quality)
	if err != nil {
		return r.fail(out, "compress", err)
	}

	out.DestinationPath = file.Path
	out.OriginalSize = file.OriginalSize
	out.CompressedSize = file.CompressedSize
	out.SavedPercentage = SavedPercentage(file.OriginalSize, file.CompressedSize)
	out.Succeeded = true
	out.Detail = fmt.Sprintf("compressed as %s, saved %.2f%%", format, out.SavedPercentage)

	logger.WithFileOperation(r.log, src, "compress").WithFields(logrus.Fields{
		"destination": file.Path,
		"saved":       out.SavedPercentage,
	}).Debug("Image compressed")
	return out
}

// compress calls the codec and turns a panic inside it into a
// CompressionError so that one bad decoder input cannot end the batch.
func (r *Runner) compress(src, dest string, format Format, quality int) (file CompressedFile, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &CompressionError{Path: src, Op: "codec", Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return r.codec.Compress(src, dest, format, quality)
}

func (r *Runner) fail(out Outcome, operation string, err error) Outcome {
	out.DestinationPath = ""
	out.CompressedSize = 0
	out.SavedPercentage = 0
	out.Succeeded = false
	out.Detail = err.Error()
	logger.WithFileOperation(r.log, out.SourcePath, operation).Warnf("Compression failed: %v", err)
	return out
}

// relativePath falls back to the file name when the caller sent only an
// absolute path.
func relativePath(e scanner.ImageEntry) string {
	if e.RelativePath != "" {
		return e.RelativePath
	}
	if e.Name != "" {
		return e.Name
	}
	return filepath.Base(e.AbsolutePath)
}

func extension(e scanner.ImageEntry) string {
	if e.Extension != "" {
		return strings.ToLower(e.Extension)
	}
	return strings.ToLower(filepath.Ext(e.AbsolutePath))
}
