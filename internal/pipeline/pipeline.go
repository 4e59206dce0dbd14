// Package pipeline exposes the scan, compress and export operations as
// plain request/response values, independent of the transport carrying them.
package pipeline

import (
	"fmt"

	"photo-compressor-go/internal/compressor"
	"photo-compressor-go/internal/config"
	"photo-compressor-go/internal/logger"
	"photo-compressor-go/internal/scanner"
	"photo-compressor-go/internal/statistics"

	"github.com/sirupsen/logrus"
)

// ScanResult is the response to ScanDirectory.
type ScanResult struct {
	OK      bool                 `json:"ok"`
	Entries []scanner.ImageEntry `json:"entries"`
	Error   string               `json:"error,omitempty"`
}

// EntryInput is the subset of an ImageEntry a caller has to send back.
type EntryInput struct {
	AbsolutePath string `json:"absolute_path"`
	RelativePath string `json:"relative_path"`
	Name         string `json:"name,omitempty"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
	Extension    string `json:"extension,omitempty"`
}

// CompressBatchRequest is the input to CompressBatch. DateHandling and
// CustomDate are accepted and carried but do not affect output yet.
type CompressBatchRequest struct {
	Entries      []EntryInput `json:"entries"`
	Quality      int          `json:"quality"`
	OutputRoot   string       `json:"output_root"`
	DateHandling string       `json:"date_handling,omitempty"`
	CustomDate   string       `json:"custom_date,omitempty"`
}

// CompressBatchResult is the response to CompressBatch. OK is false only
// when the request itself is unusable; item failures live in Outcomes.
type CompressBatchResult struct {
	OK       bool                 `json:"ok"`
	Outcomes []compressor.Outcome `json:"outcomes"`
	Summary  statistics.Summary   `json:"summary"`
	Error    string               `json:"error,omitempty"`
}

// ExportResult is the response to ExportFailureReport. Path is empty when
// there was nothing to write.
type ExportResult struct {
	OK    bool   `json:"ok"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// Service wires the scanner, the batch runner and the reporter together.
type Service struct {
	runner *compressor.Runner
	log    *logrus.Logger
}

// NewService returns a Service compressing with codec. A nil log discards output.
func NewService(codec compressor.Codec, log *logrus.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		runner: compressor.NewRunner(codec, log),
		log:    log,
	}
}

// ScanDirectory builds the manifest for root.
func (s *Service) ScanDirectory(root string) ScanResult {
	entries, err := scanner.Scan(root)
	if err != nil {
		logger.WithRoot(s.log, root).Errorf("Scan failed: %v", err)
		return ScanResult{Error: err.Error()}
	}
	logger.WithRoot(s.log, root).WithField("entries", len(entries)).Info("Scan completed")
	return ScanResult{OK: true, Entries: entries}
}

// CompressBatch runs one batch. Progress counts go to sink as items finish.
func (s *Service) CompressBatch(req CompressBatchRequest, sink compressor.ProgressSink) CompressBatchResult {
	if err := ValidateRequest(req); err != nil {
		return CompressBatchResult{Error: err.Error()}
	}

	outcomes := s.runner.Run(BuildRequests(req), sink)
	return CompressBatchResult{
		OK:       true,
		Outcomes: outcomes,
		Summary:  statistics.Summarize(outcomes),
	}
}

// ExportFailureReport writes failedLines to the report file under outputRoot.
func (s *Service) ExportFailureReport(failedLines, outputRoot string) ExportResult {
	path, err := statistics.WriteFailureReport(failedLines, outputRoot)
	if err != nil {
		logger.WithRoot(s.log, outputRoot).Errorf("Failure report not written: %v", err)
		return ExportResult{Error: err.Error()}
	}
	return ExportResult{OK: true, Path: path}
}

// ValidateRequest rejects requests that cannot start a batch. Quality is not
// checked here; the runner clamps it per item.
func ValidateRequest(req CompressBatchRequest) error {
	if req.OutputRoot == "" {
		return fmt.Errorf("output root is required")
	}
	if req.DateHandling != "" {
		if err := config.ValidateDateHandling(req.DateHandling, req.CustomDate); err != nil {
			return err
		}
	}
	return nil
}

// BuildRequests turns the request entries into runner requests, keeping order.
func BuildRequests(req CompressBatchRequest) []compressor.Request {
	reqs := make([]compressor.Request, 0, len(req.Entries))
	for _, e := range req.Entries {
		reqs = append(reqs, compressor.Request{
			Entry: scanner.ImageEntry{
				AbsolutePath: e.AbsolutePath,
				RelativePath: e.RelativePath,
				Name:         e.Name,
				SizeBytes:    e.SizeBytes,
				Extension:    e.Extension,
			},
			Quality:    req.Quality,
			OutputRoot: req.OutputRoot,
		})
	}
	return reqs
}

// InputsFromEntries converts a manifest into request entries.
func InputsFromEntries(entries []scanner.ImageEntry) []EntryInput {
	inputs := make([]EntryInput, 0, len(entries))
	for _, e := range entries {
		inputs = append(inputs, EntryInput{
			AbsolutePath: e.AbsolutePath,
			RelativePath: e.RelativePath,
			Name:         e.Name,
			SizeBytes:    e.SizeBytes,
			Extension:    e.Extension,
		})
	}
	return inputs
}
