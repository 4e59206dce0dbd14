package statistics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"photo-compressor-go/internal/compressor"
)

// FailureReportName is the file written at the output root when a batch has failures.
const FailureReportName = "failed_files.txt"

// Summary aggregates the outcomes of one batch. Byte totals only count
// successful items.
type Summary struct {
	TotalCount           int     `json:"total_count"`
	SuccessCount         int     `json:"success_count"`
	FailureCount         int     `json:"failure_count"`
	TotalOriginalBytes   int64   `json:"total_original_bytes"`
	TotalCompressedBytes int64   `json:"total_compressed_bytes"`
	SavedPercentage      float64 `json:"saved_percentage"`
}

// ExportError reports a failure to write the failure report. It never
// changes the outcomes it was built from.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failure report %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Summarize computes a Summary in a single pass over outcomes.
func Summarize(outcomes []compressor.Outcome) Summary {
	s := Summary{TotalCount: len(outcomes)}
	for _, o := range outcomes {
		if !o.Succeeded {
			s.FailureCount++
			continue
		}
		s.SuccessCount++
		s.TotalOriginalBytes += o.OriginalSize
		s.TotalCompressedBytes += o.CompressedSize
	}
	s.SavedPercentage = compressor.SavedPercentage(s.TotalOriginalBytes, s.TotalCompressedBytes)
	return s
}

// String returns a formatted summary for terminal output.
func (s Summary) String() string {
	return fmt.Sprintf(`Compression Summary:

Files:
		Total: %d
		Succeeded: %d
		Failed: %d

Size:
		Original: %s
		Compressed: %s
		Saved: %.2f%%`,
		s.TotalCount,
		s.SuccessCount,
		s.FailureCount,
		formatBytes(s.TotalOriginalBytes),
		formatBytes(s.TotalCompressedBytes),
		s.SavedPercentage)
}

// lineBreaks flattens values that end up inside a single report line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// FailureLines renders one report line per failed outcome, in batch order.
// Line breaks inside a path or detail are replaced with spaces.
func FailureLines(outcomes []compressor.Outcome) []string {
	var lines []string
	for _, o := range outcomes {
		if o.Succeeded {
			continue
		}
		detail := o.Detail
		if detail == "" {
			detail = "unknown error"
		}
		lines = append(lines, fmt.Sprintf("%s - error: %s",
			lineBreaks.Replace(o.SourcePath), lineBreaks.Replace(detail)))
	}
	return lines
}

// ExportFailures writes the failure report for outcomes under outputRoot and
// returns its path. It returns "" and no error when nothing failed.
func ExportFailures(outcomes []compressor.Outcome, outputRoot string) (string, error) {
	lines := FailureLines(outcomes)
	if len(lines) == 0 {
		return "", nil
	}
	return WriteFailureReport(strings.Join(lines, "\n"), outputRoot)
}

// WriteFailureReport writes an already rendered report body to
// outputRoot/failed_files.txt. An empty body writes nothing.
func WriteFailureReport(body, outputRoot string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}
	if outputRoot == "" {
		return "", &ExportError{Path: FailureReportName, Err: fmt.Errorf("output root is empty")}
	}

	path := filepath.Join(outputRoot, FailureReportName)
	if err := os.MkdirAll(outputRoot, 0755); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	return path, nil
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
