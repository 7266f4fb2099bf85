// Package results writes the per-run artifact files: one transcript
// record and one analysis record, each as a timestamped JSON file.
// Artifacts from completed phases survive later pipeline failures.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pretext-labs/vish/internal/analyzer"
	"github.com/pretext-labs/vish/internal/session"
)

type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// SaveTranscript writes the finished call session and returns the path.
func (w *Writer) SaveTranscript(s *session.CallSession) (string, error) {
	return w.write("transcript", s)
}

// AnalysisRecord is the persisted analysis artifact. OTPMatch is the
// independently computed ground-truth check, stored alongside the
// model's own success flag rather than merged with it.
type AnalysisRecord struct {
	Analysis   *analyzer.AnalysisResult `json:"analysis"`
	ValidCodes []string                 `json:"valid_codes"`
	OTPMatch   bool                     `json:"otp_match"`
	Timestamp  time.Time                `json:"timestamp"`
}

// SaveAnalysis writes the analysis record and returns the path.
func (w *Writer) SaveAnalysis(result *analyzer.AnalysisResult, validCodes []string) (string, error) {
	return w.write("analysis", AnalysisRecord{
		Analysis:   result,
		ValidCodes: validCodes,
		OTPMatch:   analyzer.CheckMatch(result.ExtractedOTP, validCodes),
		Timestamp:  w.now().UTC(),
	})
}

func (w *Writer) write(kind string, record any) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s record: %w", kind, err)
	}

	name := fmt.Sprintf("%s_%s.json", kind, w.now().UTC().Format("20060102_150405"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s record: %w", kind, err)
	}
	return path, nil
}
