package analyzer

import "fmt"

// AnalysisResult is the structured verdict for one transcript.
//
// Success is the model's own judgment of whether the target disclosed a
// code. ExtractedOTP is the literal code the model claims was spoken
// ("" when none); it is not guaranteed to belong to the valid set.
// Whether it actually matches a sent code is a separate fact computed
// by CheckMatch; the two signals are never collapsed.
type AnalysisResult struct {
	Success         bool     `json:"success"`
	ExtractedOTP    string   `json:"extracted_otp"`
	Confidence      string   `json:"confidence"` // high | medium | low
	Reasoning       string   `json:"reasoning"`
	RiskAssessment  string   `json:"risk_assessment"`
	Recommendations []string `json:"recommendations"`
}

// ParseError reports a reply that was not valid JSON, or was missing
// required fields, after fence-stripping. Callers use it to tell a bad
// model reply apart from a transport failure.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse analysis: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse analysis: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
