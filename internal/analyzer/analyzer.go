// Package analyzer turns a finished call transcript into a structured
// verdict by asking the reasoning collaborator for a fixed-schema JSON
// judgment and cross-checking the extracted code against the codes that
// were actually sent.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/pretext-labs/vish/internal/session"
)

// Completer is the reasoning collaborator, called once per analysis.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Analyzer struct {
	llm    Completer
	logger *slog.Logger
}

func New(llm Completer, logger *slog.Logger) *Analyzer {
	return &Analyzer{llm: llm, logger: logger}
}

// Analyze scores one transcript against the valid code set. Transport
// failures come back as wrapped errors; malformed replies as *ParseError.
func (a *Analyzer) Analyze(ctx context.Context, transcript []session.TranscriptMessage, validCodes []string) (*AnalysisResult, error) {
	prompt := fmt.Sprintf(analysisPrompt, strings.Join(validCodes, ", "), FormatTranscript(transcript))

	a.logger.Info("analyzing transcript",
		"messages", len(transcript),
		"valid_codes", len(validCodes),
	)

	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm analysis: %w", err)
	}

	payload := extractPayload(raw)

	var result AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		a.logger.Error("failed to parse analysis reply", "error", err, "raw", raw)
		return nil, &ParseError{Reason: "invalid json", Err: err}
	}
	if result.Confidence == "" || result.Reasoning == "" {
		return nil, &ParseError{Reason: "missing required fields"}
	}

	a.logger.Info("analysis complete",
		"success", result.Success,
		"confidence", result.Confidence,
		"extracted_otp", result.ExtractedOTP != "",
	)

	return &result, nil
}

// FormatTranscript renders the transcript as one labeled text block.
func FormatTranscript(transcript []session.TranscriptMessage) string {
	lines := make([]string, len(transcript))
	for i, msg := range transcript {
		role := "IT SUPPORT (attacker)"
		if msg.Speaker == session.SpeakerTarget {
			role = "TARGET"
		}
		lines[i] = role + ": " + msg.Content
	}
	return strings.Join(lines, "\n")
}

// CheckMatch reports whether the extracted code is an exact member of
// the valid set. It is independent of the model's self-reported success
// flag; an empty extraction never matches.
func CheckMatch(extractedOTP string, validCodes []string) bool {
	if extractedOTP == "" {
		return false
	}
	return slices.Contains(validCodes, extractedOTP)
}
