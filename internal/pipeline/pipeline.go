// Package pipeline runs one full engagement against a single consenting
// test target: the code burst, the voice call, and the transcript
// analysis, in that order. Each phase either completes or aborts the
// rest of the run; artifacts from completed phases are kept either way.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pretext-labs/vish/internal/analyzer"
	"github.com/pretext-labs/vish/internal/burst"
	"github.com/pretext-labs/vish/internal/bus"
	"github.com/pretext-labs/vish/internal/otp"
	"github.com/pretext-labs/vish/internal/session"
	"github.com/pretext-labs/vish/internal/store"
)

// Target identifies the person being tested.
type Target struct {
	Name  string
	Phone string
}

// Burster is the message-burst phase.
type Burster interface {
	SendBurst(ctx context.Context, to string, count int, onSend burst.ProgressFunc) ([]otp.Message, error)
}

// CallOriginator provisions the outbound call.
type CallOriginator interface {
	Originate(ctx context.Context, room, phone, targetName, metadata string) error
}

// EventSource delivers the live-call event streams for a room.
type EventSource interface {
	SubscribeCallEvents(room string, obs bus.CallObserver) error
	SubscribeCallEnded(room string, fn func(bus.CallEndedEvent)) error
}

// TranscriptAnalyzer is the post-call scoring phase.
type TranscriptAnalyzer interface {
	Analyze(ctx context.Context, transcript []session.TranscriptMessage, validCodes []string) (*analyzer.AnalysisResult, error)
}

// ArtifactWriter persists the per-run records.
type ArtifactWriter interface {
	SaveTranscript(s *session.CallSession) (string, error)
	SaveAnalysis(result *analyzer.AnalysisResult, validCodes []string) (string, error)
}

// RunRecorder is the optional run ledger.
type RunRecorder interface {
	InsertRun(ctx context.Context, run store.Run) (uuid.UUID, error)
}

// EndSignal resolves when the call should be considered over. There is
// no automated end-of-call detection; the signal is injected, either
// the worker's ended event or a manual operator acknowledgment.
type EndSignal interface {
	Wait(ctx context.Context) error
}

// Outcome carries whatever the run produced, including partial results
// when a later phase failed.
type Outcome struct {
	Codes          []string
	Session        *session.CallSession
	Analysis       *analyzer.AnalysisResult
	OTPMatch       bool
	TranscriptPath string
	AnalysisPath   string
}

type Runner struct {
	Burst     Burster
	Calls     CallOriginator
	Events    EventSource
	Analyzer  TranscriptAnalyzer
	Artifacts ArtifactWriter
	Ledger    RunRecorder // nil when no database is configured
	EndSignal func(room string) (EndSignal, error)
	Logger    *slog.Logger

	BurstCount   int
	PreCallDelay time.Duration
	OnSend       burst.ProgressFunc

	// overridden in tests
	sleep   func(ctx context.Context, d time.Duration) error
	newRoom func() string
}

// Run executes the full pipeline. The returned Outcome is non-nil even
// on error so codes already sent and partial transcripts stay
// inspectable.
func (r *Runner) Run(ctx context.Context, target Target) (*Outcome, error) {
	out := &Outcome{}

	// Phase 1: message burst.
	sent, err := r.Burst.SendBurst(ctx, target.Phone, r.BurstCount, r.OnSend)
	out.Codes = otp.Codes(sent)
	if err != nil {
		return out, fmt.Errorf("burst phase: %w", err)
	}
	r.Logger.Info("burst complete", "codes_sent", len(out.Codes))

	if r.PreCallDelay > 0 {
		r.Logger.Info("waiting before call", "delay", r.PreCallDelay)
		if err := r.sleepFn()(ctx, r.PreCallDelay); err != nil {
			return out, fmt.Errorf("pre-call pause: %w", err)
		}
	}

	// Phase 2: voice call.
	room := r.roomFn()()
	sess := session.New(target.Name, target.Phone, room)
	out.Session = sess
	rec := session.NewRecorder(sess, r.Logger)

	if err := r.Events.SubscribeCallEvents(room, rec); err != nil {
		return out, fmt.Errorf("subscribe call events: %w", err)
	}
	end, err := r.EndSignal(room)
	if err != nil {
		return out, fmt.Errorf("wire end signal: %w", err)
	}

	rec.Originating()
	metadata, err := dispatchMetadata(target, room)
	if err != nil {
		return out, fmt.Errorf("build dispatch metadata: %w", err)
	}
	if err := r.Calls.Originate(ctx, room, target.Phone, target.Name, metadata); err != nil {
		rec.End()
		return out, fmt.Errorf("call origination: %w", err)
	}
	rec.Start()
	r.Logger.Info("call in progress", "room", room)

	if err := end.Wait(ctx); err != nil {
		rec.End()
		r.saveTranscript(out)
		return out, fmt.Errorf("wait for call end: %w", err)
	}
	rec.End()

	r.saveTranscript(out)

	// Phase 3: analysis. An empty transcript is not worth a model call.
	if len(sess.Transcript) == 0 {
		r.Logger.Warn("no transcript captured, skipping analysis")
		r.recordRun(ctx, out)
		return out, nil
	}

	result, err := r.Analyzer.Analyze(ctx, sess.Transcript, out.Codes)
	if err != nil {
		r.recordRun(ctx, out)
		return out, fmt.Errorf("analysis phase: %w", err)
	}
	out.Analysis = result
	out.OTPMatch = analyzer.CheckMatch(result.ExtractedOTP, out.Codes)

	if path, err := r.Artifacts.SaveAnalysis(result, out.Codes); err != nil {
		r.Logger.Error("failed to save analysis", "error", err)
	} else {
		out.AnalysisPath = path
	}

	r.recordRun(ctx, out)
	return out, nil
}

func (r *Runner) saveTranscript(out *Outcome) {
	if out.Session == nil || len(out.Session.Transcript) == 0 {
		return
	}
	path, err := r.Artifacts.SaveTranscript(out.Session)
	if err != nil {
		r.Logger.Error("failed to save transcript", "error", err)
		return
	}
	out.TranscriptPath = path
}

func (r *Runner) recordRun(ctx context.Context, out *Outcome) {
	if r.Ledger == nil || out.Session == nil {
		return
	}

	run := store.Run{
		TargetName:  out.Session.TargetName,
		TargetPhone: out.Session.TargetPhone,
		Room:        out.Session.Room,
		CodesSent:   len(out.Codes),
	}
	if !out.Session.CallStarted.IsZero() {
		started := out.Session.CallStarted
		run.CallStarted = &started
	}
	if !out.Session.CallEnded.IsZero() {
		ended := out.Session.CallEnded
		run.CallEnded = &ended
	}
	if data, err := json.Marshal(out.Session.Transcript); err == nil {
		run.Transcript = data
	}
	if out.Analysis != nil {
		success := out.Analysis.Success
		match := out.OTPMatch
		run.Success = &success
		run.OTPMatch = &match
		run.ExtractedOTP = out.Analysis.ExtractedOTP
		run.Confidence = out.Analysis.Confidence
		if data, err := json.Marshal(out.Analysis); err == nil {
			run.Analysis = data
		}
	}

	id, err := r.Ledger.InsertRun(ctx, run)
	if err != nil {
		r.Logger.Error("failed to record run", "error", err)
		return
	}
	r.Logger.Info("run recorded", "id", id)
}

func (r *Runner) sleepFn() func(context.Context, time.Duration) error {
	if r.sleep != nil {
		return r.sleep
	}
	return func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

func (r *Runner) roomFn() func() string {
	if r.newRoom != nil {
		return r.newRoom
	}
	return func() string {
		u := uuid.New()
		return fmt.Sprintf("vish-%x", u[:4])
	}
}
