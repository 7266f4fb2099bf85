package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pretext-labs/vish/internal/analyzer"
	"github.com/pretext-labs/vish/internal/burst"
	"github.com/pretext-labs/vish/internal/bus"
	"github.com/pretext-labs/vish/internal/otp"
	"github.com/pretext-labs/vish/internal/session"
	"github.com/pretext-labs/vish/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBurster struct {
	msgs []otp.Message
	err  error
}

func (f *fakeBurster) SendBurst(ctx context.Context, to string, count int, onSend burst.ProgressFunc) ([]otp.Message, error) {
	return f.msgs, f.err
}

type fakeOriginator struct {
	rooms []string
	err   error
}

func (f *fakeOriginator) Originate(ctx context.Context, room, phone, targetName, metadata string) error {
	if f.err != nil {
		return f.err
	}
	f.rooms = append(f.rooms, room)
	return nil
}

type fakeEvents struct {
	obs bus.CallObserver
}

func (f *fakeEvents) SubscribeCallEvents(room string, obs bus.CallObserver) error {
	f.obs = obs
	return nil
}

func (f *fakeEvents) SubscribeCallEnded(room string, fn func(bus.CallEndedEvent)) error {
	return nil
}

type fakeAnalyzer struct {
	result *analyzer.AnalysisResult
	err    error
	got    []session.TranscriptMessage
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, transcript []session.TranscriptMessage, validCodes []string) (*analyzer.AnalysisResult, error) {
	f.got = transcript
	return f.result, f.err
}

type fakeArtifacts struct {
	transcripts int
	analyses    int
}

func (f *fakeArtifacts) SaveTranscript(s *session.CallSession) (string, error) {
	f.transcripts++
	return fmt.Sprintf("results/transcript_%d.json", f.transcripts), nil
}

func (f *fakeArtifacts) SaveAnalysis(result *analyzer.AnalysisResult, validCodes []string) (string, error) {
	f.analyses++
	return fmt.Sprintf("results/analysis_%d.json", f.analyses), nil
}

type fakeLedger struct {
	runs []store.Run
}

func (f *fakeLedger) InsertRun(ctx context.Context, run store.Run) (uuid.UUID, error) {
	f.runs = append(f.runs, run)
	return uuid.New(), nil
}

// scriptedEnd feeds call events while the pipeline waits for the call
// to finish, then declares it over.
type scriptedEnd struct {
	script func()
}

func (s *scriptedEnd) Wait(ctx context.Context) error {
	if s.script != nil {
		s.script()
	}
	return nil
}

func sentMessages(codes ...string) []otp.Message {
	msgs := make([]otp.Message, len(codes))
	for i, c := range codes {
		msgs[i] = otp.Message{Code: c, SentAt: time.Now().UTC(), DeliveryID: fmt.Sprintf("SM%d", i)}
	}
	return msgs
}

func newTestRunner(b Burster, events *fakeEvents, script func()) *Runner {
	return &Runner{
		Burst:     b,
		Calls:     &fakeOriginator{},
		Events:    events,
		Artifacts: &fakeArtifacts{},
		Logger:    discardLogger(),
		EndSignal: func(room string) (EndSignal, error) {
			return &scriptedEnd{script: script}, nil
		},
		BurstCount: 2,
		sleep: func(ctx context.Context, d time.Duration) error {
			return nil
		},
		newRoom: func() string { return "vish-test1234" },
	}
}

func TestRun_FullPipeline(t *testing.T) {
	events := &fakeEvents{}
	r := newTestRunner(&fakeBurster{msgs: sentMessages("482913", "117205")}, events, func() {
		events.obs.OnAgentUtterance("assistant", []string{"Can you read me the 6-digit code?"})
		events.obs.OnTranscription("ok it's 48", false)
		events.obs.OnTranscription("ok it's 482913", true)
	})
	an := &fakeAnalyzer{result: &analyzer.AnalysisResult{
		Success:      true,
		ExtractedOTP: "482913",
		Confidence:   "high",
		Reasoning:    "target disclosed the code",
	}}
	r.Analyzer = an
	ledger := &fakeLedger{}
	r.Ledger = ledger

	out, err := r.Run(context.Background(), Target{Name: "Dana", Phone: "+14155551234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.Codes) != 2 || out.Codes[0] != "482913" {
		t.Errorf("unexpected codes %v", out.Codes)
	}
	if len(out.Session.Transcript) != 2 {
		t.Fatalf("expected 2 transcript messages (partial dropped), got %d", len(out.Session.Transcript))
	}
	if out.Session.Transcript[0].Speaker != session.SpeakerAgent {
		t.Errorf("arrival order not preserved: %+v", out.Session.Transcript)
	}
	if !out.OTPMatch {
		t.Error("expected otp match for valid extracted code")
	}
	if out.TranscriptPath == "" || out.AnalysisPath == "" {
		t.Errorf("expected artifact paths, got %q / %q", out.TranscriptPath, out.AnalysisPath)
	}
	if len(an.got) != 2 {
		t.Errorf("analyzer received %d messages", len(an.got))
	}

	if len(ledger.runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(ledger.runs))
	}
	run := ledger.runs[0]
	if run.Room != "vish-test1234" || run.CodesSent != 2 {
		t.Errorf("unexpected run row %+v", run)
	}
	if run.Success == nil || !*run.Success || run.OTPMatch == nil || !*run.OTPMatch {
		t.Errorf("expected both verdict signals recorded, got %+v", run)
	}
	if run.CallStarted == nil || run.CallEnded == nil {
		t.Error("expected call timestamps recorded")
	}
}

func TestRun_ModelClaimsInvalidCode(t *testing.T) {
	events := &fakeEvents{}
	r := newTestRunner(&fakeBurster{msgs: sentMessages("482913")}, events, func() {
		events.obs.OnTranscription("the code is 999999", true)
	})
	// The model believes it succeeded, but the code was never sent: the
	// two signals must disagree rather than be collapsed.
	r.Analyzer = &fakeAnalyzer{result: &analyzer.AnalysisResult{
		Success:      true,
		ExtractedOTP: "999999",
		Confidence:   "medium",
		Reasoning:    "target read a number",
	}}

	out, err := r.Run(context.Background(), Target{Name: "Dana", Phone: "+14155551234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Analysis.Success {
		t.Error("model-reported success must be preserved")
	}
	if out.OTPMatch {
		t.Error("otp match must be false for an unsent code")
	}
}

func TestRun_BurstFailureAbortsPipeline(t *testing.T) {
	events := &fakeEvents{}
	orig := &fakeOriginator{}
	r := newTestRunner(&fakeBurster{msgs: sentMessages("482913"), err: errors.New("rate limited")}, events, nil)
	r.Calls = orig

	out, err := r.Run(context.Background(), Target{Name: "Dana", Phone: "+14155551234"})
	if err == nil {
		t.Fatal("expected error from failing burst")
	}
	// Codes already sent stay inspectable.
	if len(out.Codes) != 1 {
		t.Errorf("expected partial codes returned, got %v", out.Codes)
	}
	if len(orig.rooms) != 0 {
		t.Error("call must not be originated after a burst failure")
	}
}

func TestRun_OriginationFailureSkipsAnalysis(t *testing.T) {
	events := &fakeEvents{}
	an := &fakeAnalyzer{}
	r := newTestRunner(&fakeBurster{msgs: sentMessages("482913")}, events, nil)
	r.Calls = &fakeOriginator{err: errors.New("no sip trunk")}
	r.Analyzer = an

	out, err := r.Run(context.Background(), Target{Name: "Dana", Phone: "+14155551234"})
	if err == nil {
		t.Fatal("expected error from failing origination")
	}
	if !strings.Contains(err.Error(), "call origination") {
		t.Errorf("unexpected error %v", err)
	}
	if an.got != nil {
		t.Error("analysis must be skipped after origination failure")
	}
	if out.Session == nil {
		t.Fatal("expected session in outcome")
	}
}

func TestRun_EmptyTranscriptSkipsAnalysis(t *testing.T) {
	events := &fakeEvents{}
	an := &fakeAnalyzer{}
	artifacts := &fakeArtifacts{}
	ledger := &fakeLedger{}
	r := newTestRunner(&fakeBurster{msgs: sentMessages("482913")}, events, nil)
	r.Analyzer = an
	r.Artifacts = artifacts
	r.Ledger = ledger

	out, err := r.Run(context.Background(), Target{Name: "Dana", Phone: "+14155551234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if an.got != nil {
		t.Error("analysis must be skipped for an empty transcript")
	}
	if out.Analysis != nil {
		t.Error("expected no analysis in outcome")
	}
	if artifacts.transcripts != 0 {
		t.Error("no transcript artifact expected for an empty transcript")
	}
	// The run is still recorded for the history API.
	if len(ledger.runs) != 1 {
		t.Errorf("expected run recorded, got %d", len(ledger.runs))
	}
}

func TestRun_AnalysisFailureKeepsArtifacts(t *testing.T) {
	events := &fakeEvents{}
	artifacts := &fakeArtifacts{}
	r := newTestRunner(&fakeBurster{msgs: sentMessages("482913")}, events, func() {
		events.obs.OnTranscription("hello?", true)
	})
	r.Analyzer = &fakeAnalyzer{err: &analyzer.ParseError{Reason: "invalid json"}}
	r.Artifacts = artifacts

	out, err := r.Run(context.Background(), Target{Name: "Dana", Phone: "+14155551234"})
	if err == nil {
		t.Fatal("expected error from failing analysis")
	}
	if artifacts.transcripts != 1 {
		t.Error("transcript artifact must survive the analysis failure")
	}
	if out.TranscriptPath == "" {
		t.Error("expected transcript path in outcome")
	}
}

func TestDispatchMetadata(t *testing.T) {
	meta, err := dispatchMetadata(Target{Name: "Dana", Phone: "+14155551234"}, "vish-ab12cd34")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		`"target_name":"Dana"`,
		`"target_phone":"+14155551234"`,
		"vish.call.vish-ab12cd34.transcription",
		"vish.call.vish-ab12cd34.ended",
		"Target name: Dana",
	} {
		if !strings.Contains(meta, want) {
			t.Errorf("metadata missing %q:\n%s", want, meta)
		}
	}
}
