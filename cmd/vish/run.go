package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pretext-labs/vish/internal/analyzer"
	"github.com/pretext-labs/vish/internal/burst"
	"github.com/pretext-labs/vish/internal/bus"
	"github.com/pretext-labs/vish/internal/config"
	"github.com/pretext-labs/vish/internal/livekit"
	"github.com/pretext-labs/vish/internal/llm"
	"github.com/pretext-labs/vish/internal/pipeline"
	"github.com/pretext-labs/vish/internal/results"
	"github.com/pretext-labs/vish/internal/store"
	"github.com/pretext-labs/vish/internal/twilio"
)

func runCmd() *cobra.Command {
	var phone, name string
	var manualEnd bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full engagement: SMS burst, pretext call, analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePhone(phone); err != nil {
				return err
			}

			cfg := config.Load()
			setupLogging(cfg.LogLevel)

			for _, req := range []struct{ key, val string }{
				{"TWILIO_ACCOUNT_SID", cfg.TwilioAccountSID},
				{"TWILIO_AUTH_TOKEN", cfg.TwilioAuthToken},
				{"TWILIO_SMS_PHONE_NUMBER", cfg.TwilioSMSPhone},
				{"LIVEKIT_URL", cfg.LiveKitURL},
				{"LIVEKIT_API_KEY", cfg.LiveKitAPIKey},
				{"LIVEKIT_API_SECRET", cfg.LiveKitAPISecret},
				{"SIP_TRUNK_ID", cfg.SIPTrunkID},
				{"BLACKBOX_API_KEY", cfg.LLMAPIKey},
			} {
				if req.val == "" {
					return fmt.Errorf("%s is required", req.key)
				}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			events, err := bus.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
			if err != nil {
				return fmt.Errorf("connect to nats: %w", err)
			}
			defer events.Close()

			sms := twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioSMSPhone, slog.Default())
			calls := livekit.NewClient(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.SIPTrunkID, cfg.AgentName, slog.Default())
			reasoner := llm.NewClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTemperature, cfg.LLMMaxTokens, cfg.LLMTimeout)

			runner := &pipeline.Runner{
				Burst:        burst.NewScheduler(sms, cfg.BurstWindow, slog.Default()),
				Calls:        calls,
				Events:       events,
				Analyzer:     analyzer.New(reasoner, slog.Default()),
				Artifacts:    results.NewWriter(cfg.ResultsDir),
				Logger:       slog.Default(),
				BurstCount:   cfg.BurstCount,
				PreCallDelay: cfg.PreCallDelay,
				OnSend: func(step, total int, code string) {
					status("SMS %d/%d sent (code: %s)", step, total, code)
				},
			}

			if cfg.DatabaseURL != "" {
				db, err := store.New(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("connect to database: %w", err)
				}
				defer db.Close()
				if err := db.Init(ctx); err != nil {
					return err
				}
				runner.Ledger = db
			}

			if manualEnd {
				status("Manual end mode: press Enter when the call has ended")
				runner.EndSignal = pipeline.ManualEndSignal(os.Stdin)
			} else {
				runner.EndSignal = pipeline.BusEndSignal(events)
			}

			status("Target: %s (%s)", name, phone)
			out, err := runner.Run(ctx, pipeline.Target{Name: name, Phone: phone})
			if out != nil {
				printOutcome(out)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&phone, "phone", "p", "", "target phone number in E.164 format")
	cmd.Flags().StringVarP(&name, "name", "n", "", "target's name")
	cmd.Flags().BoolVar(&manualEnd, "manual-end", false, "declare the call over by pressing Enter instead of waiting for the worker's ended event")
	cmd.MarkFlagRequired("phone")
	cmd.MarkFlagRequired("name")

	return cmd
}

func printOutcome(out *pipeline.Outcome) {
	if len(out.Codes) > 0 {
		status("Codes sent: %s", strings.Join(out.Codes, ", "))
	}
	if out.TranscriptPath != "" {
		status("Transcript saved: %s", out.TranscriptPath)
	}
	if out.AnalysisPath != "" {
		status("Analysis saved: %s", out.AnalysisPath)
	}
	if out.Analysis == nil {
		return
	}

	printAnalysis(out.Analysis, out.OTPMatch)
}

func printAnalysis(result *analyzer.AnalysisResult, otpMatch bool) {
	status("==============================")
	status("RESULTS")
	status("==============================")
	if result.Success {
		status("Attack success (model verdict): YES")
	} else {
		status("Attack success (model verdict): NO")
	}
	if result.ExtractedOTP != "" {
		validity := "INVALID"
		if otpMatch {
			validity = "VALID"
		}
		status("Extracted OTP: %s (%s)", result.ExtractedOTP, validity)
	} else {
		status("Extracted OTP: none")
	}
	status("Confidence: %s", result.Confidence)
	status("Reasoning: %s", result.Reasoning)
	status("Risk assessment: %s", result.RiskAssessment)
	for _, rec := range result.Recommendations {
		status("  - %s", rec)
	}
}
