package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pretext-labs/vish/internal/analyzer"
	"github.com/pretext-labs/vish/internal/config"
	"github.com/pretext-labs/vish/internal/llm"
	"github.com/pretext-labs/vish/internal/results"
	"github.com/pretext-labs/vish/internal/session"
)

func analyzeCmd() *cobra.Command {
	var transcriptPath, codes string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Re-score a saved transcript against a code set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel)

			if cfg.LLMAPIKey == "" {
				return fmt.Errorf("BLACKBOX_API_KEY is required")
			}

			data, err := os.ReadFile(transcriptPath)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			var sess session.CallSession
			if err := json.Unmarshal(data, &sess); err != nil {
				return fmt.Errorf("parse transcript record: %w", err)
			}
			if len(sess.Transcript) == 0 {
				return fmt.Errorf("transcript record %s is empty", transcriptPath)
			}

			validCodes := strings.Split(codes, ",")
			for i := range validCodes {
				validCodes[i] = strings.TrimSpace(validCodes[i])
			}

			reasoner := llm.NewClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTemperature, cfg.LLMMaxTokens, cfg.LLMTimeout)
			a := analyzer.New(reasoner, slog.Default())

			result, err := a.Analyze(cmd.Context(), sess.Transcript, validCodes)
			if err != nil {
				return err
			}

			path, err := results.NewWriter(cfg.ResultsDir).SaveAnalysis(result, validCodes)
			if err != nil {
				return err
			}
			status("Analysis saved: %s", path)
			printAnalysis(result, analyzer.CheckMatch(result.ExtractedOTP, validCodes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "path to a saved transcript record")
	cmd.Flags().StringVar(&codes, "codes", "", "comma-separated codes that were sent during the run")
	cmd.MarkFlagRequired("transcript")
	cmd.MarkFlagRequired("codes")

	return cmd
}
