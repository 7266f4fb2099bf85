// vish orchestrates voice-phishing awareness tests against consenting
// targets: an SMS burst of bait codes, an automated pretext call, and a
// scored transcript.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "vish",
		Short:         "Voice phishing awareness-test orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(smsCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// status prints a timestamped operator-facing line, distinct from the
// structured logs on stderr.
func status(format string, args ...any) {
	fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

func validatePhone(phone string) error {
	if !strings.HasPrefix(phone, "+") {
		return fmt.Errorf("phone number must be in E.164 format (e.g. +14155551234)")
	}
	return nil
}
