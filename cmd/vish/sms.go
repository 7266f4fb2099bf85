package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pretext-labs/vish/internal/burst"
	"github.com/pretext-labs/vish/internal/config"
	"github.com/pretext-labs/vish/internal/otp"
	"github.com/pretext-labs/vish/internal/twilio"
)

func smsCmd() *cobra.Command {
	var phone string
	var count int

	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Send only the SMS burst, without placing a call",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePhone(phone); err != nil {
				return err
			}

			cfg := config.Load()
			setupLogging(cfg.LogLevel)

			if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioSMSPhone == "" {
				return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_SMS_PHONE_NUMBER are required")
			}
			if count < 1 {
				return fmt.Errorf("count must be at least 1")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			sms := twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioSMSPhone, slog.Default())
			scheduler := burst.NewScheduler(sms, cfg.BurstWindow, slog.Default())

			status("SMS-only mode")
			sent, err := scheduler.SendBurst(ctx, phone, count, func(step, total int, code string) {
				status("SMS %d/%d sent (code: %s)", step, total, code)
			})
			if len(sent) > 0 {
				status("Codes sent: %s", strings.Join(otp.Codes(sent), ", "))
			}
			if err != nil {
				return err
			}
			status("Done")
			return nil
		},
	}

	cmd.Flags().StringVarP(&phone, "phone", "p", "", "target phone number in E.164 format")
	cmd.Flags().IntVarP(&count, "count", "c", 5, "number of messages to send")
	cmd.MarkFlagRequired("phone")

	return cmd
}
