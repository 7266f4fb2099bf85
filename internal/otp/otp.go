// Package otp generates the bait one-time codes sent during a burst.
package otp

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

// Message records one dispatched code. The full ordered sequence of a
// burst is the run's valid code set.
type Message struct {
	Code       string    `json:"code"`
	SentAt     time.Time `json:"sent_at"`
	DeliveryID string    `json:"delivery_id"`
}

// Generate returns a random 6-digit numeric code. Codes are independent
// draws; collisions across a burst are allowed.
func Generate(r *rand.Rand) string {
	return fmt.Sprintf("%06d", 100000+r.IntN(900000))
}

// FormatBody renders a code into the SMS body used for delivery.
func FormatBody(code string) string {
	return fmt.Sprintf("Your security code is %s. Don't share it with anyone.", code)
}

// Codes extracts the code strings from a sent sequence, in send order.
func Codes(msgs []Message) []string {
	codes := make([]string, len(msgs))
	for i, m := range msgs {
		codes[i] = m.Code
	}
	return codes
}
