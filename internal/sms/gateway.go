// Package sms dispatches OTP messages through an SMS gateway.
package sms

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Gateway sends one text message to one recipient
type Gateway interface {
	Send(ctx context.Context, to, body string) error
}

// RenderOTPMessage builds the verification SMS body
func RenderOTPMessage(appName, code string, ttl time.Duration) string {
	return fmt.Sprintf("Your %s verification code is: %s. This code will expire in %s.",
		appName, code, humanizeTTL(ttl))
}

func humanizeTTL(ttl time.Duration) string {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	switch {
	case minutes <= 0:
		return fmt.Sprintf("%d seconds", int(ttl/time.Second))
	case minutes == 1:
		return "1 minute"
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}

// MaskPhone masks a phone number for logging (e.g., +15551234567 -> +1********67)
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
