// Package identity links verified phone numbers to identity-provider users
// and issues the session material returned after a successful verification.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/albocarride/server/internal/model"
)

var (
	// ErrUserNotFound is returned by FindUserByPhone when no user carries the phone
	ErrUserNotFound = errors.New("identity: user not found")
	// ErrUserExists is returned by CreateUser when the phone is already registered
	ErrUserExists = errors.New("identity: user already exists")
)

// NewUser describes a user to create at the provider
type NewUser struct {
	// ID is the account id chosen by the caller. Providers that mint their own ids may ignore it.
	ID       string
	Phone    string
	FullName string
	Role     model.Role
	Email    string
}

// Session is the short-lived credential handed to the client
type Session struct {
	AccessToken string
	TokenType   string
	// ExpiresIn is the lifetime in seconds.
	ExpiresIn int
}

// Provider is an identity provider
type Provider interface {
	FindUserByPhone(ctx context.Context, phone string) (userID string, err error)
	CreateUser(ctx context.Context, u NewUser) (userID string, err error)
	IssueSession(ctx context.Context, userID, phone string) (Session, error)
}

// SyntheticEmail builds the placeholder email some providers require, e.g. +27821234567 -> 27821234567@domain
func SyntheticEmail(phone, domain string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("%s@%s", b.String(), domain)
}

// SplitName splits a full name into given and family name. A single word is used for both.
func SplitName(fullName string) (given, family string) {
	fields := strings.Fields(fullName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], fields[0]
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
