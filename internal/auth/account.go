package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/albocarride/server/internal/identity"
	"github.com/albocarride/server/internal/model"
	"github.com/albocarride/server/internal/repo"
	"github.com/albocarride/server/internal/sms"
	"github.com/google/uuid"
)

// providerTimeout bounds the identity provider and database calls of one resolution.
const providerTimeout = 15 * time.Second

// Account is the result of a successful verification
type Account struct {
	UserID    uuid.UUID
	Role      model.Role
	IsNewUser bool
	// Email is the synthetic address the identity user was registered with.
	Email     string
	Session   identity.Session
}

// AccountService finds or provisions the account behind a verified phone number
type AccountService struct {
	accounts    repo.AccountRepo
	idp         identity.Provider
	emailDomain string
}

// NewAccountService creates a new account service
func NewAccountService(accounts repo.AccountRepo, idp identity.Provider, emailDomain string) *AccountService {
	return &AccountService{
		accounts:    accounts,
		idp:         idp,
		emailDomain: emailDomain,
	}
}

// Resolve returns the account for phone, creating the identity user, the profile and
// the role record on first use. It is safe to call again after a partial failure.
// The role only applies to new accounts; returning users keep their stored role.
func (s *AccountService) Resolve(ctx context.Context, phone, fullName string, role model.Role) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	profile, err := s.accounts.GetProfileByPhone(ctx, phone)
	if err == nil {
		return s.signIn(ctx, profile)
	}
	if !errors.Is(err, repo.ErrRecordNotFound) {
		return Account{}, fmt.Errorf("lookup profile: %w", err)
	}

	id := uuid.New()
	email := identity.SyntheticEmail(phone, s.emailDomain)
	userID, err := s.ensureIdentityUser(ctx, identity.NewUser{
		ID:       id.String(),
		Phone:    phone,
		FullName: fullName,
		Role:     role,
		Email:    email,
	})
	if err != nil {
		return Account{}, err
	}

	profile, created, err := s.accounts.CreateAccount(ctx, model.NewAccount{
		ID:       id,
		Phone:    phone,
		FullName: fullName,
		Role:     role,
	})
	if err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	if !created {
		// Lost a race with another verification for this phone.
		return s.signIn(ctx, profile)
	}
	log.Printf("Phone %s: created %s account %s", sms.MaskPhone(phone), profile.Role, profile.ID)

	sess, err := s.idp.IssueSession(ctx, userID, phone)
	if err != nil {
		return Account{}, fmt.Errorf("issue session: %w", err)
	}
	return Account{UserID: profile.ID, Role: profile.Role, IsNewUser: true, Email: email, Session: sess}, nil
}

// signIn issues a session for an existing profile
func (s *AccountService) signIn(ctx context.Context, profile model.Profile) (Account, error) {
	email := identity.SyntheticEmail(profile.Phone, s.emailDomain)
	userID, err := s.ensureIdentityUser(ctx, identity.NewUser{
		ID:       profile.ID.String(),
		Phone:    profile.Phone,
		FullName: profile.FullName,
		Role:     profile.Role,
		Email:    email,
	})
	if err != nil {
		return Account{}, err
	}
	sess, err := s.idp.IssueSession(ctx, userID, profile.Phone)
	if err != nil {
		return Account{}, fmt.Errorf("issue session: %w", err)
	}
	return Account{UserID: profile.ID, Role: profile.Role, Email: email, Session: sess}, nil
}

// ensureIdentityUser finds the provider user for the phone or creates it
func (s *AccountService) ensureIdentityUser(ctx context.Context, u identity.NewUser) (string, error) {
	userID, err := s.idp.FindUserByPhone(ctx, u.Phone)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, identity.ErrUserNotFound) {
		return "", fmt.Errorf("find identity user: %w", err)
	}

	userID, err = s.idp.CreateUser(ctx, u)
	if errors.Is(err, identity.ErrUserExists) {
		userID, err = s.idp.FindUserByPhone(ctx, u.Phone)
	}
	if err != nil {
		return "", fmt.Errorf("create identity user: %w", err)
	}
	return userID, nil
}
