package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/albocarride/server/internal/repo"
	"github.com/google/uuid"
)

// LocalProvider keeps users in the profiles table and issues HS256 access tokens.
// The user id is the profile id.
type LocalProvider struct {
	accounts repo.AccountRepo
	jwt      *JWTService
}

// NewLocalProvider creates a provider backed by the account repository
func NewLocalProvider(accounts repo.AccountRepo, jwt *JWTService) *LocalProvider {
	return &LocalProvider{accounts: accounts, jwt: jwt}
}

// FindUserByPhone implements Provider
func (p *LocalProvider) FindUserByPhone(ctx context.Context, phone string) (string, error) {
	profile, err := p.accounts.GetProfileByPhone(ctx, phone)
	if errors.Is(err, repo.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("local identity: %w", err)
	}
	return profile.ID.String(), nil
}

// CreateUser implements Provider. The profile row itself is written by the account service,
// so creation only validates the caller-chosen id.
func (p *LocalProvider) CreateUser(ctx context.Context, u NewUser) (string, error) {
	if _, err := p.FindUserByPhone(ctx, u.Phone); err == nil {
		return "", ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return "", err
	}
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return "", fmt.Errorf("local identity: user id: %w", err)
	}
	return id.String(), nil
}

// IssueSession implements Provider
func (p *LocalProvider) IssueSession(ctx context.Context, userID, phone string) (Session, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Session{}, fmt.Errorf("local identity: user id: %w", err)
	}
	token, err := p.jwt.SignAccessToken(id, phone)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(p.jwt.TTL().Seconds()),
	}, nil
}

// VerifyToken exposes token verification for protected routes
func (p *LocalProvider) VerifyToken(token string) (*Claims, error) {
	return p.jwt.VerifyToken(token)
}
