// Package auth implements phone OTP issuance and verification and the account
// resolution that follows a successful verification.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/albocarride/server/internal/model"
	"github.com/albocarride/server/internal/ratelimit"
	"github.com/albocarride/server/internal/repo"
	"github.com/albocarride/server/internal/sms"
	"github.com/google/uuid"
)

const (
	otpLength = 6
	// casRounds bounds how often a verification re-reads a record that changed under it.
	casRounds = 3
	// resolveLease covers one full account resolution, provider calls included.
	resolveLease = 2 * providerTimeout
)

// OtpConfig holds the OTP policy
type OtpConfig struct {
	TTL         time.Duration
	MaxAttempts int
	AppName     string
	// DevMode returns the code to the caller instead of relying on SMS delivery.
	DevMode bool
}

// IssueResult is returned by RequestOTP
type IssueResult struct {
	ExpiresIn int
	// DevCode is set only in dev mode.
	DevCode string
}

// VerifyRequest is the input of VerifyOTP
type VerifyRequest struct {
	Phone    string
	Code     string
	FullName string
	Role     string
}

// OtpService issues and verifies one-time passcodes
type OtpService struct {
	otps     repo.OtpRepo
	gateway  sms.Gateway
	limiter  ratelimit.Limiter
	accounts *AccountService
	cfg      OtpConfig

	now     func() time.Time
	genCode func() (string, error)
}

// NewOtpService creates a new OTP service
func NewOtpService(
	otps repo.OtpRepo,
	gateway sms.Gateway,
	limiter ratelimit.Limiter,
	accounts *AccountService,
	cfg OtpConfig,
) *OtpService {
	return &OtpService{
		otps:     otps,
		gateway:  gateway,
		limiter:  limiter,
		accounts: accounts,
		cfg:      cfg,
		now:      time.Now,
		genCode:  generateOTPCode,
	}
}

// RequestOTP replaces any record for the phone with a fresh code and sends it by SMS.
// If delivery fails the new record stays in place and a DependencyError is returned.
func (s *OtpService) RequestOTP(ctx context.Context, phone string) (IssueResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return IssueResult{}, &ValidationError{Message: "Phone number is required"}
	}

	allowed, err := s.limiter.Allow(ctx, ratelimit.PhoneKey(phone))
	if err != nil {
		// Limiter outages do not block sign-in.
		log.Printf("Phone %s: issue limiter unavailable: %v", sms.MaskPhone(phone), err)
		allowed = true
	}
	if !allowed {
		return IssueResult{}, ErrRateLimited
	}

	code, err := s.genCode()
	if err != nil {
		return IssueResult{}, &DependencyError{Op: OpStoreOTP, Err: fmt.Errorf("generate code: %w", err)}
	}

	now := s.now()
	rec := model.OtpRecord{
		ID:          uuid.New(),
		PhoneNumber: phone,
		Code:        code,
		ExpiresAt:   now.Add(s.cfg.TTL),
		CreatedAt:   now,
	}
	if err := s.otps.Upsert(ctx, rec); err != nil {
		return IssueResult{}, &DependencyError{Op: OpStoreOTP, Err: err}
	}

	body := sms.RenderOTPMessage(s.cfg.AppName, code, s.cfg.TTL)
	if err := s.gateway.Send(ctx, phone, body); err != nil {
		return IssueResult{}, &DependencyError{Op: OpSendSMS, Err: err}
	}

	result := IssueResult{ExpiresIn: int(s.cfg.TTL.Seconds())}
	if s.cfg.DevMode {
		result.DevCode = code
	}
	return result, nil
}

// VerifyOTP checks the code against the stored record and, on a match, resolves the account.
//
// Rules are applied in order: not found, already used, expired, attempts exhausted,
// mismatch, match. Each state change is a conditional update against the record
// generation that was read; a lost race re-reads and starts over.
func (s *OtpService) VerifyOTP(ctx context.Context, req VerifyRequest) (Account, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	req.Code = strings.TrimSpace(req.Code)
	if req.Phone == "" || req.Code == "" {
		return Account{}, &ValidationError{Message: "Phone number and OTP are required"}
	}
	role, ok := model.ParseRole(strings.TrimSpace(req.Role))
	if !ok {
		return Account{}, &ValidationError{Message: "Invalid role"}
	}

	for round := 0; round < casRounds; round++ {
		rec, err := s.otps.GetByPhone(ctx, req.Phone)
		if errors.Is(err, repo.ErrRecordNotFound) {
			return Account{}, ErrNotFound
		}
		if err != nil {
			return Account{}, &DependencyError{Op: OpLoadOTP, Err: err}
		}

		now := s.now()
		matches := codesEqual(req.Code, rec.Code)

		if rec.Verified {
			if matches && rec.AccountID == nil && !rec.Expired(now) {
				claimed, err := s.otps.ClaimResolution(ctx, req.Phone, rec.ID, now, now.Add(resolveLease))
				if err != nil {
					return Account{}, &DependencyError{Op: OpUpdateOTP, Err: err}
				}
				if claimed {
					return s.resolve(ctx, rec, req.FullName, role)
				}
			}
			return Account{}, &StateError{Reason: ReasonAlreadyUsed}
		}
		if rec.Expired(now) {
			return Account{}, &StateError{Reason: ReasonExpired}
		}
		if rec.Attempts >= s.cfg.MaxAttempts {
			return Account{}, &StateError{Reason: ReasonMaxAttemptsExceeded}
		}

		if !matches {
			applied, err := s.otps.IncrementAttempts(ctx, req.Phone, rec.ID, rec.Attempts, now)
			if err != nil {
				return Account{}, &DependencyError{Op: OpUpdateOTP, Err: err}
			}
			if !applied {
				continue
			}
			return Account{}, &MismatchError{AttemptsRemaining: s.cfg.MaxAttempts - (rec.Attempts + 1)}
		}

		applied, err := s.otps.MarkVerified(ctx, req.Phone, rec.ID, rec.Attempts, now, now.Add(resolveLease))
		if err != nil {
			return Account{}, &DependencyError{Op: OpUpdateOTP, Err: err}
		}
		if !applied {
			continue
		}
		rec.Verified = true
		rec.VerifiedAt = &now
		return s.resolve(ctx, rec, req.FullName, role)
	}

	log.Printf("Phone %s: verification gave up after %d conflicting updates", sms.MaskPhone(req.Phone), casRounds)
	return Account{}, ErrConflict
}

// resolve provisions or authenticates the account and links it to the record.
// The caller holds the record's resolution lease; it is released on failure.
func (s *OtpService) resolve(ctx context.Context, rec model.OtpRecord, fullName string, role model.Role) (Account, error) {
	acc, err := s.accounts.Resolve(ctx, rec.PhoneNumber, fullName, role)
	if err == nil {
		err = s.otps.SetAccount(ctx, rec.PhoneNumber, rec.ID, acc.UserID)
	}
	if err != nil {
		// A retry with the same code resumes; an account created here is found again.
		if rerr := s.otps.ReleaseResolution(context.WithoutCancel(ctx), rec.PhoneNumber, rec.ID); rerr != nil {
			log.Printf("Phone %s: release resolution lease: %v", sms.MaskPhone(rec.PhoneNumber), rerr)
		}
		return Account{}, &DependencyError{Op: OpProvisionAccount, Err: err}
	}
	return acc, nil
}

// generateOTPCode returns a uniformly random code in 100000..999999
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, n.Int64()+100000), nil
}

func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
