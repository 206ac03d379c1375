package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/albocarride/server/internal/model"
	"github.com/google/uuid"
)

// ErrRecordNotFound is returned by lookups that match no row
var ErrRecordNotFound = errors.New("record not found")

// OtpRepo persists one OTP record per phone number. State transitions are
// conditional updates: they apply only if the row still carries the id and
// attempt count the caller read, and report false otherwise.
//
// A verified record that has no account yet carries a resolution lease
// (resolving_until). Only the holder of an unexpired lease may provision the
// account; ClaimResolution hands the lease over once it is released or lapsed.
type OtpRepo interface {
	Upsert(ctx context.Context, rec model.OtpRecord) error
	GetByPhone(ctx context.Context, phone string) (model.OtpRecord, error)
	IncrementAttempts(ctx context.Context, phone string, id uuid.UUID, seenAttempts int, now time.Time) (bool, error)
	MarkVerified(ctx context.Context, phone string, id uuid.UUID, seenAttempts int, now, leaseUntil time.Time) (bool, error)
	ClaimResolution(ctx context.Context, phone string, id uuid.UUID, now, leaseUntil time.Time) (bool, error)
	ReleaseResolution(ctx context.Context, phone string, id uuid.UUID) error
	SetAccount(ctx context.Context, phone string, id, accountID uuid.UUID) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a new OtpRepo instance
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

// Upsert replaces whatever record the phone had with a fresh pending one.
func (r *otpRepo) Upsert(ctx context.Context, rec model.OtpRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_verifications
			(phone_number, id, otp_code, expires_at, verified, verified_at, attempts, account_id, created_at)
		VALUES ($1, $2, $3, $4, false, NULL, 0, NULL, $5)
		ON CONFLICT (phone_number) DO UPDATE SET
			id = EXCLUDED.id,
			otp_code = EXCLUDED.otp_code,
			expires_at = EXCLUDED.expires_at,
			verified = false,
			verified_at = NULL,
			attempts = 0,
			account_id = NULL,
			resolving_until = NULL,
			created_at = EXCLUDED.created_at
	`, rec.PhoneNumber, rec.ID, rec.Code, rec.ExpiresAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}
	return nil
}

// GetByPhone returns the record for the phone, or ErrRecordNotFound.
func (r *otpRepo) GetByPhone(ctx context.Context, phone string) (model.OtpRecord, error) {
	var rec model.OtpRecord
	var idStr string
	var accountID sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone_number, otp_code, expires_at, verified, verified_at, attempts, account_id, resolving_until, created_at
		FROM otp_verifications
		WHERE phone_number = $1
	`, phone).Scan(
		&idStr,
		&rec.PhoneNumber,
		&rec.Code,
		&rec.ExpiresAt,
		&rec.Verified,
		&rec.VerifiedAt,
		&rec.Attempts,
		&accountID,
		&rec.ResolvingUntil,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OtpRecord{}, ErrRecordNotFound
		}
		return model.OtpRecord{}, fmt.Errorf("query otp: %w", err)
	}

	rec.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.OtpRecord{}, fmt.Errorf("parse otp ID: %w", err)
	}
	if accountID.Valid {
		id, err := uuid.Parse(accountID.String)
		if err != nil {
			return model.OtpRecord{}, fmt.Errorf("parse account ID: %w", err)
		}
		rec.AccountID = &id
	}
	return rec, nil
}

// IncrementAttempts records one failed attempt against the record generation the caller saw.
func (r *otpRepo) IncrementAttempts(ctx context.Context, phone string, id uuid.UUID, seenAttempts int, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otp_verifications
		SET attempts = attempts + 1
		WHERE phone_number = $1 AND id = $2 AND attempts = $3
		  AND verified = false AND expires_at >= $4
	`, phone, id, seenAttempts, now)
	if err != nil {
		return false, fmt.Errorf("increment attempts: %w", err)
	}
	return affectedOne(result)
}

// MarkVerified consumes the record generation the caller saw and hands the
// caller the resolution lease until leaseUntil.
func (r *otpRepo) MarkVerified(ctx context.Context, phone string, id uuid.UUID, seenAttempts int, now, leaseUntil time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otp_verifications
		SET verified = true, verified_at = $4, resolving_until = $5
		WHERE phone_number = $1 AND id = $2 AND attempts = $3
		  AND verified = false AND expires_at >= $4
	`, phone, id, seenAttempts, now, leaseUntil)
	if err != nil {
		return false, fmt.Errorf("mark verified: %w", err)
	}
	return affectedOne(result)
}

// ClaimResolution takes over the resolution lease of a verified record that
// has no account yet, provided nobody holds an unexpired lease on it.
func (r *otpRepo) ClaimResolution(ctx context.Context, phone string, id uuid.UUID, now, leaseUntil time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otp_verifications
		SET resolving_until = $4
		WHERE phone_number = $1 AND id = $2
		  AND verified = true AND account_id IS NULL
		  AND (resolving_until IS NULL OR resolving_until < $3)
	`, phone, id, now, leaseUntil)
	if err != nil {
		return false, fmt.Errorf("claim resolution: %w", err)
	}
	return affectedOne(result)
}

// ReleaseResolution drops the lease after a failed resolution so the next
// request with the code can resume straight away.
func (r *otpRepo) ReleaseResolution(ctx context.Context, phone string, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE otp_verifications
		SET resolving_until = NULL
		WHERE phone_number = $1 AND id = $2 AND account_id IS NULL
	`, phone, id)
	if err != nil {
		return fmt.Errorf("release resolution: %w", err)
	}
	return nil
}

// SetAccount links a verified record to the account it resolved to.
// A record replaced in the meantime is left untouched.
func (r *otpRepo) SetAccount(ctx context.Context, phone string, id, accountID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE otp_verifications
		SET account_id = $3, resolving_until = NULL
		WHERE phone_number = $1 AND id = $2 AND verified = true
	`, phone, id, accountID)
	if err != nil {
		return fmt.Errorf("set account: %w", err)
	}
	return nil
}

// DeleteStale removes records that expired before cutoff.
func (r *otpRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM otp_verifications WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale otps: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale otps: %w", err)
	}
	return n, nil
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
