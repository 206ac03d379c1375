package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/albocarride/server/internal/model"
	"github.com/google/uuid"
)

// AccountRepo defines the interface for profile and role record operations
type AccountRepo interface {
	GetProfileByPhone(ctx context.Context, phone string) (model.Profile, error)
	GetProfileByID(ctx context.Context, id uuid.UUID) (model.Profile, error)
	// CreateAccount inserts the profile and its role record in one transaction.
	// It is idempotent per phone: an existing profile is returned with created=false.
	CreateAccount(ctx context.Context, acc model.NewAccount) (profile model.Profile, created bool, err error)
	GetDriver(ctx context.Context, id uuid.UUID) (model.Driver, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (model.Customer, error)
}

type accountRepo struct {
	db *sql.DB
}

// NewAccountRepo creates a new AccountRepo instance
func NewAccountRepo(db *sql.DB) AccountRepo {
	return &accountRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const profileColumns = `id, phone, full_name, role, created_at, updated_at`

func scanProfile(row rowScanner) (model.Profile, error) {
	var p model.Profile
	var idStr, role string
	err := row.Scan(&idStr, &p.Phone, &p.FullName, &role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Profile{}, ErrRecordNotFound
		}
		return model.Profile{}, fmt.Errorf("query profile: %w", err)
	}
	p.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Profile{}, fmt.Errorf("parse profile ID: %w", err)
	}
	p.Role = model.Role(role)
	return p, nil
}

// GetProfileByPhone retrieves a profile by phone number
func (r *accountRepo) GetProfileByPhone(ctx context.Context, phone string) (model.Profile, error) {
	return scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE phone = $1`, phone))
}

// GetProfileByID retrieves a profile by ID
func (r *accountRepo) GetProfileByID(ctx context.Context, id uuid.UUID) (model.Profile, error) {
	return scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

// CreateAccount creates the profile and the driver or customer record together.
func (r *accountRepo) CreateAccount(ctx context.Context, acc model.NewAccount) (model.Profile, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Profile{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	created := true
	profile, err := scanProfile(tx.QueryRowContext(ctx, `
		INSERT INTO profiles (id, phone, full_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (phone) DO NOTHING
		RETURNING `+profileColumns,
		acc.ID, acc.Phone, acc.FullName, string(acc.Role)))
	if errors.Is(err, ErrRecordNotFound) {
		created = false
		profile, err = scanProfile(tx.QueryRowContext(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE phone = $1`, acc.Phone))
	}
	if err != nil {
		return model.Profile{}, false, fmt.Errorf("insert profile: %w", err)
	}

	// The role record follows the stored profile, which may predate this request.
	switch profile.Role {
	case model.RoleDriver:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO drivers (id, is_approved, is_online, rating, total_rides, updated_at)
			VALUES ($1, false, false, 0, 0, now())
			ON CONFLICT (id) DO NOTHING
		`, profile.ID)
	default:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO customers (id, preferred_payment_method, rating, total_rides, updated_at)
			VALUES ($1, 'cash', 0, 0, now())
			ON CONFLICT (id) DO NOTHING
		`, profile.ID)
	}
	if err != nil {
		return model.Profile{}, false, fmt.Errorf("insert %s record: %w", profile.Role, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Profile{}, false, fmt.Errorf("commit: %w", err)
	}
	return profile, created, nil
}

// GetDriver retrieves the driver record for a profile
func (r *accountRepo) GetDriver(ctx context.Context, id uuid.UUID) (model.Driver, error) {
	d := model.Driver{ID: id}
	err := r.db.QueryRowContext(ctx, `
		SELECT is_approved, is_online, rating, total_rides, updated_at
		FROM drivers WHERE id = $1
	`, id).Scan(&d.IsApproved, &d.IsOnline, &d.Rating, &d.TotalRides, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Driver{}, ErrRecordNotFound
		}
		return model.Driver{}, fmt.Errorf("query driver: %w", err)
	}
	return d, nil
}

// GetCustomer retrieves the customer record for a profile
func (r *accountRepo) GetCustomer(ctx context.Context, id uuid.UUID) (model.Customer, error) {
	c := model.Customer{ID: id}
	err := r.db.QueryRowContext(ctx, `
		SELECT preferred_payment_method, rating, total_rides, updated_at
		FROM customers WHERE id = $1
	`, id).Scan(&c.PreferredPaymentMethod, &c.Rating, &c.TotalRides, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Customer{}, ErrRecordNotFound
		}
		return model.Customer{}, fmt.Errorf("query customer: %w", err)
	}
	return c, nil
}
