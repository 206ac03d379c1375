package repo

import (
	"context"
	"sync"
	"time"

	"github.com/albocarride/server/internal/model"
	"github.com/google/uuid"
)

// MemoryOtpRepo is an in-process OtpRepo with the same conditional-update
// semantics as the Postgres implementation. Used in tests and local runs.
type MemoryOtpRepo struct {
	mu      sync.Mutex
	records map[string]model.OtpRecord
}

// NewMemoryOtpRepo returns an empty in-memory OtpRepo
func NewMemoryOtpRepo() *MemoryOtpRepo {
	return &MemoryOtpRepo{records: make(map[string]model.OtpRecord)}
}

func (m *MemoryOtpRepo) Upsert(ctx context.Context, rec model.OtpRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Verified = false
	rec.VerifiedAt = nil
	rec.Attempts = 0
	rec.AccountID = nil
	rec.ResolvingUntil = nil
	m.records[rec.PhoneNumber] = rec
	return nil
}

func (m *MemoryOtpRepo) GetByPhone(ctx context.Context, phone string) (model.OtpRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[phone]
	if !ok {
		return model.OtpRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

// pending returns the record if it still matches the generation the caller saw
func (m *MemoryOtpRepo) pending(phone string, id uuid.UUID, seenAttempts int, now time.Time) (model.OtpRecord, bool) {
	rec, ok := m.records[phone]
	if !ok || rec.ID != id || rec.Attempts != seenAttempts || rec.Verified || rec.Expired(now) {
		return model.OtpRecord{}, false
	}
	return rec, true
}

func (m *MemoryOtpRepo) IncrementAttempts(ctx context.Context, phone string, id uuid.UUID, seenAttempts int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.pending(phone, id, seenAttempts, now)
	if !ok {
		return false, nil
	}
	rec.Attempts++
	m.records[phone] = rec
	return true, nil
}

func (m *MemoryOtpRepo) MarkVerified(ctx context.Context, phone string, id uuid.UUID, seenAttempts int, now, leaseUntil time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.pending(phone, id, seenAttempts, now)
	if !ok {
		return false, nil
	}
	rec.Verified = true
	rec.VerifiedAt = &now
	rec.ResolvingUntil = &leaseUntil
	m.records[phone] = rec
	return true, nil
}

func (m *MemoryOtpRepo) ClaimResolution(ctx context.Context, phone string, id uuid.UUID, now, leaseUntil time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[phone]
	if !ok || rec.ID != id || !rec.Verified || rec.AccountID != nil {
		return false, nil
	}
	if rec.ResolvingUntil != nil && !rec.ResolvingUntil.Before(now) {
		return false, nil
	}
	rec.ResolvingUntil = &leaseUntil
	m.records[phone] = rec
	return true, nil
}

func (m *MemoryOtpRepo) ReleaseResolution(ctx context.Context, phone string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[phone]
	if !ok || rec.ID != id || rec.AccountID != nil {
		return nil
	}
	rec.ResolvingUntil = nil
	m.records[phone] = rec
	return nil
}

func (m *MemoryOtpRepo) SetAccount(ctx context.Context, phone string, id, accountID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[phone]
	if !ok || rec.ID != id || !rec.Verified {
		return nil
	}
	rec.AccountID = &accountID
	rec.ResolvingUntil = nil
	m.records[phone] = rec
	return nil
}

func (m *MemoryOtpRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for phone, rec := range m.records {
		if rec.ExpiresAt.Before(cutoff) {
			delete(m.records, phone)
			n++
		}
	}
	return n, nil
}

// MemoryAccountRepo is an in-process AccountRepo
type MemoryAccountRepo struct {
	mu        sync.Mutex
	profiles  map[uuid.UUID]model.Profile
	byPhone   map[string]uuid.UUID
	drivers   map[uuid.UUID]model.Driver
	customers map[uuid.UUID]model.Customer
}

// NewMemoryAccountRepo returns an empty in-memory AccountRepo
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{
		profiles:  make(map[uuid.UUID]model.Profile),
		byPhone:   make(map[string]uuid.UUID),
		drivers:   make(map[uuid.UUID]model.Driver),
		customers: make(map[uuid.UUID]model.Customer),
	}
}

func (m *MemoryAccountRepo) GetProfileByPhone(ctx context.Context, phone string) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPhone[phone]
	if !ok {
		return model.Profile{}, ErrRecordNotFound
	}
	return m.profiles[id], nil
}

func (m *MemoryAccountRepo) GetProfileByID(ctx context.Context, id uuid.UUID) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return model.Profile{}, ErrRecordNotFound
	}
	return p, nil
}

func (m *MemoryAccountRepo) CreateAccount(ctx context.Context, acc model.NewAccount) (model.Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := false
	id, ok := m.byPhone[acc.Phone]
	if !ok {
		now := time.Now()
		m.profiles[acc.ID] = model.Profile{
			ID:        acc.ID,
			Phone:     acc.Phone,
			FullName:  acc.FullName,
			Role:      acc.Role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.byPhone[acc.Phone] = acc.ID
		id = acc.ID
		created = true
	}
	profile := m.profiles[id]

	switch profile.Role {
	case model.RoleDriver:
		if _, ok := m.drivers[id]; !ok {
			m.drivers[id] = model.Driver{ID: id, UpdatedAt: time.Now()}
		}
	default:
		if _, ok := m.customers[id]; !ok {
			m.customers[id] = model.Customer{ID: id, PreferredPaymentMethod: "cash", UpdatedAt: time.Now()}
		}
	}
	return profile, created, nil
}

func (m *MemoryAccountRepo) GetDriver(ctx context.Context, id uuid.UUID) (model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return model.Driver{}, ErrRecordNotFound
	}
	return d, nil
}

func (m *MemoryAccountRepo) GetCustomer(ctx context.Context, id uuid.UUID) (model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return model.Customer{}, ErrRecordNotFound
	}
	return c, nil
}

var (
	_ OtpRepo     = (*MemoryOtpRepo)(nil)
	_ AccountRepo = (*MemoryAccountRepo)(nil)
)
