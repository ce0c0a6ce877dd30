package account

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-noc/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

// memStore is an in-memory Store with the same matching rules as the SQL in
// repo.AccountRepo.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*entity.Account
	now    func() time.Time
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{rows: map[int64]*entity.Account{}, now: time.Now}
}

func (m *memStore) copyOf(a *entity.Account) *entity.Account {
	c := *a
	return &c
}

func (m *memStore) byEmail(email string) *entity.Account {
	for _, a := range m.rows {
		if a.Email == email {
			return a
		}
	}
	return nil
}

func (m *memStore) Create(_ context.Context, a *entity.Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byEmail(a.Email) != nil {
		return 0, fmt.Errorf("%w: accounts_email_key", errorz.ErrConflict)
	}
	m.nextID++
	row := m.copyOf(a)
	row.ID = m.nextID
	row.CreatedAt = m.now()
	row.UpdatedAt = row.CreatedAt
	m.rows[row.ID] = row
	a.ID = row.ID
	return row.ID, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.byEmail(email); a != nil {
		return m.copyOf(a), nil
	}
	return nil, errorz.ErrNotFound
}

func (m *memStore) GetByPhone(_ context.Context, phone string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *entity.Account
	for _, a := range m.rows {
		if a.Phone != nil && *a.Phone == phone && (found == nil || a.ID < found.ID) {
			found = a
		}
	}
	if found == nil {
		return nil, errorz.ErrNotFound
	}
	return m.copyOf(found), nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, errorz.ErrNotFound
	}
	return m.copyOf(a), nil
}

func (m *memStore) GetProfile(ctx context.Context, id int64) (*entity.Profile, error) {
	a, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.Profile(), nil
}

func (m *memStore) List(_ context.Context) ([]entity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entity.Profile{}
	for _, a := range m.rows {
		out = append(out, *a.Profile())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) EmailExists(_ context.Context, email string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byEmail(email)
	return a != nil && a.ID != excludeID, nil
}

func (m *memStore) Update(_ context.Context, id int64, name, email string, phone *string) (*entity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, errorz.ErrNotFound
	}
	if other := m.byEmail(email); other != nil && other.ID != id {
		return nil, errorz.ErrConflict
	}
	a.Name, a.Email, a.Phone = name, email, phone
	a.UpdatedAt = m.now()
	return a.Profile(), nil
}

func clearAux(a *entity.Account) {
	a.ResetToken, a.ResetTokenKind, a.ResetTokenExpires = nil, nil, nil
}

func (m *memStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return errorz.ErrNotFound
	}
	a.PasswordHash = hash
	clearAux(a)
	return nil
}

func (m *memStore) SetPasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return errorz.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return errorz.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) SetAuxToken(_ context.Context, id int64, tok entity.AuxToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return errorz.ErrNotFound
	}
	d, k, e := tok.Digest, string(tok.Kind), tok.ExpiresAt
	a.ResetToken, a.ResetTokenKind, a.ResetTokenExpires = &d, &k, &e
	return nil
}

func (m *memStore) ConsumeResetToken(_ context.Context, digest string, now time.Time, newHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if tok, ok := a.Aux(); ok && tok.Live(entity.KindReset, digest, now) {
			a.PasswordHash = newHash
			clearAux(a)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FindByAuxToken(_ context.Context, email string, kind entity.TokenKind, digest string, now time.Time) (*entity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byEmail(email)
	if a == nil {
		return nil, errorz.ErrNotFound
	}
	if tok, ok := a.Aux(); ok && tok.Live(kind, digest, now) {
		return a.Profile(), nil
	}
	return nil, errorz.ErrNotFound
}

func (m *memStore) ClearAuxToken(_ context.Context, email string, kind entity.TokenKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.byEmail(email); a != nil {
		if tok, ok := a.Aux(); ok && tok.Kind == kind {
			clearAux(a)
		}
	}
	return nil
}

func (m *memStore) ClaimAuxToken(_ context.Context, id int64, kind entity.TokenKind, digest string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	if tok, ok := a.Aux(); ok && tok.Live(kind, digest, now) {
		clearAux(a)
		return true, nil
	}
	return false, nil
}

// hash returns the stored hash for id, for asserting a write did not happen.
func (m *memStore) hash(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].PasswordHash
}
