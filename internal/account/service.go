// Package account owns the credential store: registration, password
// verification, and the auxiliary token slot used for password reset and OTP
// login.
package account

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/notify"
)

// Store is the persistence the service needs. repo.AccountRepo implements it.
type Store interface {
	Create(ctx context.Context, a *entity.Account) (int64, error)
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetByPhone(ctx context.Context, phone string) (*entity.Account, error)
	GetByID(ctx context.Context, id int64) (*entity.Account, error)
	GetProfile(ctx context.Context, id int64) (*entity.Profile, error)
	List(ctx context.Context) ([]entity.Profile, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
	Update(ctx context.Context, id int64, name, email string, phone *string) (*entity.Profile, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error

	SetAuxToken(ctx context.Context, id int64, tok entity.AuxToken) error
	ConsumeResetToken(ctx context.Context, digest string, now time.Time, newHash string) (bool, error)
	FindByAuxToken(ctx context.Context, email string, kind entity.TokenKind, digest string, now time.Time) (*entity.Profile, error)
	ClearAuxToken(ctx context.Context, email string, kind entity.TokenKind) error
	ClaimAuxToken(ctx context.Context, id int64, kind entity.TokenKind, digest string, now time.Time) (bool, error)
}

// SessionIssuer signs a session token for an account id.
type SessionIssuer interface {
	Issue(accountID int64) (string, error)
}

var (
	ErrAccountNotFound  = fmt.Errorf("%w: user not found", errorz.ErrNotFound)
	ErrEmailTaken       = fmt.Errorf("%w: email already registered", errorz.ErrConflict)
	ErrBadCredentials   = fmt.Errorf("%w: invalid email or password", errorz.ErrUnauthorized)
	ErrWrongPassword    = fmt.Errorf("%w: current password is incorrect", errorz.ErrBadRequest)
	ErrInvalidReset     = fmt.Errorf("%w: invalid or expired reset token", errorz.ErrBadRequest)
	ErrInvalidOTP       = fmt.Errorf("%w: invalid or expired OTP", errorz.ErrBadRequest)
	ErrOTPLoginRejected = fmt.Errorf("%w: invalid OTP", errorz.ErrUnauthorized)
)

// Config holds the account policy knobs.
type Config struct {
	BcryptCost int
	// ResetURLBase is the frontend origin; links go to <base>/reset-password?token=.
	ResetURLBase string
	// MaskUnknownEmail makes recovery flows report success for unknown emails.
	MaskUnknownEmail bool
}

// ConfigFromEnv reads BCRYPT_COST, RESET_URL_BASE and MASK_UNKNOWN_EMAIL.
func ConfigFromEnv() Config {
	cost := DefaultCost
	if v, err := strconv.Atoi(os.Getenv("BCRYPT_COST")); err == nil && v > 0 {
		cost = v
	}
	base := os.Getenv("RESET_URL_BASE")
	if base == "" {
		base = "http://localhost:3000"
	}
	mask, _ := strconv.ParseBool(os.Getenv("MASK_UNKNOWN_EMAIL"))
	return Config{BcryptCost: cost, ResetURLBase: strings.TrimRight(base, "/"), MaskUnknownEmail: mask}
}

// Deps are the collaborators of Service. Hasher may be nil.
type Deps struct {
	Store    Store
	Hasher   PasswordHasher
	Sessions SessionIssuer
	Mailer   notify.Mailer
	SMS      notify.SMSSender
	Logger   *zap.SugaredLogger
}

// Service orchestrates registration, login and the recovery flows.
type Service struct {
	store    Store
	hasher   PasswordHasher
	sessions SessionIssuer
	mailer   notify.Mailer
	sms      notify.SMSSender
	logger   *zap.SugaredLogger
	cfg      Config

	// NowFunc is the clock used for token expiry; tests replace it.
	NowFunc func() time.Time
}

func NewService(d Deps, cfg Config) *Service {
	h := d.Hasher
	if h == nil {
		h = BcryptHasher{Cost: cfg.BcryptCost}
	}
	lg := d.Logger
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	return &Service{
		store:    d.Store,
		hasher:   h,
		sessions: d.Sessions,
		mailer:   d.Mailer,
		sms:      d.SMS,
		logger:   lg,
		cfg:      cfg,
		NowFunc:  time.Now,
	}
}

// AuthResult is returned by every flow that logs the caller in.
type AuthResult struct {
	Token   string          `json:"token"`
	Account *entity.Profile `json:"user"`
}

// Register creates an account and returns its id.
func (s *Service) Register(ctx context.Context, name, email, password string) (int64, error) {
	name, err := cleanName(name)
	if err != nil {
		return 0, err
	}
	email, err = NormalizeEmail(email)
	if err != nil {
		return 0, err
	}
	if err := checkPassword(password); err != nil {
		return 0, err
	}

	taken, err := s.store.EmailExists(ctx, email, 0)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("%w: hash password: %w", errorz.ErrInternal, err)
	}
	id, err := s.store.Create(ctx, &entity.Account{Name: name, Email: email, PasswordHash: hash})
	if errors.Is(err, errorz.ErrConflict) {
		// lost a race with a concurrent registration
		return 0, ErrEmailTaken
	}
	if err != nil {
		return 0, err
	}
	s.logger.Infow("account registered", "account_id", id)
	return id, nil
}

// SignUp registers and logs the new account in.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (*AuthResult, error) {
	id, err := s.Register(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.authResult(p)
}

// Login checks email and password and issues a session token. Unknown
// emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrBadCredentials
	}
	a, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.VerifyPassword(password, a.PasswordHash) {
		return nil, ErrBadCredentials
	}

	if s.hasher.NeedsRehash(a.PasswordHash) {
		if h, err := s.hasher.Hash(password); err == nil {
			if err := s.store.SetPasswordHash(ctx, a.ID, h); err != nil {
				s.logger.Warnw("rehash on login failed", "account_id", a.ID, "err", err)
			}
		}
	}
	return s.authResult(a.Profile())
}

// VerifyPassword compares plaintext with a stored hash.
func (s *Service) VerifyPassword(plaintext, hash string) bool {
	return s.hasher.Verify(hash, plaintext)
}

// FindByEmail returns the full account, hash included. Internal use only.
func (s *Service) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	a, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

// FindByID returns the display projection.
func (s *Service) FindByID(ctx context.Context, id int64) (*entity.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return p, err
}

func (s *Service) List(ctx context.Context) ([]entity.Profile, error) {
	return s.store.List(ctx)
}

// EmailExists reports whether an account other than excludeID uses email.
func (s *Service) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	return s.store.EmailExists(ctx, strings.ToLower(strings.TrimSpace(email)), excludeID)
}

// Update changes name, email and phone. Keeping one's own email is allowed.
func (s *Service) Update(ctx context.Context, id int64, name, email string, phone *string) (*entity.Profile, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	phone, err = cleanPhone(phone)
	if err != nil {
		return nil, err
	}

	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}
	taken, err := s.store.EmailExists(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email already in use", errorz.ErrConflict)
	}

	p, err := s.store.Update(ctx, id, name, email, phone)
	switch {
	case errors.Is(err, errorz.ErrNotFound):
		return nil, ErrAccountNotFound
	case errors.Is(err, errorz.ErrConflict):
		return nil, fmt.Errorf("%w: email already in use", errorz.ErrConflict)
	case err != nil:
		return nil, err
	}
	return p, nil
}

// UpdatePassword re-hashes and stores a new password.
func (s *Service) UpdatePassword(ctx context.Context, id int64, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: hash password: %w", errorz.ErrInternal, err)
	}
	err = s.store.UpdatePassword(ctx, id, hash)
	if errors.Is(err, errorz.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}

// ChangePassword verifies the current password before setting a new one.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, newPassword string) error {
	a, err := s.store.GetByID(ctx, id)
	if errors.Is(err, errorz.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if !s.VerifyPassword(current, a.PasswordHash) {
		return ErrWrongPassword
	}
	return s.UpdatePassword(ctx, id, newPassword)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, errorz.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err == nil {
		s.logger.Infow("account deleted", "account_id", id)
	}
	return err
}

func (s *Service) authResult(p *entity.Profile) (*AuthResult, error) {
	tok, err := s.sessions.Issue(p.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: tok, Account: p}, nil
}
