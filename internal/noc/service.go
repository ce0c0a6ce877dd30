// Package noc manages No Objection Certificates issued to training
// institutes, together with the trade units each certificate allocates.
package noc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/noc/entity"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

// ExpiringWindow is how far ahead statistics look for expiring certificates.
const ExpiringWindow = 30 * 24 * time.Hour

type Store interface {
	Create(ctx context.Context, c *entity.Certificate) error
	GetByID(ctx context.Context, id int64) (*entity.Certificate, error)
	GetByApplicationNumber(ctx context.Context, number string) (*entity.Certificate, error)
	ApplicationExists(ctx context.Context, number string) (bool, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, limit, offset int) ([]entity.Summary, int, error)
	Search(ctx context.Context, term string, limit, offset int) ([]entity.Summary, int, error)
	ByState(ctx context.Context, state string, limit, offset int) ([]entity.Summary, int, error)
	ByStatus(ctx context.Context, status entity.Status, limit, offset int) ([]entity.Summary, int, error)
	Update(ctx context.Context, id int64, fields map[string]any) error
	Delete(ctx context.Context, id int64) error
	Statistics(ctx context.Context, from, to entity.Date) (*entity.Statistics, error)
	AddTrade(ctx context.Context, a *entity.Allocation) error
	UpdateTrade(ctx context.Context, tradeID int64, a entity.Allocation) error
	RemoveTrade(ctx context.Context, tradeID int64) error
}

var (
	ErrNotFound          = fmt.Errorf("%w: NOC certificate not found", errorz.ErrNotFound)
	ErrTradeNotFound     = fmt.Errorf("%w: trade not found", errorz.ErrNotFound)
	ErrApplicationTaken  = fmt.Errorf("%w: application number already exists", errorz.ErrConflict)
	ErrInvalidStatus     = errorz.BadRequest("invalid status, must be active, expired, or revoked")
	ErrNoQuery           = errorz.BadRequest("search query is required")
	ErrMissingFields     = errorz.BadRequest("institute name, address, application number, category, state, issue date, and expiry date are required")
	ErrExpiryBeforeIssue = errorz.BadRequest("expiry date must not be before issue date")
)

// AllocationInput is a trade allocation as clients send it.
type AllocationInput struct {
	TradeName   string `json:"trade_name"`
	Shift1Units int    `json:"shift_1_units"`
	Shift2Units int    `json:"shift_2_units"`
}

// CreateInput is the body of a certificate creation.
type CreateInput struct {
	InstituteName     string            `json:"institute_name"`
	CompleteAddress   string            `json:"complete_address"`
	ApplicationNumber string            `json:"application_number"`
	MISCode           *string           `json:"mis_code"`
	Category          string            `json:"category"`
	StateName         string            `json:"state_name"`
	IssueDate         entity.Date       `json:"issue_date"`
	ExpiryDate        entity.Date       `json:"expiry_date"`
	Status            entity.Status     `json:"status"`
	Remarks           *string           `json:"remarks"`
	Trades            []AllocationInput `json:"trades"`
}

// ListResult is one page of certificate summaries.
type ListResult struct {
	Certificates []entity.Summary `json:"certificates"`
	Pagination   httpx.Pagination `json:"pagination"`
}

type Service struct {
	store  Store
	logger *zap.SugaredLogger
	// NowFunc is the clock statistics are computed against.
	NowFunc func() time.Time
}

func NewService(store Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, logger: logger, NowFunc: time.Now}
}

// Create validates in and stores the certificate with its allocations.
// Allocations without a trade name are skipped.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Certificate, error) {
	c := &entity.Certificate{
		InstituteName:     strings.TrimSpace(in.InstituteName),
		CompleteAddress:   strings.TrimSpace(in.CompleteAddress),
		ApplicationNumber: strings.TrimSpace(in.ApplicationNumber),
		MISCode:           optional(in.MISCode),
		Category:          strings.TrimSpace(in.Category),
		StateName:         strings.TrimSpace(in.StateName),
		IssueDate:         in.IssueDate,
		ExpiryDate:        in.ExpiryDate,
		Status:            in.Status,
		Remarks:           optional(in.Remarks),
		Trades:            []entity.Allocation{},
	}
	if c.InstituteName == "" || c.CompleteAddress == "" || c.ApplicationNumber == "" ||
		c.Category == "" || c.StateName == "" || c.IssueDate.IsZero() || c.ExpiryDate.IsZero() {
		return nil, ErrMissingFields
	}
	if c.ExpiryDate.Before(c.IssueDate.Time) {
		return nil, ErrExpiryBeforeIssue
	}
	if c.Status == "" {
		c.Status = entity.StatusActive
	}
	if !c.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	for _, t := range in.Trades {
		if strings.TrimSpace(t.TradeName) == "" {
			continue
		}
		a, err := allocation(t)
		if err != nil {
			return nil, err
		}
		c.Trades = append(c.Trades, a)
	}

	taken, err := s.store.ApplicationExists(ctx, c.ApplicationNumber)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrApplicationTaken
	}
	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, errorz.ErrConflict) {
			return nil, ErrApplicationTaken
		}
		return nil, err
	}
	s.logger.Infow("noc created", "id", c.ID, "application", c.ApplicationNumber, "trades", len(c.Trades))
	return c, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Certificate, error) {
	c, err := s.store.GetByID(ctx, id)
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *Service) GetByApplicationNumber(ctx context.Context, number string) (*entity.Certificate, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, errorz.BadRequest("application number is required")
	}
	c, err := s.store.GetByApplicationNumber(ctx, number)
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *Service) List(ctx context.Context, p httpx.Page) (*ListResult, error) {
	return paged(p)(s.store.List(ctx, p.Limit, p.Offset()))
}

func (s *Service) Search(ctx context.Context, q string, p httpx.Page) (*ListResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrNoQuery
	}
	return paged(p)(s.store.Search(ctx, q, p.Limit, p.Offset()))
}

func (s *Service) ByState(ctx context.Context, state string, p httpx.Page) (*ListResult, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return nil, errorz.BadRequest("state name is required")
	}
	return paged(p)(s.store.ByState(ctx, state, p.Limit, p.Offset()))
}

func (s *Service) ByStatus(ctx context.Context, status entity.Status, p httpx.Page) (*ListResult, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return paged(p)(s.store.ByStatus(ctx, status, p.Limit, p.Offset()))
}

func paged(p httpx.Page) func([]entity.Summary, int, error) (*ListResult, error) {
	return func(rows []entity.Summary, total int, err error) (*ListResult, error) {
		if err != nil {
			return nil, err
		}
		return &ListResult{Certificates: rows, Pagination: p.Paginate(total)}, nil
	}
}

// Update applies a partial update. Keys that are not certificate columns,
// such as "trades" or "id", are ignored.
func (s *Service) Update(ctx context.Context, id int64, patch map[string]json.RawMessage) (*entity.Certificate, error) {
	fields, err := buildPatch(patch)
	if err != nil {
		return nil, err
	}
	if err := s.checkDateOrder(ctx, id, fields); err != nil {
		return nil, err
	}
	switch err := s.store.Update(ctx, id, fields); {
	case errors.Is(err, errorz.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, errorz.ErrConflict):
		return nil, ErrApplicationTaken
	case err != nil:
		return nil, err
	}
	s.logger.Infow("noc updated", "id", id, "fields", len(fields))
	return s.Get(ctx, id)
}

// checkDateOrder compares a patch that moves only one of the two dates
// against the other date as currently stored.
func (s *Service) checkDateOrder(ctx context.Context, id int64, fields map[string]any) error {
	issue, okIssue := fields["issue_date"].(entity.Date)
	expiry, okExpiry := fields["expiry_date"].(entity.Date)
	if okIssue == okExpiry {
		return nil
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !okIssue {
		issue = cur.IssueDate
	}
	if !okExpiry {
		expiry = cur.ExpiryDate
	}
	if expiry.Before(issue.Time) {
		return ErrExpiryBeforeIssue
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.logger.Infow("noc deleted", "id", id)
	return nil
}

// Statistics counts certificates overall and per status, state (top 10)
// and category, plus active ones expiring within ExpiringWindow of today.
func (s *Service) Statistics(ctx context.Context) (*entity.Statistics, error) {
	now := s.NowFunc()
	from := entity.NewDate(now.Date())
	to := entity.NewDate(now.Add(ExpiringWindow).Date())
	return s.store.Statistics(ctx, from, to)
}

func (s *Service) AddTrade(ctx context.Context, nocID int64, in AllocationInput) (*entity.Allocation, error) {
	a, err := allocation(in)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.Exists(ctx, nocID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	a.NOCID = nocID
	if err := s.store.AddTrade(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) UpdateTrade(ctx context.Context, tradeID int64, in AllocationInput) error {
	a, err := allocation(in)
	if err != nil {
		return err
	}
	if err := s.store.UpdateTrade(ctx, tradeID, a); errors.Is(err, errorz.ErrNotFound) {
		return ErrTradeNotFound
	} else if err != nil {
		return err
	}
	return nil
}

func (s *Service) RemoveTrade(ctx context.Context, tradeID int64) error {
	if err := s.store.RemoveTrade(ctx, tradeID); errors.Is(err, errorz.ErrNotFound) {
		return ErrTradeNotFound
	} else if err != nil {
		return err
	}
	return nil
}

func allocation(in AllocationInput) (entity.Allocation, error) {
	name := strings.TrimSpace(in.TradeName)
	if name == "" {
		return entity.Allocation{}, errorz.BadRequest("trade name is required")
	}
	if in.Shift1Units < 0 || in.Shift2Units < 0 {
		return entity.Allocation{}, errorz.BadRequest("shift units must not be negative")
	}
	return entity.Allocation{TradeName: name, Shift1Units: in.Shift1Units, Shift2Units: in.Shift2Units}, nil
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
