// Package trade manages the catalogue of occupational trades.
package trade

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/trade/entity"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

type Store interface {
	List(ctx context.Context) ([]entity.Trade, error)
	Page(ctx context.Context, limit, offset int) ([]entity.Trade, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, term string) ([]entity.Trade, error)
	Random(ctx context.Context, limit int) ([]entity.Trade, error)
	Recent(ctx context.Context, limit int) ([]entity.Trade, error)
	GetByID(ctx context.Context, id int64) (*entity.Trade, error)
	NameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, t *entity.Trade) error
	Update(ctx context.Context, id int64, name string) (*entity.Trade, error)
	Delete(ctx context.Context, id int64) (*entity.Trade, error)
}

var (
	ErrNotFound  = fmt.Errorf("%w: trade not found", errorz.ErrNotFound)
	ErrNameTaken = fmt.Errorf("%w: trade already exists", errorz.ErrConflict)
	ErrNoQuery   = errorz.BadRequest("search query is required")
)

const (
	minNameLen      = 2
	maxNameLen      = 100
	DefaultFeatured = 5
	recentCount     = 5
)

type Service struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewService(store Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, logger: logger}
}

type PageResult struct {
	Trades     []entity.Trade   `json:"trades"`
	Pagination httpx.Pagination `json:"pagination"`
}

func (s *Service) List(ctx context.Context) ([]entity.Trade, error) {
	return s.store.List(ctx)
}

func (s *Service) Page(ctx context.Context, p httpx.Page) (*PageResult, error) {
	trades, err := s.store.Page(ctx, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &PageResult{Trades: trades, Pagination: p.Paginate(total)}, nil
}

func (s *Service) Search(ctx context.Context, q string) ([]entity.Trade, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrNoQuery
	}
	return s.store.Search(ctx, q)
}

// Featured returns a random selection of trades. limit falls back to 5 and
// is capped at 100.
func (s *Service) Featured(ctx context.Context, limit int) ([]entity.Trade, error) {
	if limit < 1 {
		limit = DefaultFeatured
	}
	return s.store.Random(ctx, min(limit, 100))
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Trade, error) {
	t, err := s.store.GetByID(ctx, id)
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *Service) Create(ctx context.Context, name string) (*entity.Trade, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	taken, err := s.store.NameExists(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNameTaken
	}
	t := &entity.Trade{TradeName: name}
	if err := s.store.Create(ctx, t); err != nil {
		if errors.Is(err, errorz.ErrConflict) {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	s.logger.Infow("trade created", "id", t.ID, "name", t.TradeName)
	return t, nil
}

func (s *Service) Update(ctx context.Context, id int64, name string) (*entity.Trade, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	taken, err := s.store.NameExists(ctx, name, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNameTaken
	}
	t, err := s.store.Update(ctx, id, name)
	switch {
	case errors.Is(err, errorz.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, errorz.ErrConflict):
		return nil, ErrNameTaken
	}
	return t, err
}

func (s *Service) Delete(ctx context.Context, id int64) (*entity.Trade, error) {
	t, err := s.store.Delete(ctx, id)
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.logger.Infow("trade deleted", "id", id)
	return t, nil
}

func (s *Service) Stats(ctx context.Context) (*entity.Stats, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.Recent(ctx, recentCount)
	if err != nil {
		return nil, err
	}
	st := summarize(all)
	st.RecentlyAdded = recent
	return st, nil
}

// summarize computes name-length statistics in characters. Ties keep the
// first trade in list order.
func summarize(all []entity.Trade) *entity.Stats {
	st := &entity.Stats{Total: len(all), RecentlyAdded: []entity.Trade{}}
	if len(all) == 0 {
		return st
	}
	sum := 0
	longest, shortest := -1, -1
	for _, t := range all {
		n := utf8.RuneCountInString(t.TradeName)
		sum += n
		if longest < 0 || n > longest {
			longest, st.LongestTradeName = n, t.TradeName
		}
		if shortest < 0 || n < shortest {
			shortest, st.ShortestTradeName = n, t.TradeName
		}
	}
	st.AverageNameLength = math.Round(float64(sum)*100/float64(len(all))) / 100
	return st
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		return "", errorz.BadRequest("trade name is required")
	case n < minNameLen:
		return "", errorz.BadRequest("trade name must be at least 2 characters long")
	case n > maxNameLen:
		return "", errorz.BadRequest("trade name must be at most 100 characters")
	}
	return name, nil
}
