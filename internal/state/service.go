// Package state manages the registry of geographic states NOC certificates
// are issued under.
package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/state/entity"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

// Store is the persistence the service needs. repo.StateRepo implements it.
type Store interface {
	List(ctx context.Context) ([]entity.State, error)
	Page(ctx context.Context, limit, offset int) ([]entity.State, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, term string) ([]entity.State, error)
	GetByID(ctx context.Context, id int64) (*entity.State, error)
	NameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, s *entity.State) error
	Update(ctx context.Context, id int64, name string, logo *string) (*entity.State, error)
	Delete(ctx context.Context, id int64) (*entity.State, error)
	Stats(ctx context.Context) (entity.Stats, error)
}

var (
	ErrNotFound   = fmt.Errorf("%w: state not found", errorz.ErrNotFound)
	ErrNameTaken  = fmt.Errorf("%w: state already exists", errorz.ErrConflict)
	ErrNameNeeded = errorz.BadRequest("state name is required")
	ErrNoQuery    = errorz.BadRequest("search query is required")
)

const maxNameLen = 100

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

// PageResult is one page of states.
type PageResult struct {
	States     []entity.State   `json:"states"`
	Pagination httpx.Pagination `json:"pagination"`
}

func (s *Service) List(ctx context.Context) ([]entity.State, error) {
	return s.store.List(ctx)
}

func (s *Service) Page(ctx context.Context, p httpx.Page) (*PageResult, error) {
	states, err := s.store.Page(ctx, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &PageResult{States: states, Pagination: p.Paginate(total)}, nil
}

func (s *Service) Search(ctx context.Context, q string) ([]entity.State, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrNoQuery
	}
	return s.store.Search(ctx, q)
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.State, error) {
	st, err := s.store.GetByID(ctx, id)
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrNotFound
	}
	return st, err
}

func (s *Service) Create(ctx context.Context, name string, logo *string) (*entity.State, error) {
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
	st := &entity.State{StateName: name, Logo: cleanLogo(logo)}
	if err := s.store.Create(ctx, st); err != nil {
		if errors.Is(err, errorz.ErrConflict) {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	s.logger.Infow("state created", "id", st.ID, "name", st.StateName)
	return st, nil
}

func (s *Service) Update(ctx context.Context, id int64, name string, logo *string) (*entity.State, error) {
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
	st, err := s.store.Update(ctx, id, name, cleanLogo(logo))
	switch {
	case errors.Is(err, errorz.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, errorz.ErrConflict):
		return nil, ErrNameTaken
	}
	return st, err
}

// Delete removes a state and returns the deleted row.
func (s *Service) Delete(ctx context.Context, id int64) (*entity.State, error) {
	st, err := s.store.Delete(ctx, id)
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.logger.Infow("state deleted", "id", id)
	return st, nil
}

// Stats returns logo coverage, with the percentage rounded to two places.
func (s *Service) Stats(ctx context.Context) (entity.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return st, err
	}
	st.WithoutLogo = st.Total - st.WithLogo
	if st.Total > 0 {
		st.LogoPercentage = math.Round(float64(st.WithLogo)*10000/float64(st.Total)) / 100
	}
	return st, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameNeeded
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", errorz.BadRequest("state name must be at most 100 characters")
	}
	return name, nil
}

func cleanLogo(logo *string) *string {
	if logo == nil {
		return nil
	}
	v := strings.TrimSpace(*logo)
	if v == "" {
		return nil
	}
	return &v
}
