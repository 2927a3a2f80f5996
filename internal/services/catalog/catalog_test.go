package catalog

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreatePlan(ctx context.Context, plan models.Plan) (int, error) {
	args := m.Called(ctx, plan)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) UpdatePlan(ctx context.Context, plan models.Plan, id int) (int, error) {
	args := m.Called(ctx, plan, id)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) DeletePlan(ctx context.Context, id int) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}
func (m *RepoMock) FindPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}
func (m *RepoMock) CreateMovie(ctx context.Context, movie models.Movie) (int, error) {
	args := m.Called(ctx, movie)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) UpdateMovie(ctx context.Context, movie models.Movie, id int) (int, error) {
	args := m.Called(ctx, movie, id)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) DeleteMovie(ctx context.Context, id int) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) ListMovies(ctx context.Context, limit, offset int) ([]*models.Movie, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Movie), args.Error(1)
}
func (m *RepoMock) FindMovieByID(ctx context.Context, id int) (*models.Movie, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Movie), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestListPlans(t *testing.T) {
	t.Run("cache miss reads storage and fills cache", func(t *testing.T) {
		repo := &RepoMock{}
		cache := &CacheMock{}
		plans := []*models.Plan{
			{ID: 1, Name: "base", Price: 0, IsActive: true},
			{ID: 2, Name: "standard", Price: 600, IsActive: true},
		}
		cache.On("Get", "plans:list", mock.Anything).Return(false, nil).Once()
		repo.On("ListPlans", mock.Anything).Return(plans, nil).Once()
		cache.On("Set", "plans:list", plans, time.Hour).Return(nil).Once()

		svc := New(repo, cache, newNoopLogger())
		got, err := svc.ListPlans(context.Background())
		require.NoError(t, err)
		assert.Equal(t, plans, got)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache hit skips storage", func(t *testing.T) {
		repo := &RepoMock{}
		cache := &CacheMock{}
		cache.On("Get", "plans:list", mock.Anything).Return(true, nil).Once()

		svc := New(repo, cache, newNoopLogger())
		_, err := svc.ListPlans(context.Background())
		require.NoError(t, err)
		repo.AssertNotCalled(t, "ListPlans", mock.Anything)
	})
}

func TestCreatePlanInvalidatesCache(t *testing.T) {
	repo := &RepoMock{}
	cache := &CacheMock{}
	repo.On("CreatePlan", mock.Anything, mock.MatchedBy(func(p models.Plan) bool {
		return p.Name == "premium" && p.Price == 1000
	})).Return(3, nil).Once()
	cache.On("Invalidate", "plans:list").Return(nil).Once()

	svc := New(repo, cache, newNoopLogger())
	id, err := svc.CreatePlan(context.Background(), models.DummyPlan{
		Name: "premium", Price: 1000, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, id)
	cache.AssertExpectations(t)
}

func TestListMovies(t *testing.T) {
	t.Run("first page uses cache", func(t *testing.T) {
		repo := &RepoMock{}
		cache := &CacheMock{}
		movies := []*models.Movie{{ID: 1, Title: "Interstellar"}}
		cache.On("Get", "movies:list:10", mock.Anything).Return(false, nil).Once()
		repo.On("ListMovies", mock.Anything, 10, 0).Return(movies, nil).Once()
		cache.On("Set", "movies:list:10", movies, time.Hour).Return(nil).Once()

		svc := New(repo, cache, newNoopLogger())
		got, err := svc.ListMovies(context.Background(), 10, 0)
		require.NoError(t, err)
		assert.Equal(t, movies, got)
	})

	t.Run("later pages bypass cache", func(t *testing.T) {
		repo := &RepoMock{}
		cache := &CacheMock{}
		repo.On("ListMovies", mock.Anything, 10, 20).Return([]*models.Movie{}, nil).Once()

		svc := New(repo, cache, newNoopLogger())
		_, err := svc.ListMovies(context.Background(), 10, 20)
		require.NoError(t, err)
		cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

func TestWatch(t *testing.T) {
	t.Run("returns movie for allowed plan", func(t *testing.T) {
		repo := &RepoMock{}
		movie := &models.Movie{ID: 7, Title: "Interstellar", WatchURL: "https://cdn.example.com/7", RequiredPlan: "standard"}
		repo.On("FindMovieByID", mock.Anything, 7).Return(movie, nil).Once()

		svc := New(repo, &CacheMock{}, newNoopLogger())
		got, err := svc.Watch(context.Background(), "standard", 7)
		require.NoError(t, err)
		assert.Equal(t, movie, got)
	})

	t.Run("unknown movie", func(t *testing.T) {
		repo := &RepoMock{}
		repo.On("FindMovieByID", mock.Anything, 99).Return(nil, sql.ErrNoRows).Once()

		svc := New(repo, &CacheMock{}, newNoopLogger())
		_, err := svc.Watch(context.Background(), "standard", 99)
		assert.ErrorIs(t, err, ErrMovieNotFound)
	})

	t.Run("plan too cheap", func(t *testing.T) {
		repo := &RepoMock{}
		movie := &models.Movie{ID: 7, Title: "Interstellar", RequiredPlan: "premium"}
		repo.On("FindMovieByID", mock.Anything, 7).Return(movie, nil).Once()
		repo.On("FindPlanByName", mock.Anything, "premium").
			Return(&models.Plan{Name: "premium", Price: 1000}, nil).Once()
		repo.On("FindPlanByName", mock.Anything, "standard").
			Return(&models.Plan{Name: "standard", Price: 600}, nil).Once()

		svc := New(repo, &CacheMock{}, newNoopLogger())
		_, err := svc.Watch(context.Background(), "standard", 7)
		assert.ErrorIs(t, err, ErrPlanRequired)
	})
}

func TestCanWatch(t *testing.T) {
	tests := []struct {
		name         string
		userPlan     string
		requiredPlan string
		setupMocks   func(r *RepoMock)
		wantErr      error
	}{
		{
			name:         "base movie open to everyone",
			userPlan:     "base",
			requiredPlan: "base",
		},
		{
			name:         "exact plan match",
			userPlan:     "standard",
			requiredPlan: "standard",
		},
		{
			name:         "higher-priced plan unlocks lower tier movie",
			userPlan:     "premium",
			requiredPlan: "standard",
			setupMocks: func(r *RepoMock) {
				r.On("FindPlanByName", mock.Anything, "standard").
					Return(&models.Plan{Name: "standard", Price: 600}, nil).Once()
				r.On("FindPlanByName", mock.Anything, "premium").
					Return(&models.Plan{Name: "premium", Price: 1000}, nil).Once()
			},
		},
		{
			name:         "base plan cannot watch paid movie",
			userPlan:     "base",
			requiredPlan: "premium",
			setupMocks: func(r *RepoMock) {
				r.On("FindPlanByName", mock.Anything, "premium").
					Return(&models.Plan{Name: "premium", Price: 1000}, nil).Once()
				r.On("FindPlanByName", mock.Anything, "base").
					Return(&models.Plan{Name: "base", Price: 0}, nil).Once()
			},
			wantErr: ErrPlanRequired,
		},
		{
			name:         "movie requiring deleted plan is locked",
			userPlan:     "standard",
			requiredPlan: "legacy",
			setupMocks: func(r *RepoMock) {
				r.On("FindPlanByName", mock.Anything, "legacy").Return(nil, sql.ErrNoRows).Once()
			},
			wantErr: ErrPlanRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &RepoMock{}
			if tt.setupMocks != nil {
				tt.setupMocks(repo)
			}
			svc := New(repo, &CacheMock{}, newNoopLogger())

			err := svc.CanWatch(context.Background(), tt.userPlan, tt.requiredPlan)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}
