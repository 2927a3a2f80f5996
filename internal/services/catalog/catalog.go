// Package catalog содержит бизнес-логику каталога: тарифы и фильмы,
// кеширование списков и проверку доступа к просмотру по тарифу.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Ошибки каталога.
var (
	// ErrMovieNotFound фильм не найден.
	ErrMovieNotFound = errors.New("movie not found")
	// ErrPlanRequired тариф пользователя не даёт доступ к фильму.
	ErrPlanRequired = errors.New("subscription plan does not allow watching this movie")
)

// Ключи кеша списков.
const (
	plansCacheKey  = "plans:list"
	moviesCacheKey = "movies:list"
	cacheTTL       = time.Hour
)

// Repository определяет методы хранилища, необходимые каталогу.
type Repository interface {
	// CreatePlan добавляет тариф и возвращает его ID.
	CreatePlan(ctx context.Context, plan models.Plan) (int, error)
	// UpdatePlan обновляет тариф по ID.
	UpdatePlan(ctx context.Context, plan models.Plan, id int) (int, error)
	// DeletePlan удаляет тариф по ID.
	DeletePlan(ctx context.Context, id int) (int, error)
	// ListPlans возвращает все тарифы.
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	// FindPlanByName возвращает тариф по имени.
	FindPlanByName(ctx context.Context, name string) (*models.Plan, error)
	// CreateMovie добавляет фильм и возвращает его ID.
	CreateMovie(ctx context.Context, movie models.Movie) (int, error)
	// UpdateMovie обновляет фильм по ID.
	UpdateMovie(ctx context.Context, movie models.Movie, id int) (int, error)
	// DeleteMovie удаляет фильм по ID.
	DeleteMovie(ctx context.Context, id int) (int, error)
	// ListMovies возвращает фильмы с пагинацией.
	ListMovies(ctx context.Context, limit, offset int) ([]*models.Movie, error)
	// FindMovieByID возвращает фильм по ID.
	FindMovieByID(ctx context.Context, id int) (*models.Movie, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// Service реализует операции каталога.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// ListPlans возвращает список тарифов, используя кеш или хранилище.
func (s *Service) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	var result []*models.Plan
	found, err := s.cache.Get(plansCacheKey, &result)
	if err != nil {
		return nil, err
	}
	if found {
		return result, nil
	}

	result, err = s.repo.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(plansCacheKey, result, cacheTTL); err != nil {
		s.log.Warn("failed to cache plans", slog.String("key", plansCacheKey), slog.Any("err", err))
	}
	return result, nil
}

// CreatePlan добавляет тариф и инвалидирует кеш списка.
func (s *Service) CreatePlan(ctx context.Context, req models.DummyPlan) (int, error) {
	id, err := s.repo.CreatePlan(ctx, models.Plan{
		Name:        req.Name,
		Price:       req.Price,
		IsActive:    req.IsActive,
		Description: req.Description,
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(plansCacheKey)
	s.log.Info("created new plan", slog.Int("id", id), slog.String("name", req.Name))
	return id, nil
}

// UpdatePlan обновляет тариф и инвалидирует кеш списка.
func (s *Service) UpdatePlan(ctx context.Context, req models.DummyPlan, id int) (int, error) {
	count, err := s.repo.UpdatePlan(ctx, models.Plan{
		Name:        req.Name,
		Price:       req.Price,
		IsActive:    req.IsActive,
		Description: req.Description,
	}, id)
	if err != nil {
		return 0, err
	}
	s.invalidate(plansCacheKey)
	return count, nil
}

// DeletePlan удаляет тариф и инвалидирует кеш списка.
func (s *Service) DeletePlan(ctx context.Context, id int) (int, error) {
	count, err := s.repo.DeletePlan(ctx, id)
	if err != nil {
		return 0, err
	}
	s.invalidate(plansCacheKey)
	return count, nil
}

// ListMovies возвращает первую страницу каталога из кеша или хранилища.
// Страницы дальше первой читаются напрямую из хранилища.
func (s *Service) ListMovies(ctx context.Context, limit, offset int) ([]*models.Movie, error) {
	if offset != 0 {
		return s.repo.ListMovies(ctx, limit, offset)
	}

	var result []*models.Movie
	cacheKey := fmt.Sprintf("%s:%d", moviesCacheKey, limit)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		return nil, err
	}
	if found {
		return result, nil
	}

	result, err = s.repo.ListMovies(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(cacheKey, result, cacheTTL); err != nil {
		s.log.Warn("failed to cache movies", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return result, nil
}

// CreateMovie добавляет фильм и инвалидирует кеш каталога.
func (s *Service) CreateMovie(ctx context.Context, req models.DummyMovie) (int, error) {
	id, err := s.repo.CreateMovie(ctx, models.Movie{
		Title:        req.Title,
		Genre:        req.Genre,
		Year:         req.Year,
		ImageURL:     req.ImageURL,
		WatchURL:     req.WatchURL,
		AgeRating:    req.AgeRating,
		RequiredPlan: req.RequiredPlan,
	})
	if err != nil {
		return 0, err
	}
	s.invalidateMovies()
	s.log.Info("created new movie", slog.Int("id", id), slog.String("title", req.Title))
	return id, nil
}

// UpdateMovie обновляет фильм и инвалидирует кеш каталога.
func (s *Service) UpdateMovie(ctx context.Context, req models.DummyMovie, id int) (int, error) {
	count, err := s.repo.UpdateMovie(ctx, models.Movie{
		Title:        req.Title,
		Genre:        req.Genre,
		Year:         req.Year,
		ImageURL:     req.ImageURL,
		WatchURL:     req.WatchURL,
		AgeRating:    req.AgeRating,
		RequiredPlan: req.RequiredPlan,
	}, id)
	if err != nil {
		return 0, err
	}
	s.invalidateMovies()
	return count, nil
}

// DeleteMovie удаляет фильм и инвалидирует кеш каталога.
func (s *Service) DeleteMovie(ctx context.Context, id int) (int, error) {
	count, err := s.repo.DeleteMovie(ctx, id)
	if err != nil {
		return 0, err
	}
	s.invalidateMovies()
	return count, nil
}

// Watch возвращает фильм со ссылкой на просмотр, если тариф пользователя
// даёт к нему доступ.
func (s *Service) Watch(ctx context.Context, userPlan string, movieID int) (*models.Movie, error) {
	movie, err := s.repo.FindMovieByID(ctx, movieID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.CanWatch(ctx, userPlan, movie.RequiredPlan); err != nil {
		return nil, err
	}
	return movie, nil
}

// CanWatch проверяет, даёт ли тариф пользователя доступ к фильму.
// Доступ открыт, если цена тарифа пользователя не ниже цены тарифа,
// требуемого фильмом.
func (s *Service) CanWatch(ctx context.Context, userPlan, requiredPlan string) error {
	if requiredPlan == models.BasePlan || requiredPlan == "" || userPlan == requiredPlan {
		return nil
	}

	required, err := s.repo.FindPlanByName(ctx, requiredPlan)
	if errors.Is(err, sql.ErrNoRows) {
		// Фильм требует несуществующий тариф: закрываем доступ всем,
		// кроме случая совпадения имён выше.
		return ErrPlanRequired
	}
	if err != nil {
		return err
	}

	current, err := s.repo.FindPlanByName(ctx, userPlan)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlanRequired
	}
	if err != nil {
		return err
	}

	if current.Price < required.Price {
		return ErrPlanRequired
	}
	return nil
}

func (s *Service) invalidate(key string) {
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", key), slog.Any("err", err))
	}
}

func (s *Service) invalidateMovies() {
	// Кешируются только первые страницы с типовыми лимитами.
	for _, limit := range []int{10, 20, 50, 100} {
		s.invalidate(fmt.Sprintf("%s:%d", moviesCacheKey, limit))
	}
}
