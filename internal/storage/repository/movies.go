package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// CreateMovie вставляет новый фильм и возвращает его ID.
func (s *Storage) CreateMovie(ctx context.Context, movie models.Movie) (int, error) {
	const op = "storage.CreateMovie"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO movies (title, genre, year, image_url, watch_url, age_rating, required_plan)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		movie.Title, movie.Genre, movie.Year, movie.ImageURL,
		movie.WatchURL, movie.AgeRating, movie.RequiredPlan).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// UpdateMovie обновляет фильм по его ID и возвращает количество изменённых строк.
func (s *Storage) UpdateMovie(ctx context.Context, movie models.Movie, id int) (int, error) {
	const op = "storage.UpdateMovie"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE movies
			  SET title = $1, genre = $2, year = $3, image_url = $4,
			      watch_url = $5, age_rating = $6, required_plan = $7
			  WHERE id = $8`
	result, err := s.DB.ExecContext(ctx, query,
		movie.Title, movie.Genre, movie.Year, movie.ImageURL,
		movie.WatchURL, movie.AgeRating, movie.RequiredPlan, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// DeleteMovie удаляет фильм по ID и возвращает количество удалённых строк.
func (s *Storage) DeleteMovie(ctx context.Context, id int) (int, error) {
	const op = "storage.DeleteMovie"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM movies WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// FindMovieByID возвращает фильм по его ID.
func (s *Storage) FindMovieByID(ctx context.Context, id int) (*models.Movie, error) {
	const op = "storage.FindMovieByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, title, genre, year, image_url, watch_url, age_rating, required_plan
			  FROM movies
			  WHERE id = $1`
	var item models.Movie
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.Title,
		&item.Genre, &item.Year, &item.ImageURL, &item.WatchURL,
		&item.AgeRating, &item.RequiredPlan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// ListMovies возвращает список всех фильмов с пагинацией.
func (s *Storage) ListMovies(ctx context.Context, limit, offset int) ([]*models.Movie, error) {
	const op = "storage.ListMovies"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, title, genre, year, image_url, watch_url, age_rating, required_plan
			  FROM movies
			  ORDER BY id
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Movie
	for rows.Next() {
		var item models.Movie
		if err := rows.Scan(&item.ID, &item.Title, &item.Genre, &item.Year,
			&item.ImageURL, &item.WatchURL, &item.AgeRating, &item.RequiredPlan); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
