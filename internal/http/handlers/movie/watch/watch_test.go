package watch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
	"github.com/magabrotheeeer/kinozal-backend/internal/services/catalog"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Watch(ctx context.Context, userPlan string, movieID int) (*models.Movie, error) {
	args := m.Called(ctx, userPlan, movieID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Movie), args.Error(1)
}

type UserProviderMock struct {
	mock.Mock
}

func (m *UserProviderMock) Info(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func doRequest(handler *Handler, movieID, username string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/movies/"+movieID+"/watch", nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", movieID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if username != "" {
		ctx = context.WithValue(ctx, middlewarectx.User, username)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWatchHandler_ServeHTTP(t *testing.T) {
	t.Run("allowed plan gets watch url", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		usersMock := new(UserProviderMock)
		usersMock.On("Info", mock.Anything, "alice").
			Return(&models.User{Username: "alice", Subscription: "premium"}, nil).Once()
		serviceMock.On("Watch", mock.Anything, "premium", 7).
			Return(&models.Movie{ID: 7, Title: "Interstellar", WatchURL: "https://cdn.example.com/7"}, nil).Once()

		handler := New(newNoopLogger(), serviceMock, usersMock)
		rec := doRequest(handler, "7", "alice")

		assert.Equal(t, http.StatusOK, rec.Code)
		var got map[string]any
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		data := got["data"].(map[string]any)
		assert.Equal(t, "https://cdn.example.com/7", data["watch_url"])
		serviceMock.AssertExpectations(t)
		usersMock.AssertExpectations(t)
	})

	t.Run("plan too cheap", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		usersMock := new(UserProviderMock)
		usersMock.On("Info", mock.Anything, "alice").
			Return(&models.User{Username: "alice", Subscription: "base"}, nil).Once()
		serviceMock.On("Watch", mock.Anything, "base", 7).
			Return(nil, catalog.ErrPlanRequired).Once()

		handler := New(newNoopLogger(), serviceMock, usersMock)
		rec := doRequest(handler, "7", "alice")

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown movie", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		usersMock := new(UserProviderMock)
		usersMock.On("Info", mock.Anything, "alice").
			Return(&models.User{Username: "alice", Subscription: "base"}, nil).Once()
		serviceMock.On("Watch", mock.Anything, "base", 99).
			Return(nil, catalog.ErrMovieNotFound).Once()

		handler := New(newNoopLogger(), serviceMock, usersMock)
		rec := doRequest(handler, "99", "alice")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad movie id", func(t *testing.T) {
		handler := New(newNoopLogger(), new(ServiceMock), new(UserProviderMock))
		rec := doRequest(handler, "abc", "alice")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing username", func(t *testing.T) {
		handler := New(newNoopLogger(), new(ServiceMock), new(UserProviderMock))
		rec := doRequest(handler, "7", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
