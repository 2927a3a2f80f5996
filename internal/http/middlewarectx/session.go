package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/metrics"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
	"github.com/magabrotheeeer/kinozal-backend/internal/services/auth"
)

// Заголовки с уведомлениями о состоянии подписки.
const (
	// NoticeHeader сообщает о продлении или истечении подписки,
	// произошедшем при обработке этого запроса.
	NoticeHeader = "X-Subscription-Notice"
	// WarningHeader сообщает, что подписка истекает в течение суток.
	// Выставляется один раз за сессию.
	WarningHeader = "X-Subscription-Warning"
)

// Время жизни флага "предупреждение показано". Не меньше TTL токена,
// чтобы флаг пережил сессию, при входе флаг сбрасывается явно.
const warnFlagTTL = 24 * time.Hour

// SessionRepository определяет методы хранилища для контроля сессии.
type SessionRepository interface {
	// GetUserByUsername возвращает пользователя по имени.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// UpdateSessionState отмечает сессию активной или завершённой.
	UpdateSessionState(ctx context.Context, username string, isActive bool, lastActivity time.Time) error
	// TouchLastActivity продлевает окно активности сессии.
	TouchLastActivity(ctx context.Context, username string, now time.Time) error
}

// Billing проверяет срок подписки пользователя.
type Billing interface {
	EvaluateTime(ctx context.Context, username string, now time.Time) (*models.Notice, error)
}

// WarnFlags хранит одноразовые флаги предупреждений.
type WarnFlags interface {
	SetFlagOnce(ctx context.Context, key string, expiration time.Duration) (bool, error)
}

// SessionMiddleware контролирует активность сессии и срок подписки.
//
// Сессия, молчавшая дольше inactivityLimit, принудительно завершается с
// ответом 401. Для живой сессии окно активности продлевается, затем
// проверяется срок подписки: продление или перевод на базовый тариф
// отражается в заголовке X-Subscription-Notice, а о подписке, истекающей
// в течение суток, пользователь предупреждается заголовком
// X-Subscription-Warning один раз за сессию.
func SessionMiddleware(log *slog.Logger, repo SessionRepository, billing Billing, flags WarnFlags, inactivityLimit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SessionMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			username, ok := r.Context().Value(User).(string)
			if !ok || username == "" {
				log.Error("username not found in context")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}

			user, err := repo.GetUserByUsername(r.Context(), username)
			if err != nil {
				log.Error("failed to load user", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal server error"))
				return
			}

			now := time.Now().UTC()
			if !user.IsActive {
				log.Info("request with inactive session", slog.String("username", username))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("session is not active, login required"))
				return
			}
			if user.LastActivity == nil || now.Sub(*user.LastActivity) > inactivityLimit {
				if err := repo.UpdateSessionState(r.Context(), username, false, now); err != nil {
					log.Error("failed to close expired session", sl.Err(err))
				}
				metrics.IncSessionExpired()
				log.Info("session expired due to inactivity", slog.String("username", username))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("session expired due to inactivity, login required"))
				return
			}
			if err := repo.TouchLastActivity(r.Context(), username, now); err != nil {
				log.Error("failed to touch last activity", sl.Err(err))
			}

			notice, err := billing.EvaluateTime(r.Context(), username, now)
			if err != nil {
				log.Error("failed to evaluate subscription", sl.Err(err))
			}
			if notice != nil {
				w.Header().Set(NoticeHeader, notice.Kind)
			}

			warnIfExpiringSoon(r.Context(), w, log, flags, user, now)

			next.ServeHTTP(w, r)
		})
	}
}

// warnIfExpiringSoon выставляет заголовок-предупреждение, если подписка
// истекает в течение суток и предупреждение ещё не уходило в этой сессии.
func warnIfExpiringSoon(ctx context.Context, w http.ResponseWriter, log *slog.Logger, flags WarnFlags, user *models.User, now time.Time) {
	if !user.HasPaidPlan() || user.NextPaymentDate == nil {
		return
	}
	until := user.NextPaymentDate.Sub(now)
	if until <= 0 || until > 24*time.Hour {
		return
	}

	first, err := flags.SetFlagOnce(ctx, auth.WarnFlagKey(user.Username), warnFlagTTL)
	if err != nil {
		log.Error("failed to set warning flag", sl.Err(err))
		return
	}
	if first {
		w.Header().Set(WarningHeader, models.NoticeExpiringSoon)
	}
}
