// Package metrics содержит счётчики Prometheus для операций с балансом,
// подписками и сессиями. Метрики отдаются на /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ledgerOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Записи журнала операций по типам (deposit/withdrawal/subscription/refund/renewal).",
		},
		[]string{"operation"},
	)

	renewalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_renewals_total",
			Help: "Продления подписок по результату (renewed/expired).",
		},
		[]string{"result"},
	)

	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Сессии, завершённые по неактивности.",
		},
	)

	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Платежи через шлюз по статусам (initiated/succeeded/failed).",
		},
		[]string{"status"},
	)

	noticesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notices_sent_total",
			Help: "Отправленные почтовые уведомления по типам.",
		},
		[]string{"kind"},
	)
)

// MustRegister регистрирует метрики в реестре по умолчанию. Повторные
// вызовы безопасны.
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			ledgerOperationsTotal,
			renewalsTotal,
			sessionsExpiredTotal,
			paymentsTotal,
			noticesSentTotal,
		)
	})
}

// IncLedgerOperation учитывает новую запись журнала операций.
func IncLedgerOperation(operation string) {
	ledgerOperationsTotal.WithLabelValues(operation).Inc()
}

// IncRenewal учитывает результат проверки срока подписки.
func IncRenewal(result string) {
	renewalsTotal.WithLabelValues(result).Inc()
}

// IncSessionExpired учитывает сессию, закрытую по неактивности.
func IncSessionExpired() {
	sessionsExpiredTotal.Inc()
}

// IncPayment учитывает платёж через шлюз.
func IncPayment(status string) {
	paymentsTotal.WithLabelValues(status).Inc()
}

// IncNoticeSent учитывает отправленное уведомление.
func IncNoticeSent(kind string) {
	noticesSentTotal.WithLabelValues(kind).Inc()
}
