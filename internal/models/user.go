// Package models содержит доменные модели сервиса: пользователей, тарифы,
// фильмы и записи журнала операций с балансом, а также вспомогательные
// структуры для приёма данных из JSON-запросов.
package models

import "time"

// BasePlan — имя базового (бесплатного) тарифа. Пользователь на базовом
// тарифе не имеет даты следующего платежа.
const BasePlan = "base"

// User представляет зарегистрированного пользователя сервиса.
//
// Инварианты: Balance >= 0 всегда; Subscription == BasePlan тогда и только
// тогда, когда NextPaymentDate == nil.
type User struct {
	UID              string     // Уникальный идентификатор пользователя
	Username         string     // Имя пользователя (уникальное)
	Email            string     // Электронная почта
	PasswordHash     string     // Хэш пароля пользователя
	Role             string     // Роль пользователя, admin или user
	IsActive         bool       // Признак активной сессии
	LastActivity     *time.Time // Время последнего запроса пользователя
	RegistrationDate time.Time  // Дата регистрации
	Balance          int64      // Баланс в минимальных единицах валюты
	Subscription     string     // Имя текущего тарифа (слабая ссылка на plans.name)
	NextPaymentDate  *time.Time // Дата следующего списания, nil для базового тарифа
}

// HasPaidPlan сообщает, оформлен ли у пользователя платный тариф.
func (u *User) HasPaidPlan() bool {
	return u.Subscription != BasePlan
}
