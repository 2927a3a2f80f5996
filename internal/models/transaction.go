package models

import "time"

// Типы операций журнала. Сумма хранится без знака, знак определяется типом:
// deposit, refund и renewal-списание трактуются по типу операции.
const (
	OperationDeposit      = "deposit"      // Пополнение баланса
	OperationWithdrawal   = "withdrawal"   // Вывод средств
	OperationSubscription = "subscription" // Оплата тарифа при оформлении
	OperationRefund       = "refund"       // Возврат при отмене тарифа
	OperationRenewal      = "renewal"      // Списание при автопродлении
)

// Transaction представляет неизменяемую запись журнала операций с балансом.
// Записи создаются только вместе с изменением баланса, в одной транзакции,
// и никогда не изменяются и не удаляются.
type Transaction struct {
	ID            int64     // Идентификатор записи
	UserUID       string    // Владелец записи
	Amount        int64     // Сумма операции, всегда положительная
	PlanName      string    // Снимок имени тарифа на момент операции, "-" для операций без тарифа
	OperationType string    // Тип операции, один из Operation*
	CreatedAt     time.Time // Время операции
}

// Signed возвращает сумму операции со знаком: положительную для операций,
// увеличивающих баланс, отрицательную для списаний.
func (t *Transaction) Signed() int64 {
	switch t.OperationType {
	case OperationDeposit, OperationRefund:
		return t.Amount
	case OperationWithdrawal, OperationSubscription, OperationRenewal:
		return -t.Amount
	}
	return 0
}
