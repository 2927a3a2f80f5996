package models

// Plan представляет тариф подписки из каталога.
type Plan struct {
	ID          int    // Идентификатор тарифа
	Name        string // Имя тарифа (уникальное)
	Price       int64  // Цена за 30 дней, неотрицательная
	IsActive    bool   // Доступен ли тариф для оформления
	Description string // Описание тарифа
}

// DummyPlan используется для приёма данных тарифа из JSON-запроса
// администратора, прежде чем конвертировать их в Plan.
type DummyPlan struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`   // Имя тарифа
	Price       int64  `json:"price" validate:"gte=0"`                  // Цена (>= 0)
	IsActive    bool   `json:"is_active"`                               // Доступен ли для оформления
	Description string `json:"description" validate:"required,max=500"` // Описание
}
