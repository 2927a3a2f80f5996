package models

// Movie представляет фильм из каталога. Доступ к фильму открывается
// тарифом RequiredPlan и всеми тарифами дороже него.
type Movie struct {
	ID           int    // Идентификатор фильма
	Title        string // Название
	Genre        string // Жанр
	Year         int    // Год выпуска
	ImageURL     string // Ссылка на постер
	WatchURL     string // Ссылка на просмотр
	AgeRating    string // Возрастной рейтинг
	RequiredPlan string // Минимальный тариф для просмотра (слабая ссылка на plans.name)
}

// DummyMovie используется для приёма данных фильма из JSON-запроса администратора.
type DummyMovie struct {
	Title        string `json:"title" validate:"required,max=100"`
	Genre        string `json:"genre" validate:"required,max=50"`
	Year         int    `json:"year" validate:"required,gte=1900"`
	ImageURL     string `json:"image_url" validate:"required,url"`
	WatchURL     string `json:"watch_url" validate:"required,url"`
	AgeRating    string `json:"age_rating" validate:"required,max=3"`
	RequiredPlan string `json:"required_plan" validate:"required"`
}
