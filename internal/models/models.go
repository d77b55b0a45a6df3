package models

import (
	// Стандартные библиотеки
	"time" // Для отметок времени в журнале входов
)

// TaskStatus - состояние фоновой задачи генерации этикеток.
type TaskStatus string

const (
	// TaskIdle - задача не задана, опрос не ведется (локальное состояние клиента).
	TaskIdle       TaskStatus = "idle"
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// IsTerminal сообщает, является ли состояние конечным.
// После completed или failed задача больше не меняется.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task представляет состояние задачи, как его возвращает бэкенд через GET /api/tasks/{id}.
// ResultURL присутствует только у completed, Error - только у failed.
type Task struct {
	ID          string     `json:"id"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"`               // Процент выполнения 0-100
	ResultURL   string     `json:"result_url,omitempty"`   // Ссылка на скачивание результата
	Error       string     `json:"error,omitempty"`        // Сообщение об ошибке
	LabelsCount *int       `json:"labels_count,omitempty"` // Количество этикеток (необязательно)
}

// Общие тексты ошибок в конверте ErrorResponse.
const (
	MsgUnauthorized  = "Не авторизован"
	MsgServerError   = "Ошибка сервера"
	MsgForbidden     = "Недостаточно прав"
	MsgNotFound      = "Не найдено"
	MsgValidation    = "Ошибка валидации данных"
	MsgRequestFailed = "Ошибка выполнения запроса"
)

// ErrorResponse - единый конверт ошибки, который возвращает любой прокси-маршрут.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CountResponse - ответ маршрутов-счетчиков (например, непрочитанные сообщения поддержки).
type CountResponse struct {
	Count int `json:"count"`
}

// SuccessResponse возвращается, когда бэкенд ответил 2xx без тела.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// AuthEvent - запись журнала входов и выходов.
// Сам токен не хранится, только его отпечаток.
type AuthEvent struct {
	ID               int64     `json:"id"`
	Provider         string    `json:"provider"` // vk, vk_id, telegram, logout
	Outcome          string    `json:"outcome"`  // success или failed
	ClientIP         string    `json:"client_ip"`
	TokenFingerprint string    `json:"token_fingerprint"` // Первые байты SHA-256 от токена (hex)
	CreatedAt        time.Time `json:"created_at"`
}
