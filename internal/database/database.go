package database

import (
	// Стандартные библиотеки
	"context"      // Для отмены запросов к БД вместе с HTTP-запросом
	"database/sql" // Основной пакет для работы с SQL базами данных
	"fmt"          // Для форматирования ошибок
	"time"         // Для времени событий и настроек пула

	// Внутренние пакеты
	"labelweb/internal/models" // Для структуры AuthEvent

	// Сторонние библиотеки
	"go.uber.org/zap"

	// Драйвер SQLite регистрируется под именем "sqlite" через пустой импорт.
	_ "modernc.org/sqlite"
)

// InitDB открывает файл SQLite, настраивает соединение и создает таблицы.
func InitDB(dataSourceName string) (*sql.DB, error) {
	// WAL - чтение не блокируется записью; busy_timeout - ожидание блокировки до 5 секунд.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dataSourceName)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии %s: %w", dataSourceName, err)
	}

	// Для SQLite используем одно соединение: параллельная запись в один файл затруднена.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при проверке соединения с %s: %w", dataSourceName, err)
	}

	if err = createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при создании таблиц: %w", err)
	}
	zap.L().Info("База данных журнала готова", zap.String("path", dataSourceName))
	return db, nil
}

// createTables создает таблицу auth_events и индекс по времени, если их еще нет.
func createTables(db *sql.DB) error {
	authEventsSQL := `
	CREATE TABLE IF NOT EXISTS auth_events (
		id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,                        -- vk, vk_id, telegram, logout
		outcome TEXT NOT NULL,                         -- success или failed
		client_ip TEXT NOT NULL DEFAULT '',
		token_fingerprint TEXT NOT NULL DEFAULT '',    -- отпечаток, не сам токен
		created_at DATETIME NOT NULL
	);`
	if _, err := db.Exec(authEventsSQL); err != nil {
		return fmt.Errorf("ошибка при создании таблицы auth_events: %w", err)
	}

	indexSQL := `CREATE INDEX IF NOT EXISTS idx_auth_events_created_at ON auth_events (created_at);`
	if _, err := db.Exec(indexSQL); err != nil {
		return fmt.Errorf("ошибка при создании индекса auth_events: %w", err)
	}
	return nil
}

// Journal - журнал входов и выходов пользователей.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// NewJournal оборачивает открытое соединение с БД.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Ping проверяет доступность БД (для /healthz).
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// RecordAuthEvent добавляет запись в журнал и возвращает ее ID.
// Если CreatedAt не задан, используется текущее время (UTC).
func (j *Journal) RecordAuthEvent(ctx context.Context, ev models.AuthEvent) (int64, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = j.now().UTC()
	}
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO auth_events (provider, outcome, client_ip, token_fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.Provider, ev.Outcome, ev.ClientIP, ev.TokenFingerprint, ev.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка записи события входа (%s/%s): %w", ev.Provider, ev.Outcome, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения ID события входа: %w", err)
	}
	return id, nil
}

// RecentAuthEvents возвращает последние limit событий, новые первыми.
func (j *Journal) RecentAuthEvents(ctx context.Context, limit int) ([]models.AuthEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, provider, outcome, client_ip, token_fingerprint, created_at
		FROM auth_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала входов: %w", err)
	}
	defer rows.Close()

	var events []models.AuthEvent
	for rows.Next() {
		var ev models.AuthEvent
		if err := rows.Scan(&ev.ID, &ev.Provider, &ev.Outcome, &ev.ClientIP, &ev.TokenFingerprint, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования события входа: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода журнала входов: %w", err)
	}
	return events, nil
}
