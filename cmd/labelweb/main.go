package main

import (
	// Стандартные библиотеки
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	// Внутренние пакеты
	"labelweb/internal/auth"
	"labelweb/internal/backend"
	"labelweb/internal/config"
	"labelweb/internal/database"
	"labelweb/internal/handlers"
	"labelweb/internal/logger"
	"labelweb/internal/middleware"

	// Сторонние библиотеки
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// checkOrCreateDir проверяет, что dirPath - директория, и создает ее при отсутствии.
func checkOrCreateDir(dirPath string) error {
	if dirPath == "" || dirPath == "/" || dirPath == "." {
		return fmt.Errorf("небезопасный путь для директории данных: %q", dirPath)
	}

	info, err := os.Stat(dirPath)
	if errors.Is(err, os.ErrNotExist) {
		zap.L().Info("Папка не найдена, создаем", zap.String("dir", dirPath))
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return fmt.Errorf("не удалось создать папку %s: %w", dirPath, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка при проверке папки %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("путь %s существует, но не является директорией", dirPath)
	}
	return nil
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "путь к YAML-файлу конфигурации")
	flag.Parse()

	// --- 1. Конфигурация ---
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if cfg.DevBypassToken != "" {
		log.Warn("Включен токен разработчика для localhost")
	}
	if cfg.UsesDefaultSecret() {
		log.Warn("COOKIE_SECRET не задан: ключи cookie-сессии получены из общеизвестного секрета")
	}
	if len(cfg.TrustedProxies) == 0 {
		log.Warn("TRUSTED_PROXIES пуст: адресом клиента считается адрес соединения")
	}

	// --- 2. Журнал входов ---
	if err := checkOrCreateDir(filepath.Dir(cfg.DBPath)); err != nil {
		log.Fatal("Папка для журнала недоступна", zap.Error(err))
	}
	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatal("Ошибка инициализации базы данных", zap.Error(err))
	}
	defer db.Close()

	// --- 3. Роутер ---
	if cfg.LogMode != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// Адрес клиента из X-Forwarded-For принимается только от прокси из TRUSTED_PROXIES.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Fatal("Ошибка установки доверенных прокси", zap.Error(err))
	}
	router.MaxMultipartMemory = 10 << 20

	hashKey, blockKey, err := auth.DeriveCookieKeys(cfg.CookieSecret)
	if err != nil {
		log.Fatal("Ошибка получения ключей cookie", zap.Error(err))
	}
	store := cookie.NewStore(hashKey, blockKey)
	store.Options(auth.CookieWriter{Secure: cfg.CookieSecure}.SessionOptions(auth.ModeSite))

	router.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery())
	router.Use(sessions.Sessions("labelweb_session", store))

	handlers.New(cfg, backend.New(cfg.BackendURL, nil), database.NewJournal(db)).Register(router)

	// --- 4. Запуск ---
	listenAddr := ":" + cfg.ListenPort
	log.Info("Сервер запускается",
		zap.String("addr", listenAddr),
		zap.String("backend", cfg.BackendURL),
	)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("Не удалось запустить сервер", zap.Error(err))
	}
}
