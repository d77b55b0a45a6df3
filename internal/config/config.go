package config

import (
	// Стандартные библиотеки
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	// Сторонние библиотеки
	"gopkg.in/yaml.v2" // Файл конфигурации в формате YAML
)

// Config содержит все настройки веб-приложения.
// Значения читаются сначала из YAML-файла (если он задан), затем переопределяются
// переменными окружения.
type Config struct {
	ListenPort       string `yaml:"listen_port"`       // Порт HTTP-сервера
	BackendURL       string `yaml:"backend_url"`       // Базовый адрес внешнего бэкенда (без /api/v1)
	CookieSecret     string `yaml:"cookie_secret"`     // Секрет для ключей cookie-сессии
	CookieSecure     bool   `yaml:"cookie_secure"`     // Флаг Secure для cookie на обычном сайте
	DevBypassToken   string `yaml:"dev_bypass_token"`  // Токен разработчика для localhost; пусто - отключено
	DBPath           string `yaml:"db_path"`           // Путь к файлу журнала входов
	SiteURL          string `yaml:"site_url"`          // Публичный адрес сайта для sitemap.xml
	LogMode          string `yaml:"log_mode"`          // production или development
	TelegramRedirect string `yaml:"telegram_redirect"` // Куда отправить браузер после входа через Telegram

	// TrustedProxies - адреса или подсети прокси (Nginx), которым разрешено
	// передавать адрес клиента в X-Forwarded-For. Пусто - не доверять никому.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DefaultCookieSecret - секрет по умолчанию. Ключи cookie из него известны всем,
// в рабочей среде его нужно заменить через COOKIE_SECRET.
const DefaultCookieSecret = "fallback-secret-change-in-production"

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() Config {
	return Config{
		ListenPort:       "8080",
		CookieSecret:     DefaultCookieSecret,
		DBPath:           "/app/data/labelweb.db",
		SiteURL:          "http://localhost:8080",
		LogMode:          "production",
		TelegramRedirect: "/app",
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML-файл по пути path
// (пустой путь - файл не читается), затем переменные окружения.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("не удалось открыть файл конфигурации %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("ошибка разбора файла конфигурации %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ListenPort = getEnv("LISTEN_PORT", cfg.ListenPort)
	cfg.BackendURL = getEnv("BACKEND_URL", cfg.BackendURL)
	cfg.CookieSecret = getEnv("COOKIE_SECRET", cfg.CookieSecret)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", cfg.CookieSecure)
	cfg.DevBypassToken = getEnv("DEV_BYPASS_TOKEN", cfg.DevBypassToken)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.SiteURL = getEnv("SITE_URL", cfg.SiteURL)
	cfg.LogMode = getEnv("LOG_MODE", cfg.LogMode)
	cfg.TelegramRedirect = getEnv("TELEGRAM_REDIRECT", cfg.TelegramRedirect)
	cfg.TrustedProxies = getEnvList("TRUSTED_PROXIES", cfg.TrustedProxies)
}

// UsesDefaultSecret сообщает, что COOKIE_SECRET не задан и используется DefaultCookieSecret.
func (c Config) UsesDefaultSecret() bool {
	return c.CookieSecret == DefaultCookieSecret
}

// Validate проверяет обязательные параметры.
func (c Config) Validate() error {
	if c.ListenPort == "" {
		return fmt.Errorf("LISTEN_PORT не может быть пустым")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL не задан")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL должен быть абсолютным http(s) адресом: %q", c.BackendURL)
	}
	if c.CookieSecret == "" {
		return fmt.Errorf("COOKIE_SECRET не может быть пустым")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH не может быть пустым")
	}
	if c.LogMode != "production" && c.LogMode != "development" {
		return fmt.Errorf("LOG_MODE должен быть production или development, получено %q", c.LogMode)
	}
	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES: %q не является IP-адресом или подсетью", p)
		}
	}
	return nil
}

// getEnv получает значение переменной окружения по ключу.
// Если переменная не установлена или пуста, возвращает fallback.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

// getEnvList читает список через запятую; пустые элементы отбрасываются.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
