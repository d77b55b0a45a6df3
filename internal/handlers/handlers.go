// Package handlers регистрирует все HTTP-маршруты веб-приложения:
// прокси-ресурсы бэкенда, вход через VK и Telegram, подсказки интерфейса,
// служебные robots.txt, sitemap.xml и /healthz.
package handlers

import (
	// Стандартные библиотеки
	"context"
	"net/http"
	"time"

	// Внутренние пакеты
	"labelweb/internal/auth"
	"labelweb/internal/backend"
	"labelweb/internal/config"
	"labelweb/internal/database"
	"labelweb/internal/middleware"
	"labelweb/internal/models"
	"labelweb/internal/proxy"

	// Сторонние библиотеки
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler держит зависимости всех маршрутов.
type Handler struct {
	cfg     config.Config
	backend *backend.Client
	forward *proxy.Forwarder
	creds   auth.Extractor
	cookies auth.CookieWriter
	journal *database.Journal // nil - журнал входов не ведется
}

// New собирает обработчики. journal может быть nil.
func New(cfg config.Config, be *backend.Client, journal *database.Journal) *Handler {
	creds := auth.Extractor{DevBypassToken: cfg.DevBypassToken}
	return &Handler{
		cfg:     cfg,
		backend: be,
		forward: &proxy.Forwarder{Backend: be, Credentials: creds},
		creds:   creds,
		cookies: auth.CookieWriter{Secure: cfg.CookieSecure},
		journal: journal,
	}
}

// Register подключает маршруты к роутеру. Middleware сессий
// (sessions.Sessions) должен быть подключен раньше.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/robots.txt", h.Robots)
	r.GET("/sitemap.xml", h.Sitemap)
	r.GET("/healthz", h.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.GET("/me", h.forward.Handle(proxy.Route{Path: proxy.Static("/auth/me")}))
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/vk", h.VKMiniAppLogin)
		authGroup.GET("/vk/pkce", h.VKPKCE)
		authGroup.POST("/vk/callback", h.VKCallback)
		authGroup.GET("/telegram/callback", h.TelegramCallback)
	}

	h.registerResources(api)

	nudges := api.Group("/user/nudges")
	nudges.Use(middleware.AuthRequired(h.creds))
	{
		nudges.GET("", h.Nudges)
		nudges.POST("/:name", h.IncrementNudge)
	}
}

// recordAuthEvent пишет событие в журнал. Ошибка журнала только логируется:
// вход и выход от журнала не зависят.
func (h *Handler) recordAuthEvent(c *gin.Context, provider, outcome, token string) {
	if h.journal == nil {
		return
	}
	ev := models.AuthEvent{
		Provider: provider,
		Outcome:  outcome,
		ClientIP: c.ClientIP(),
	}
	if token != "" {
		ev.TokenFingerprint = auth.Fingerprint(token)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 2*time.Second)
	defer cancel()
	if _, err := h.journal.RecordAuthEvent(ctx, ev); err != nil {
		zap.L().Error("Ошибка записи в журнал входов",
			zap.String("provider", provider),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
}

// Health отвечает 200, если журнал входов доступен.
func (h *Handler) Health(c *gin.Context) {
	if h.journal != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := h.journal.Ping(ctx); err != nil {
			zap.L().Error("Журнал входов недоступен", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestHeader возвращает заголовки для служебных запросов к бэкенду.
func requestHeader(c *gin.Context) http.Header {
	header := http.Header{}
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		header.Set(middleware.RequestIDHeader, id)
	}
	return header
}
