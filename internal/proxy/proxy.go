// Package proxy переводит входящий запрос в ровно один запрос к бэкенду
// и возвращает клиенту ответ бэкенда, приводя все ошибки к виду {"error": "..."}.
package proxy

import (
	"cmp"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"labelweb/internal/auth"
	"labelweb/internal/backend"
	"labelweb/internal/middleware"
	"labelweb/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Messages - тексты ошибок конкретного ресурса. Пустые поля заменяются общими текстами.
type Messages struct {
	Forbidden string // 403, например "Доступно на тарифе Бизнес"
	NotFound  string // 404
	Fallback  string // Прочие коды, если бэкенд не прислал detail
}

// Message подбирает текст ошибки для статуса бэкенда.
// detail из тела используется для 422 и как замена Fallback для прочих кодов.
func (m Messages) Message(status int, body []byte) string {
	detail := backend.Detail(body)
	switch status {
	case http.StatusUnauthorized:
		return models.MsgUnauthorized
	case http.StatusForbidden:
		return cmp.Or(m.Forbidden, detail, models.MsgForbidden)
	case http.StatusNotFound:
		return cmp.Or(m.NotFound, models.MsgNotFound)
	case http.StatusUnprocessableEntity:
		return cmp.Or(detail, models.MsgValidation)
	default:
		return cmp.Or(detail, m.Fallback, models.MsgRequestFailed)
	}
}

// Route описывает проксируемый ресурс.
type Route struct {
	// Path возвращает путь ресурса на бэкенде после /api/v1 (например "/tasks/42").
	Path func(c *gin.Context) string
	// Query - какие параметры строки запроса передавать; nil - все.
	Query []string
	// Download - маршрут отдает файл: к запросу добавляются X-Forwarded-For и X-Real-IP.
	Download bool
	// Timeout - собственный таймаут запроса; 0 - без таймаута.
	Timeout  time.Duration
	Messages Messages
}

// Static возвращает Path для фиксированного пути ресурса.
func Static(path string) func(c *gin.Context) string {
	return func(*gin.Context) string { return path }
}

// Forwarder создает обработчики прокси-маршрутов.
type Forwarder struct {
	Backend     *backend.Client
	Credentials auth.Extractor
}

// Handle возвращает обработчик, который всегда завершается одним корректным ответом:
// JSON бэкенда, файл бэкенда или {"error": "..."}.
func (f *Forwarder) Handle(r Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := f.Credentials.Token(c.Request)
		if !ok {
			abortError(c, http.StatusUnauthorized, models.MsgUnauthorized)
			return
		}

		resp, cancel, err := f.forward(c, r, token)
		defer cancel()
		if err != nil {
			zap.L().Error("Бэкенд недоступен",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(middleware.RequestIDKey)),
				zap.Error(err),
			)
			abortError(c, http.StatusInternalServerError, models.MsgServerError)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			msg := r.Messages.Message(resp.StatusCode, body)
			zap.L().Info("Бэкенд вернул ошибку",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", resp.StatusCode),
				zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			)
			abortError(c, resp.StatusCode, msg)
			return
		}

		if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 || isJSON(resp.Header.Get("Content-Type")) {
			passJSON(c, resp)
			return
		}
		streamFile(c, resp)
	}
}

// Soft возвращает обработчик для некритичных индикаторов интерфейса: при любой
// неудаче (нет токена, сетевая ошибка, таймаут, не-2xx, не JSON) отвечает 200 с fallback.
func (f *Forwarder) Soft(r Route, fallback any) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := f.Credentials.Token(c.Request)
		if !ok {
			c.JSON(http.StatusOK, fallback)
			return
		}

		resp, cancel, err := f.forward(c, r, token)
		defer cancel()
		if err != nil {
			zap.L().Warn("Некритичный запрос к бэкенду не выполнен",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.JSON(http.StatusOK, fallback)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.JSON(http.StatusOK, fallback)
			return
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil || !json.Valid(raw) {
			c.JSON(http.StatusOK, fallback)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
	}
}

// forward выполняет исходящий запрос. cancel нужно вызвать в любом случае.
func (f *Forwarder) forward(c *gin.Context, r Route, token string) (*http.Response, context.CancelFunc, error) {
	ctx := c.Request.Context()
	cancel := context.CancelFunc(func() {})
	if r.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
	}

	header := http.Header{}
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		header.Set(middleware.RequestIDHeader, id)
	}
	if r.Download {
		forwardClientIP(c, header)
	}

	var contentType string
	if c.Request.ContentLength != 0 {
		contentType = c.GetHeader("Content-Type")
	}

	resp, err := f.Backend.Do(ctx, backend.Request{
		Method:        c.Request.Method,
		Path:          r.Path(c),
		RawQuery:      backend.ForwardQuery(c.Request.URL.Query(), r.Query...),
		Body:          c.Request.Body,
		ContentLength: c.Request.ContentLength,
		ContentType:   contentType,
		Token:         token,
		Header:        header,
	})
	return resp, cancel, err
}

// forwardClientIP передает бэкенду адрес клиента для ограничения частоты скачиваний.
// X-Real-IP - адрес по правилам доверенных прокси роутера (SetTrustedProxies).
// Входящая цепочка X-Forwarded-For сохраняется, только если ее прислал доверенный
// прокси (тогда ClientIP отличается от адреса соединения); адрес соединения
// дописывается в конец. Цепочку от недоверенного клиента заменяет адрес соединения.
func forwardClientIP(c *gin.Context, header http.Header) {
	ip := c.ClientIP()
	peer := c.RemoteIP()

	xff := peer
	if prior := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); prior != "" && ip != peer {
		xff = prior + ", " + peer
	}
	header.Set("X-Forwarded-For", xff)
	header.Set("X-Real-IP", ip)
}

// passJSON отдает тело бэкенда без изменений со статусом 200.
// Пустое тело (например, ответ 204) заменяется на {"success": true}.
func passJSON(c *gin.Context, resp *http.Response) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		zap.L().Error("Ошибка чтения ответа бэкенда", zap.String("path", c.Request.URL.Path), zap.Error(err))
		abortError(c, http.StatusInternalServerError, models.MsgServerError)
		return
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
		return
	}
	if !json.Valid(raw) {
		zap.L().Error("Бэкенд вернул некорректный JSON", zap.String("path", c.Request.URL.Path))
		abortError(c, http.StatusInternalServerError, models.MsgServerError)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// streamFile передает файл бэкенда клиенту, сохраняя Content-Type и Content-Disposition.
func streamFile(c *gin.Context, resp *http.Response) {
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extra := map[string]string{}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		extra["Content-Disposition"] = cd
	}
	c.DataFromReader(http.StatusOK, resp.ContentLength, contentType, resp.Body, extra)
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg})
}
