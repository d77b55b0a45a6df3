package middleware

import (
	// Стандартные библиотеки
	"net/http" // Для кодов статуса HTTP
	"time"     // Для замера длительности запроса

	// Внутренние пакеты
	"labelweb/internal/auth"   // Для извлечения токена из cookie
	"labelweb/internal/models" // Для конверта ошибки

	// Сторонние библиотеки
	"github.com/gin-gonic/gin"
	"github.com/google/uuid" // Идентификаторы запросов
	"go.uber.org/zap"        // Структурированные логи
)

const (
	// RequestIDHeader - заголовок с идентификатором запроса (входящий и исходящий).
	RequestIDHeader = "X-Request-Id"
	// RequestIDKey - ключ идентификатора запроса в контексте Gin.
	RequestIDKey = "requestID"
	// TokenKey - ключ bearer-токена в контексте Gin (выставляет AuthRequired).
	TokenKey = "token"
)

// RequestID присваивает каждому запросу идентификатор.
// Идентификатор от клиента принимается, только если это корректный UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger пишет одну строку лога на каждый запрос.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", c.GetString(RequestIDKey)),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			zap.L().Error("Запрос завершился ошибкой сервера", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			zap.L().Warn("Запрос отклонен", fields...)
		default:
			zap.L().Info("Запрос обработан", fields...)
		}
	}
}

// Recovery перехватывает панику в обработчике и отвечает 500 в едином конверте ошибки.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				zap.L().Error("Паника в обработчике",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(RequestIDKey)),
				)
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.MsgServerError})
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// AuthRequired пропускает запрос дальше, только если у него есть токен сессии.
// Без токена отвечает 401 {"error": "Не авторизован"}; токен сохраняется в контексте под TokenKey.
func AuthRequired(credentials auth.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := credentials.Token(c.Request)
		if !ok {
			zap.L().Info("Доступ без авторизации",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: models.MsgUnauthorized})
			return
		}
		c.Set(TokenKey, token)
		c.Next()
	}
}
