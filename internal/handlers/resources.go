package handlers

import (
	"net/url"
	"time"

	"labelweb/internal/models"
	"labelweb/internal/proxy"

	"github.com/gin-gonic/gin"
)

// UnreadTimeout ограничивает запрос счетчика непрочитанных сообщений.
const UnreadTimeout = 5 * time.Second

// param возвращает путь ресурса с экранированным параметром маршрута.
func param(prefix, name, suffix string) func(c *gin.Context) string {
	return func(c *gin.Context) string {
		return prefix + url.PathEscape(c.Param(name)) + suffix
	}
}

func (h *Handler) registerResources(api *gin.RouterGroup) {
	f := h.forward

	keys := proxy.Route{
		Path: proxy.Static("/keys"),
		Messages: proxy.Messages{
			Forbidden: "API-ключи доступны на тарифе Бизнес",
			NotFound:  "Ключ не найден",
			Fallback:  "Ошибка работы с API-ключами",
		},
	}
	api.GET("/keys", f.Handle(keys))
	api.POST("/keys", f.Handle(keys))
	api.DELETE("/keys", f.Handle(keys))

	api.POST("/generate", f.Handle(proxy.Route{
		Path: proxy.Static("/labels/generate"),
		Messages: proxy.Messages{
			Forbidden: "Лимит этикеток на вашем тарифе исчерпан",
			Fallback:  "Ошибка генерации этикеток",
		},
	}))
	api.POST("/preflight", f.Handle(proxy.Route{
		Path:     proxy.Static("/labels/preflight"),
		Messages: proxy.Messages{Fallback: "Ошибка проверки файла"},
	}))

	api.GET("/tasks/:id", f.Handle(proxy.Route{
		Path:     param("/tasks/", "id", ""),
		Messages: proxy.Messages{NotFound: "Задача не найдена"},
	}))
	api.GET("/tasks/:id/download", f.Handle(proxy.Route{
		Path:     param("/tasks/", "id", "/download"),
		Download: true,
		Messages: proxy.Messages{
			NotFound: "Файл не найден или срок его хранения истек",
			Fallback: "Ошибка скачивания файла",
		},
	}))

	products := proxy.Route{
		Path:     proxy.Static("/products"),
		Query:    []string{"page", "limit", "search"},
		Messages: proxy.Messages{Fallback: "Ошибка загрузки товаров"},
	}
	api.GET("/products", f.Handle(products))
	api.POST("/products", f.Handle(proxy.Route{
		Path: proxy.Static("/products"),
		Messages: proxy.Messages{
			Forbidden: "Сохранение товаров доступно на платных тарифах",
			Fallback:  "Ошибка сохранения товара",
		},
	}))
	product := proxy.Route{
		Path: param("/products/", "barcode", ""),
		Messages: proxy.Messages{
			NotFound: "Товар не найден",
			Fallback: "Ошибка изменения товара",
		},
	}
	api.PUT("/products/:barcode", f.Handle(product))
	api.DELETE("/products/:barcode", f.Handle(product))

	prefs := proxy.Route{
		Path:     proxy.Static("/users/me/preferences"),
		Messages: proxy.Messages{Fallback: "Ошибка сохранения настроек"},
	}
	api.GET("/user/preferences", f.Handle(prefs))
	api.PUT("/user/preferences", f.Handle(prefs))
	api.GET("/user/stats", f.Handle(proxy.Route{
		Path:     proxy.Static("/users/me/stats"),
		Messages: proxy.Messages{Fallback: "Ошибка загрузки статистики"},
	}))

	api.POST("/support/message", f.Handle(proxy.Route{
		Path:     proxy.Static("/support/message"),
		Messages: proxy.Messages{Fallback: "Не удалось отправить сообщение"},
	}))
	api.GET("/support/unread", f.Soft(proxy.Route{
		Path:    proxy.Static("/support/unread"),
		Timeout: UnreadTimeout,
	}, models.CountResponse{Count: 0}))
}
