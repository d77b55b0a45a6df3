package handlers

import (
	"encoding/xml"
	"errors"
	"net/http"
	"strings"

	"labelweb/internal/models"
	"labelweb/internal/nudge"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Закрытые для поисковых роботов разделы.
var disallowed = []string{"/app/", "/vk/", "/api/"}

// Публичные страницы для sitemap.xml.
var publicPages = []string{"/", "/login", "/pricing", "/faq", "/privacy", "/terms"}

// Robots отдает robots.txt.
func (h *Handler) Robots(c *gin.Context) {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	for _, p := range disallowed {
		b.WriteString("Disallow: " + p + "\n")
	}
	b.WriteString("\nSitemap: " + h.siteURL() + "/sitemap.xml\n")
	c.String(http.StatusOK, b.String())
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// Sitemap отдает sitemap.xml с публичными страницами сайта.
func (h *Handler) Sitemap(c *gin.Context) {
	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	base := h.siteURL()
	for _, p := range publicPages {
		set.URLs = append(set.URLs, sitemapURL{Loc: base + p})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		zap.L().Error("Ошибка формирования sitemap.xml", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}

func (h *Handler) siteURL() string {
	return strings.TrimRight(h.cfg.SiteURL, "/")
}

// Nudges возвращает счетчики подсказок текущей сессии.
func (h *Handler) Nudges(c *gin.Context) {
	c.JSON(http.StatusOK, nudge.Get(sessions.Default(c)))
}

// IncrementNudge отмечает очередной показ подсказки.
func (h *Handler) IncrementNudge(c *gin.Context) {
	session := sessions.Default(c)
	n, err := nudge.Increment(session, c.Param("name"))
	if errors.Is(err, nudge.ErrUnknown) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Подсказка не найдена"})
		return
	}
	if err == nil {
		err = h.saveSession(session)
	}
	if err != nil {
		zap.L().Error("Ошибка сохранения счетчика подсказки", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.MsgServerError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "count": n})
}
