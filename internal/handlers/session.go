package handlers

import (
	"labelweb/internal/auth"
	"labelweb/internal/nudge"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// sessionMiniApp отмечает сессию, открытую внутри iframe VK Mini App.
const sessionMiniApp = "mini_app"

// saveSession сохраняет сессию. Сессия Mini App всегда пишется с SameSite=None
// и Secure, иначе браузер не пришлет ее из стороннего iframe.
func (h *Handler) saveSession(s sessions.Session) error {
	if embedded, _ := s.Get(sessionMiniApp).(bool); embedded {
		s.Options(h.cookies.SessionOptions(auth.ModeMiniApp))
	}
	return s.Save()
}

// startSession заводит счетчики подсказок для нового входа.
func (h *Handler) startSession(c *gin.Context, mode auth.CookieMode) {
	session := sessions.Default(c)
	nudge.Init(session)
	if mode == auth.ModeMiniApp {
		session.Set(sessionMiniApp, true)
	} else {
		session.Delete(sessionMiniApp)
	}
	if err := h.saveSession(session); err != nil {
		zap.L().Error("Ошибка сохранения сессии после входа", zap.Error(err))
	}
}
