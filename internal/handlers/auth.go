package handlers

import (
	// Стандартные библиотеки
	"cmp"
	"errors"
	"net/http"
	"net/url"
	"strings"

	// Внутренние пакеты
	"labelweb/internal/auth"
	"labelweb/internal/backend"
	"labelweb/internal/bridge"
	"labelweb/internal/models"
	"labelweb/internal/nudge"

	// Сторонние библиотеки
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ключи сессии для входа через VK ID.
const (
	sessionPKCEVerifier = "vk_pkce_verifier"
	sessionPKCEState    = "vk_pkce_state"
)

// Тексты ошибок входа.
const (
	MsgVKLaunchInvalid = "Не удалось подтвердить вход через VK"
	MsgLoginIncomplete = "Недостаточно данных для входа"
	MsgStateMismatch   = "Сессия входа устарела, попробуйте еще раз"
)

// TelegramFailureRedirect - куда отправить браузер при неудачном входе через Telegram.
const TelegramFailureRedirect = "/login?error=telegram"

// VKCallbackRequest - тело POST /api/auth/vk/callback от виджета VK ID.
type VKCallbackRequest struct {
	Code         string `json:"code"`
	DeviceID     string `json:"device_id"`
	CodeVerifier string `json:"code_verifier"`
	State        string `json:"state"`
}

// LoginResponse - ответ входа в Mini App. Токен возвращается в теле,
// потому что во встроенном фрейме VK cookie может быть заблокирован.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
}

// VKMiniAppLogin обрабатывает вход из VK Mini App.
// Сначала пробуются подписанные параметры запуска, затем access_token моста VK.
func (h *Handler) VKMiniAppLogin(c *gin.Context) {
	var in bridge.VKLaunch
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgLoginIncomplete})
		return
	}

	assertion, err := bridge.VKChain().Resolve(in)
	if err != nil {
		zap.L().Info("Вход из VK Mini App без подтверждения личности", zap.Error(err))
		h.recordAuthEvent(c, "vk", "failed", "")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgVKLaunchInvalid})
		return
	}

	token, err := h.backend.ExchangeToken(c.Request.Context(), assertion.Path, assertion.Payload, requestHeader(c))
	if err != nil {
		h.loginFailed(c, assertion.Provider, err)
		return
	}

	h.cookies.Set(c, token, auth.ModeMiniApp)
	h.startSession(c, auth.ModeMiniApp)
	h.recordAuthEvent(c, assertion.Provider, "success", token)
	c.JSON(http.StatusOK, LoginResponse{Success: true, Token: token})
}

// VKPKCE выдает code_challenge и state для виджета VK ID.
// Verifier остается в сессии и подставляется в VKCallback, если клиент его не прислал.
func (h *Handler) VKPKCE(c *gin.Context) {
	p, err := auth.NewPKCE()
	if err != nil {
		zap.L().Error("Ошибка генерации PKCE", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.MsgServerError})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionPKCEVerifier, p.Verifier)
	session.Set(sessionPKCEState, p.State)
	if err := h.saveSession(session); err != nil {
		zap.L().Error("Ошибка сохранения сессии", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.MsgServerError})
		return
	}
	c.JSON(http.StatusOK, p)
}

// VKCallback обменивает код авторизации VK ID на токен сессии.
func (h *Handler) VKCallback(c *gin.Context) {
	var in VKCallbackRequest
	if err := c.ShouldBindJSON(&in); err != nil || in.Code == "" || in.DeviceID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgLoginIncomplete})
		return
	}

	session := sessions.Default(c)
	savedState, _ := session.Get(sessionPKCEState).(string)
	// Выданный state обязан вернуться в запросе.
	if savedState != "" && in.State != savedState {
		zap.L().Warn("state входа VK ID не совпадает", zap.String("ip", c.ClientIP()))
		h.recordAuthEvent(c, "vk_id", "failed", "")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgStateMismatch})
		return
	}
	if in.CodeVerifier == "" {
		in.CodeVerifier, _ = session.Get(sessionPKCEVerifier).(string)
	}
	// Пара PKCE одноразовая.
	session.Delete(sessionPKCEVerifier)
	session.Delete(sessionPKCEState)

	payload := map[string]string{
		"code":      in.Code,
		"device_id": in.DeviceID,
	}
	if in.CodeVerifier != "" {
		payload["code_verifier"] = in.CodeVerifier
	}

	token, err := h.backend.ExchangeToken(c.Request.Context(), "/auth/vk/callback", payload, requestHeader(c))
	if err != nil {
		_ = h.saveSession(session)
		h.loginFailed(c, "vk_id", err)
		return
	}

	h.cookies.Set(c, token, auth.ModeOAuth)
	h.startSession(c, auth.ModeOAuth)
	h.recordAuthEvent(c, "vk_id", "success", token)
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// TelegramCallback принимает редирект виджета Telegram с подписанными параметрами.
// Подпись проверяет бэкенд; здесь параметры только передаются дальше.
func (h *Handler) TelegramCallback(c *gin.Context) {
	q := c.Request.URL.Query()
	if q.Get("id") == "" || q.Get("hash") == "" {
		h.recordAuthEvent(c, "telegram", "failed", "")
		c.Redirect(http.StatusFound, TelegramFailureRedirect)
		return
	}

	token, err := h.backend.ExchangeToken(c.Request.Context(), "/auth/telegram", flatten(q), requestHeader(c))
	if err != nil {
		zap.L().Info("Вход через Telegram отклонен", zap.Error(err))
		h.recordAuthEvent(c, "telegram", "failed", "")
		c.Redirect(http.StatusFound, TelegramFailureRedirect)
		return
	}

	h.cookies.Set(c, token, auth.ModeOAuth)
	h.startSession(c, auth.ModeOAuth)
	h.recordAuthEvent(c, "telegram", "success", token)
	c.Redirect(http.StatusFound, h.cfg.TelegramRedirect)
}

// Logout удаляет cookie токена и счетчики подсказок.
// Для сессии Mini App или при ?context=vk cookie удаляется с атрибутами
// Mini App (SameSite=None).
func (h *Handler) Logout(c *gin.Context) {
	token, _ := h.creds.Token(c.Request)
	session := sessions.Default(c)

	mode := auth.ModeSite
	embedded, _ := session.Get(sessionMiniApp).(bool)
	if embedded || c.Query("context") == "vk" {
		mode = auth.ModeMiniApp
	}
	h.cookies.Clear(c, mode)

	nudge.Clear(session)
	session.Delete(sessionPKCEVerifier)
	session.Delete(sessionPKCEState)
	session.Delete(sessionMiniApp)
	session.Options(h.cookies.SessionOptions(mode))
	if err := session.Save(); err != nil {
		zap.L().Error("Ошибка сохранения сессии при выходе", zap.Error(err))
	}

	h.recordAuthEvent(c, "logout", "success", token)
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// loginFailed переводит ошибку обмена на токен в ответ клиенту.
func (h *Handler) loginFailed(c *gin.Context, provider string, err error) {
	h.recordAuthEvent(c, provider, "failed", "")

	var se *backend.StatusError
	if !errors.As(err, &se) {
		zap.L().Error("Ошибка обмена на токен",
			zap.String("provider", provider),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.MsgServerError})
		return
	}

	zap.L().Info("Бэкенд отклонил вход",
		zap.String("provider", provider),
		zap.Int("status", se.Status),
	)
	switch se.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: cmp.Or(se.Detail, models.MsgUnauthorized)})
	case http.StatusUnprocessableEntity:
		c.JSON(se.Status, models.ErrorResponse{Error: cmp.Or(se.Detail, models.MsgValidation)})
	default:
		c.JSON(se.Status, models.ErrorResponse{Error: cmp.Or(se.Detail, models.MsgRequestFailed)})
	}
}

// flatten берет первое значение каждого параметра запроса.
func flatten(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			out[k] = strings.TrimSpace(vs[0])
		}
	}
	return out
}
