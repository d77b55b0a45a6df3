package auth

import (
	// Стандартные библиотеки
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	// Сторонние библиотеки
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// CookieName - имя HTTP-only cookie с bearer-токеном сессии.
const CookieName = "token"

// SessionMaxAge - время жизни cookie с токеном в секундах (7 дней).
const SessionMaxAge = 7 * 24 * 60 * 60

// Extractor извлекает bearer-токен из входящего запроса.
//
// Порядок: cookie "token"; если его нет и запрос пришел на локальный адрес разработки,
// подставляется DevBypassToken. Пустой DevBypassToken полностью отключает обход.
type Extractor struct {
	DevBypassToken string
}

// Token возвращает токен для исходящего запроса к бэкенду.
// Второе значение false означает, что учетных данных нет.
func (e Extractor) Token(r *http.Request) (string, bool) {
	if ck, err := r.Cookie(CookieName); err == nil && ck.Value != "" {
		return ck.Value, true
	}
	if e.DevBypassToken != "" && IsLocalHost(r.Host) {
		return e.DevBypassToken, true
	}
	return "", false
}

// IsLocalHost сообщает, указывает ли значение заголовка Host на локальную разработку.
func IsLocalHost(host string) bool {
	h := host
	if hh, _, err := net.SplitHostPort(host); err == nil {
		h = hh
	}
	h = strings.ToLower(strings.Trim(h, "[]"))
	return h == "localhost" || h == "127.0.0.1" || h == "::1"
}

// CookieMode определяет контекст, в котором выставляется cookie сессии.
type CookieMode int

const (
	// ModeSite - обычный сайт верхнего уровня (SameSite=Lax).
	ModeSite CookieMode = iota
	// ModeStrict - SameSite=Strict для страниц, не принимающих переходы извне.
	ModeStrict
	// ModeOAuth - возврат от провайдера входа через редирект (SameSite=Lax).
	ModeOAuth
	// ModeMiniApp - приложение внутри iframe соцсети (SameSite=None, всегда Secure).
	ModeMiniApp
)

// CookieWriter выставляет и очищает cookie "token".
// Secure применяется ко всем режимам, кроме ModeMiniApp, где Secure обязателен всегда.
type CookieWriter struct {
	Secure bool
}

// Set записывает токен в HTTP-only cookie на 7 дней.
func (w CookieWriter) Set(c *gin.Context, token string, mode CookieMode) {
	http.SetCookie(c.Writer, w.cookie(token, SessionMaxAge, mode))
}

// Clear удаляет cookie с токеном (MaxAge < 0).
func (w CookieWriter) Clear(c *gin.Context, mode CookieMode) {
	http.SetCookie(c.Writer, w.cookie("", -1, mode))
}

// SessionOptions - атрибуты cookie серверной сессии для режима mode,
// те же SameSite и Secure, что у cookie токена.
func (w CookieWriter) SessionOptions(mode CookieMode) sessions.Options {
	ck := w.cookie("", SessionMaxAge, mode)
	return sessions.Options{
		Path:     ck.Path,
		MaxAge:   ck.MaxAge,
		HttpOnly: ck.HttpOnly,
		Secure:   ck.Secure,
		SameSite: ck.SameSite,
	}
}

func (w CookieWriter) cookie(value string, maxAge int, mode CookieMode) *http.Cookie {
	ck := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   w.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	switch mode {
	case ModeStrict:
		ck.SameSite = http.SameSiteStrictMode
	case ModeMiniApp:
		// Браузеры отбрасывают SameSite=None без Secure.
		ck.SameSite = http.SameSiteNoneMode
		ck.Secure = true
	}
	return ck
}

// Fingerprint возвращает короткий отпечаток токена для журналов.
// По отпечатку нельзя восстановить сам токен.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
