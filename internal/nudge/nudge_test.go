package nudge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("0123456789abcdef0123456789abcdef"))))

	r.POST("/init", func(c *gin.Context) {
		s := sessions.Default(c)
		Init(s)
		_ = s.Save()
	})
	r.POST("/clear", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set("other", "keep")
		Clear(s)
		_ = s.Save()
	})
	r.POST("/inc/:name", func(c *gin.Context) {
		s := sessions.Default(c)
		v, err := Increment(s, c.Param("name"))
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		_ = s.Save()
		c.JSON(http.StatusOK, gin.H{"value": v})
	})
	r.GET("/get", func(c *gin.Context) {
		c.JSON(http.StatusOK, Get(sessions.Default(c)))
	})
	return r
}

type client struct {
	t       *testing.T
	r       *gin.Engine
	cookies []*http.Cookie
}

func (cl *client) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	cl.r.ServeHTTP(rec, req)
	if set := rec.Result().Cookies(); len(set) > 0 {
		cl.cookies = set
	}
	return rec
}

func (cl *client) counters() map[string]int {
	rec := cl.do(http.MethodGet, "/get")
	var out map[string]int
	require.NoError(cl.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLifecycle(t *testing.T) {
	cl := &client{t: t, r: newEngine()}

	cl.do(http.MethodPost, "/init")
	for _, n := range Names {
		assert.Equal(t, 0, cl.counters()[n])
	}

	cl.do(http.MethodPost, "/inc/upgrade_banner")
	rec := cl.do(http.MethodPost, "/inc/upgrade_banner")
	assert.JSONEq(t, `{"value":2}`, rec.Body.String())
	assert.Equal(t, 2, cl.counters()["upgrade_banner"])
	assert.Equal(t, 0, cl.counters()["support_hint"])

	cl.do(http.MethodPost, "/clear")
	assert.Equal(t, 0, cl.counters()["upgrade_banner"])
}

func TestIncrement_Unknown(t *testing.T) {
	cl := &client{t: t, r: newEngine()}
	rec := cl.do(http.MethodPost, "/inc/popup")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
