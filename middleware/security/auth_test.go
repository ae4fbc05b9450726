package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	jwtsec "PPLive/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, jwtsec.Options) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwt := jwtsec.DefaultOptions([]byte("s3cret"))
	r := gin.New()
	r.GET("/ws", Middleware(DefaultOptions(jwt)), func(c *gin.Context) {
		uid, ok := UserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"userId": uid})
	})
	return r, jwt
}

func TestMiddlewareAcceptsHeaderAndQuery(t *testing.T) {
	r, jwt := newRouter(t)
	tok, _, err := jwtsec.Generate(jwt, 12)
	require.NoError(t, err)

	for _, req := range []*http.Request{
		func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			return req
		}(),
		func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Header.Set("Authorization", tok)
			return req
		}(),
		httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil),
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"userId":12}`, w.Body.String())
	}
}

func TestMiddlewareRefusesBeforeHandler(t *testing.T) {
	r, _ := newRouter(t)
	for _, target := range []string{"/ws", "/ws?token=garbage"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Body.String(), `"code":401`)
	}
}
