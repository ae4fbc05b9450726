package security

import (
	"net/http"
	"strings"

	"PPLive/logger"
	"PPLive/tools/errs"
	jwtsec "PPLive/tools/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// context keys
// handlers behind Middleware read the verified user with UserID(c)
const (
	PPCtxUserIDKey = "userId"        // int64
	PPCtxAuthKey   = "authorization" // raw token string
)

type Options struct {
	// 读取哪个请求头
	HeaderToken               string // 默认 "Authorization"
	QueryToken                string // browsers cannot set headers on a WebSocket; default "token"
	EnableAuthorizationBearer bool   // 默认 true

	JWT jwtsec.Options
}

func DefaultOptions(jwt jwtsec.Options) *Options {
	return &Options{
		HeaderToken:               "Authorization",
		QueryToken:                "token",
		EnableAuthorizationBearer: true,
		JWT:                       jwt,
	}
}

// Authenticator verifies handshake credentials.
type Authenticator struct {
	opts *Options
}

func NewAuthenticator(opts *Options) *Authenticator {
	return &Authenticator{opts: opts}
}

// Token pulls the credential from the header (with or without "Bearer ")
// and falls back to the query parameter.
func (a *Authenticator) Token(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get(a.opts.HeaderToken))
	if token != "" && a.opts.EnableAuthorizationBearer {
		if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
			token = strings.TrimSpace(token[7:])
		}
	}
	if token == "" && a.opts.QueryToken != "" {
		token = strings.TrimSpace(r.URL.Query().Get(a.opts.QueryToken))
	}
	return token
}

// Authenticate returns the user bound to token, or an authentication error.
func (a *Authenticator) Authenticate(token string) (int64, error) {
	claims, err := jwtsec.Verify(a.opts.JWT, token)
	if err != nil {
		return 0, errs.ErrAuthentication.WithDetail(err.Error())
	}
	return claims.UserID, nil
}

// Middleware refuses the request with 401 before any handler runs when the
// credential is missing or invalid.
func Middleware(opts *Options) gin.HandlerFunc {
	auth := NewAuthenticator(opts)
	return func(c *gin.Context) {
		token := auth.Token(c.Request)
		uid, err := auth.Authenticate(token)
		if err != nil {
			logger.Info("[Auth] handshake refused",
				zap.String("remote", c.ClientIP()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.As(err))
			return
		}
		c.Set(PPCtxAuthKey, token)
		c.Set(PPCtxUserIDKey, uid)
		c.Next()
	}
}

// UserID reads what Middleware stored; ok is false on unauthenticated routes.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(PPCtxUserIDKey)
	if !ok {
		return 0, false
	}
	uid, ok := v.(int64)
	return uid, ok && uid > 0
}
