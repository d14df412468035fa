package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderCSRFToken はページから送られるCSRFトークンのHTTPヘッダーキー。
const HeaderCSRFToken = "X-CSRF-Token"

// TokenLookup はリクエストに対応するセッションのCSRFトークンを返す。
// セッションが存在しない場合はokにfalseを返す。
type TokenLookup func(c *gin.Context) (token string, ok bool)

// CSRF は状態を変更するリクエストのCSRFトークンを照合するGinミドルウェアを返す。
// GET / HEAD / OPTIONS は照合しない。
func CSRF(lookup TokenLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		want, ok := lookup(c)
		got := c.GetHeader(HeaderCSRFToken)
		if !ok || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "CSRFトークンが一致しません",
			})
			return
		}
		c.Next()
	}
}
