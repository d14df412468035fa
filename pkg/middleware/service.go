package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderServiceToken はサービス間呼び出しの共有シークレットを運ぶHTTPヘッダーキー。
const HeaderServiceToken = "X-Service-Token"

// ServiceAuth は内部APIへのリクエストを共有シークレットで認証するGinミドルウェアを返す。
// ユーザーのセッションJWTでは通過できない。secretが空の場合はすべて拒否する。
func ServiceAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderServiceToken)
		if secret == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "サービストークンが不正です",
			})
			return
		}
		c.Next()
	}
}
