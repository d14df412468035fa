package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims はパネルのセッションJWTのクレーム。
type SessionClaims struct {
	jwt.RegisteredClaims
	// UserID は招待の受信者となるユーザーの識別子。
	UserID string `json:"user_id"`
	// Username はコントロールパネル上のユーザー名。
	Username string `json:"username"`
}

const (
	// headerKeyUserID はユーザーIDをクライアントへ返すHTTPヘッダーキー。
	headerKeyUserID = "X-User-ID"
	// issuer はセッションJWTの発行者。
	issuer = "invitation-panel"
	// DefaultSessionTTL はセッションJWTの既定の有効期間。
	DefaultSessionTTL = 12 * time.Hour
)

// GenerateJWT はユーザー情報からセッションJWTを生成する。
// ttlが0以下の場合はDefaultSessionTTLを使う。
func GenerateJWT(secret, userID, username string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
		UserID:   userID,
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はセッションJWTを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id" と "username" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims := &SessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
		)
		if err != nil || !token.Valid || claims.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Header(headerKeyUserID, claims.UserID)
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetUsername はGinコンテキストからユーザー名を取得する。
func GetUsername(c *gin.Context) string {
	name, _ := c.Get("username")
	if s, ok := name.(string); ok {
		return s
	}
	return ""
}
