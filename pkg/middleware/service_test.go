package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestServiceAuth はServiceAuthミドルウェアを検証する。
func TestServiceAuth(t *testing.T) {
	t.Parallel()

	userJWT, err := GenerateJWT("jwt-secret", "mallory", "mallory", 0)
	if err != nil {
		t.Fatalf("JWTの生成に失敗: %v", err)
	}

	tests := []struct {
		name     string
		secret   string
		token    string
		bearer   string
		wantCode int
	}{
		{name: "シークレットが一致すれば通過すること", secret: "svc", token: "svc", wantCode: http.StatusOK},
		{name: "シークレットが異なれば401が返ること", secret: "svc", token: "other", wantCode: http.StatusUnauthorized},
		{name: "ヘッダーが無ければ401が返ること", secret: "svc", wantCode: http.StatusUnauthorized},
		{name: "ユーザーのJWTだけでは401が返ること", secret: "svc", bearer: userJWT, wantCode: http.StatusUnauthorized},
		{name: "シークレット未設定なら常に401が返ること", token: "", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(ServiceAuth(tt.secret))
			router.POST("/internal", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			req := httptest.NewRequest(http.MethodPost, "/internal", nil)
			if tt.token != "" {
				req.Header.Set(HeaderServiceToken, tt.token)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}
