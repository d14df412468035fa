package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	newRouter := func(handlerCalled *bool) *gin.Engine {
		router := gin.New()
		router.Use(CORS([]string{"http://localhost:3000", "https://panel.example.com"}))
		handler := func(c *gin.Context) {
			if handlerCalled != nil {
				*handlerCalled = true
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		}
		router.GET("/widget", handler)
		router.OPTIONS("/widget", handler)
		return router
	}

	tests := []struct {
		name       string
		method     string
		origin     string
		wantCode   int
		wantOrigin string
	}{
		{
			name:       "許可されたオリジンにCORSヘッダーが設定されること",
			method:     http.MethodGet,
			origin:     "http://localhost:3000",
			wantCode:   http.StatusOK,
			wantOrigin: "http://localhost:3000",
		},
		{
			name:       "許可リストの2番目のオリジンでもCORSヘッダーが設定されること",
			method:     http.MethodGet,
			origin:     "https://panel.example.com",
			wantCode:   http.StatusOK,
			wantOrigin: "https://panel.example.com",
		},
		{
			name:     "許可されていないオリジンにCORSヘッダーが設定されないこと",
			method:   http.MethodGet,
			origin:   "https://evil.example.com",
			wantCode: http.StatusOK,
		},
		{
			name:     "Originヘッダーが無い場合にCORSヘッダーが設定されないこと",
			method:   http.MethodGet,
			wantCode: http.StatusOK,
		},
		{
			name:       "プリフライトで204が返ること",
			method:     http.MethodOptions,
			origin:     "http://localhost:3000",
			wantCode:   http.StatusNoContent,
			wantOrigin: "http://localhost:3000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/widget", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			newRouter(nil).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.wantCode)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}

	t.Run("CSRFトークンのヘッダーが許可されること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/widget", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		newRouter(nil).ServeHTTP(w, req)

		want := "Authorization, Content-Type, X-CSRF-Token"
		if got := w.Header().Get("Access-Control-Allow-Headers"); got != want {
			t.Errorf("Access-Control-Allow-Headers = %q, want %q", got, want)
		}
		if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
			t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, "GET, POST, OPTIONS")
		}
	})

	t.Run("OPTIONSリクエストではハンドラーが呼ばれないこと", func(t *testing.T) {
		t.Parallel()

		called := false
		req := httptest.NewRequest(http.MethodOptions, "/widget", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		newRouter(&called).ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if called {
			t.Error("OPTIONSリクエストでハンドラーが呼ばれるべきではない")
		}
	})
}
