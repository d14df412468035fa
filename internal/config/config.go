// Package config は環境変数からパネルの設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はウィジェットのホストの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// UpstreamURL は判断の送信先となるコントロールパネルのベースURL。
	UpstreamURL string
	// DismissPath は通知を既読にするエンドポイントのパス。
	DismissPath string
	// RespondPath は招待への応答を記録するエンドポイントのパス。
	RespondPath string
	// JWTSecret はセッションJWTの署名鍵。
	JWTSecret string
	// ServiceToken は内部APIを呼び出すサービスとの共有シークレット。
	ServiceToken string
	// DBPath はSQLiteデータベースのパス。
	DBPath string
	// FrontendURLs はCORSで許可するオリジン。
	FrontendURLs []string
	// RequestTimeout は送信1件あたりのタイムアウト。
	RequestTimeout time.Duration
	// DevMode が有効な場合は開発用トークンの発行を許可する。
	DevMode bool
}

// Load は環境変数から設定を読み込む。
// envFileが空でなければ先にそのファイルを読み込む。既に設定済みの環境変数は上書きしない。
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
		}
	}

	timeout, err := time.ParseDuration(getEnvOr("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("REQUEST_TIMEOUTが不正です: %w", err)
	}

	cfg := &Config{
		Port:           getEnvOr("PORT", "8090"),
		UpstreamURL:    getEnvOr("UPSTREAM_URL", "http://localhost:8000"),
		DismissPath:    getEnvOr("DISMISS_PATH", "/dismiss_message/"),
		RespondPath:    getEnvOr("RESPOND_PATH", "/read_message/"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ServiceToken:   os.Getenv("SERVICE_TOKEN"),
		DBPath:         getEnvOr("DB_PATH", "/data/invitation.db"),
		FrontendURLs:   splitList(getEnvOr("FRONTEND_URL", "http://localhost:3000")),
		RequestTimeout: timeout,
		DevMode:        os.Getenv("DEV_MODE") == "true",
	}

	if cfg.JWTSecret == "" {
		if !cfg.DevMode {
			return nil, fmt.Errorf("JWT_SECRETが設定されていません")
		}
		cfg.JWTSecret = "dev-secret-key"
	}
	if cfg.ServiceToken == "" {
		if !cfg.DevMode {
			return nil, fmt.Errorf("SERVICE_TOKENが設定されていません")
		}
		cfg.ServiceToken = "dev-service-token"
	}

	return cfg, nil
}

// getEnvOr は環境変数を取得し、未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// splitList はカンマ区切りの値を分割し、空要素を取り除く。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
