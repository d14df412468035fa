// Package middleware はウィジェットのホストで使用するGinミドルウェアを提供する。
//
// セッションJWTの検証、CSRFトークンの照合、パニックリカバリ、
// CORS設定を含む。
package middleware
