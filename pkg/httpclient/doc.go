// Package httpclient はコントロールパネルのエンドポイントとHTTP通信を行うクライアントを提供する。
//
// 招待への応答や通知の既読化をフォーム形式で送信する際に使用する。
// CSRFトークンはフォームフィールドとヘッダーの両方で送る。
package httpclient
