// Package panel は招待通知ウィジェットをホストするHTTPサーバーを提供する。
//
// ユーザーごとにウィジェットのモデルとCSRFトークンを保持し、
// 画面からの破棄・応答の操作をinvitationパッケージへ渡す。
// 判断そのものの記録はコントロールパネル側のエンドポイントが担い、
// このサーバーは利用者の操作履歴だけをSQLiteに残す。
package panel
