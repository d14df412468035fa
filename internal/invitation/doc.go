// Package invitation は招待通知への操作（通知の破棄と招待への応答）を提供する。
//
// 応答時は表示状態を楽観的に更新してから判断をサーバーへ送信する。
// 送信は完了を待たずに戻り、送信の失敗は無視する。
// 失敗時に表示状態を巻き戻すことはしない。
package invitation
