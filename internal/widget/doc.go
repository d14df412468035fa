// Package widget は招待通知ウィジェットの表示状態を保持するインメモリモデルを提供する。
//
// 通知要素の一覧、バッジの件数表示、通知エリアの内容、CSRFトークンを
// 1つのModelにまとめ、ビュー層はこのモデルのスナップショットから描画する。
package widget
