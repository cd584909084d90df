// Package model はドメインモデルを定義する。
package model

import "time"

// Message はスレッド内の1件のテキストメッセージを表す。
// 送信者は作成時点でスレッドの参加者であることがサービス層で保証される。
// IsRead はfalse→trueの一方向にのみ遷移する。
type Message struct {
	ID        string
	ThreadID  string
	SenderID  string
	Text      string
	IsRead    bool
	CreatedAt time.Time
}
