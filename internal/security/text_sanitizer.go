// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はメッセージ本文をサニタイズし、
// XSS攻撃などのセキュリティリスクから受信側のクライアントを保護する。
// メッセージはプレーンテキストとして扱うため、bluemondayの
// StrictPolicy（全タグ除去）を使用する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はメッセージ本文のサニタイズ機能のインターフェースを定義する。
// メッセージ保存前に使用される。
type TextSanitizerService interface {
	// Sanitize は本文からHTMLタグを全て除去し、前後の空白をトリムして返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たず、script等の危険なタグも
// 通常のマークアップも全て除去する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は本文からHTMLタグを全て除去し、前後の空白をトリムして返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
