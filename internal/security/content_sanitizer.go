// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は投稿・コメント本文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// 本文はプレーンテキストとして扱うため、bluemondayの
// 許可リストベースのポリシーでHTMLタグをすべて除去する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は本文サニタイズ機能のインターフェースを定義する。
// 投稿・コメントの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は入力からHTMLタグをすべて除去したテキストを返す。
	// scriptタグやon*イベント属性を含むあらゆるマークアップが対象。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 本文はHTMLとして表示しないため、タグを一切許可しないStrictPolicyを使う。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグをすべて除去したテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
