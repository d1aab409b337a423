// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizerService はユーザーが入力するプロフィール文字列を
// サニタイズし、格納型XSSからAPIの利用者を保護する。
// bluemondayライブラリの厳格ポリシーで、タグをすべて除去して
// プレーンテキストのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizerService はプロフィール文字列のサニタイズ機能の
// インターフェースを定義する。表示名などの保存前に使用される。
type ProfileSanitizerService interface {
	// Sanitize は入力からHTMLタグをすべて除去し、前後の空白を
	// 取り除いたプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayの厳格ポリシーを保持し、スレッドセーフに処理を行う。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
// 許可タグは一切なし。プロフィール文字列はマークアップを持たない。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力をプレーンテキストにサニタイズして返す。
func (s *profileSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
