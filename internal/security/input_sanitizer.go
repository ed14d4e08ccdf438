package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizerService は登録フォーム入力のサニタイズ機能のインターフェースを定義する。
// 参加者の氏名・メール・所属の保存前に使用される。
type InputSanitizerService interface {
	// Sanitize は入力文字列からHTMLタグをすべて除去し、
	// エンティティを元の文字に戻した上で前後の空白を取り除く。
	// プレーンテキストのみを保存するため、許可タグは存在しない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグを除去する。タグ除去後にエスケープされた
// エンティティを戻すのは、"O'Brien" のような正当な入力を
// "O&#39;Brien" として保存しないため。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力文字列をプレーンテキストに落として返す。
func (s *inputSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
