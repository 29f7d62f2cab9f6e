// Package security は利用者入力の無害化を提供する。
package security

import (
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrMarkup は入力にマークアップとして解釈される部分が含まれる場合に返される。
var ErrMarkup = errors.New("text contains markup")

// TextSanitizer は自由入力テキストを検証し、保存用のプレーンテキストにするインターフェース。
// 予約理由・却下理由・教室名・表示名の保存前に使用する。
type TextSanitizer interface {
	// Clean は前後の空白を取り除いたプレーンテキストを返す。
	// タグの除去で内容が変わる入力はErrMarkupとし、黙って文字を落とすことはしない。
	Clean(raw string) (string, error)
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicyを使うTextSanitizerを生成する。
// StrictPolicyは全タグを除去し、script/styleの中身も出力しない。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はStrictPolicyを通した結果を入力と比べ、空白以外が一致する場合のみ受け付ける。
// 出力側（JSON、html/template）でエスケープされるため、ここでは実体参照を残さない。
func (s *textSanitizer) Clean(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	text := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
	if compact(text) != compact(html.UnescapeString(raw)) {
		return "", ErrMarkup
	}
	return text, nil
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
