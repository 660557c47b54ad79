// Package preview は記事一覧に表示する本文の抜粋を生成する。
//
// 本文はバックエンドが保存したHTMLのまま返ってくるため、
// bluemondayのStrictPolicyで全てのタグを除去してからプレーンテキストとして切り詰める。
package preview

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultLength は抜粋の最大文字数（rune数）。
const DefaultLength = 150

// Ellipsis は切り詰めた抜粋の末尾に付与する文字列。
const Ellipsis = "..."

// Excerpter は本文の抜粋を生成するインターフェース。
type Excerpter interface {
	Excerpt(content string) string
}

// excerpter はExcerpterの実装。ポリシーはスレッドセーフに共有できる。
type excerpter struct {
	policy *bluemonday.Policy
	length int
}

// NewExcerpter はExcerpterを生成する。length が0以下の場合はDefaultLengthを使う。
func NewExcerpter(length int) *excerpter {
	if length <= 0 {
		length = DefaultLength
	}
	return &excerpter{
		policy: bluemonday.StrictPolicy(),
		length: length,
	}
}

// Excerpt はタグを除去し、連続する空白を1つにまとめたうえで切り詰める。
// length以下の場合はそのまま返す。
func (e *excerpter) Excerpt(content string) string {
	if content == "" {
		return ""
	}
	// StrictPolicyはエンティティをエスケープしたまま返すので戻す
	text := html.UnescapeString(e.policy.Sanitize(content))
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= e.length {
		return text
	}
	runes := []rune(text)
	return string(runes[:e.length]) + Ellipsis
}
