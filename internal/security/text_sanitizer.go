// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力したタイトル、本文、名前、自己紹介を
// PostgreSQLのtext型に保存できる形に整える。内容そのものは書き換えない。
package security

import (
	"strings"
	"unicode/utf8"
)

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は前後の空白を除いたテキストを返す。
	// 妥当なUTF-8で構成されたテキストはバイト単位でそのまま残す。
	// HTMLのエスケープは行わないため、出力側でコンテキストに応じてエスケープすること。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
type textSanitizer struct{}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{}
}

// Sanitize はtext型が受け付けないNULバイトを除き、不正なUTF-8をU+FFFDに置き換えてから
// 前後の空白を取り除く。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.IndexByte(raw, 0) >= 0 {
		raw = strings.ReplaceAll(raw, "\x00", "")
	}
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "�")
	}
	return strings.TrimSpace(raw)
}
