package security

import "testing"

func TestSanitize_PreservesContent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "Rain",
			want:  "Rain",
		},
		{
			name:  "不等号は本文として残る",
			input: "if a<b then the rain",
			want:  "if a<b then the rain",
		},
		{
			name:  "タグに見える文字列も書き換えない",
			input: "<<grief>> and <b>bold</b>",
			want:  "<<grief>> and <b>bold</b>",
		},
		{
			name:  "エンティティはデコードしない",
			input: "Tom &amp; co",
			want:  "Tom &amp; co",
		},
		{
			name:  "前後の空白は除去される",
			input: "  \n dusk \t",
			want:  "dusk",
		},
		{
			name:  "NULバイトは除去される",
			input: "ra\x00in",
			want:  "rain",
		},
		{
			name:  "不正なUTF-8は置換文字になる",
			input: "ra\xffin",
			want:  "ra�in",
		},
		{
			name:  "空文字列は空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_PreservesPoetryFormatting は内側の改行と記号が保存されることを検証する。
func TestSanitize_PreservesPoetryFormatting(t *testing.T) {
	sanitizer := NewTextSanitizer()

	input := "drip drip\n  on the tin roof\n\nrain & rust, \"again\""
	got := sanitizer.Sanitize(input)
	if got != input {
		t.Errorf("Sanitize altered plain text:\ngot  %q\nwant %q", got, input)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	input := " <p>stanza</p> one & two\x00 "
	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("Sanitize not idempotent: %q then %q", first, second)
	}
}
