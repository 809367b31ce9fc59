package security

import (
	"strings"
	"testing"
)

// TestSanitize_StripsMarkup はHTMLタグがすべて除去されることを検証する。
func TestSanitize_StripsMarkup(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま通る",
			input: "今日はいい天気です",
			want:  "今日はいい天気です",
		},
		{
			name:  "scriptタグが除去される",
			input: `こんにちは<script>alert("xss")</script>`,
			want:  "こんにちは",
		},
		{
			name:  "装飾タグも中身だけ残る",
			input: "<strong>太字</strong>と<em>斜体</em>",
			want:  "太字と斜体",
		},
		{
			name:  "imgタグが除去される",
			input: `<img src="javascript:alert(1)">猫の写真`,
			want:  "猫の写真",
		},
		{
			name:  "空文字列は空文字列のまま",
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

// TestSanitize_EventAttributes はon*イベント属性付きタグが残らないことを検証する。
func TestSanitize_EventAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<p onclick="steal()">本文</p>`)
	if strings.Contains(got, "onclick") || strings.Contains(got, "<p") {
		t.Errorf("expected markup to be stripped, got %q", got)
	}
	if !strings.Contains(got, "本文") {
		t.Errorf("expected text content to survive, got %q", got)
	}
}

// TestSanitize_Idempotent は同一入力へのサニタイズが冪等であることを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `猫<script>x</script>と犬`
	once := sanitizer.Sanitize(input)
	twice := sanitizer.Sanitize(once)
	if once != twice {
		t.Errorf("sanitize is not idempotent: %q != %q", once, twice)
	}
}
