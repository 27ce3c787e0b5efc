package security

import (
	"testing"
)

// TestSanitize_StripsAllTags はHTMLタグが全て除去されることを検証する。
func TestSanitize_StripsAllTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "scriptタグが除去される",
			input: `蛇口を直してください<script>alert('xss')</script>`,
			want:  "蛇口を直してください",
		},
		{
			name:  "imgタグが除去される",
			input: `<img src="https://evil.example.com/x.png" onerror="alert(1)">写真を添付しました`,
			want:  "写真を添付しました",
		},
		{
			name:  "通常のタグも除去されテキストのみ残る",
			input: "<p>午前中の訪問を<strong>希望</strong>します</p>",
			want:  "午前中の訪問を希望します",
		},
		{
			name:  "タグを含まないテキストはそのまま",
			input: "水漏れが再発しました",
			want:  "水漏れが再発しました",
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

// TestSanitize_PreservesSpecialCharacters は記号がエンティティ化されずに残ることを検証する。
func TestSanitize_PreservesSpecialCharacters(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "料金は $100 & 税、到着は 9:00 < 10:00 の間です"
	got := sanitizer.Sanitize(input)
	if got != input {
		t.Errorf("Sanitize(%q) = %q, special characters should survive", input, got)
	}
}

// TestSanitize_Idempotent は冪等性を検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<b>確認</b>をお願いします & 連絡ください`
	once := sanitizer.Sanitize(input)
	twice := sanitizer.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize is not idempotent: once=%q twice=%q", once, twice)
	}
}

// TestContentSanitizer_ImplementsInterface はインターフェース適合を検証する。
func TestContentSanitizer_ImplementsInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
