package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"book.cbz", "book.cbz"},
		{"  spaced.epub  ", "spaced.epub"},
		{"a/b\\c:d.pdf", "a-b-c-d.pdf"},
		{"what?.cbz", "what.cbz"},
		{"..hidden", "hidden"},
		{"<>|\"", ""},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
