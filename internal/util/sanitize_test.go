package util

import (
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Inbox", "Inbox"},
		{"Sent Items", "Sent_Items"},
		{"Re: hello / world", "Re_hello_world"},
		{"invoice #42 (final).pdf", "invoice_42_final_.pdf"},
		{"", "untitled"},
		{"///...___", "untitled"},
		{"\x00\x01\x02", "untitled"},
		{"CON", "_CON"},
		{"con.txt", "_con.txt"},
		{"Lpt1", "_Lpt1"},
		{"console", "console"}, // not reserved, only the exact name is
		{"..hidden..", "hidden"},
		{"日本語レポート", "untitled"},
		{"mixed 日本語 name", "mixed_name"},
	}
	for _, tc := range tests {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Errorf("SanitizeName(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeNameProperties(t *testing.T) {
	inputs := []string{
		"",
		" ",
		strings.Repeat("x", 300),
		strings.Repeat("_", 300),
		strings.Repeat("a ", 200),
		"NUL",
		"aux.eml",
		string(rune(0)) + "name" + string(rune(31)),
	}
	allowed := func(r rune) bool {
		return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-'
	}
	for _, in := range inputs {
		got := SanitizeName(in)
		if got == "" {
			t.Errorf("SanitizeName(%q) returned empty", in)
		}
		if len(got) > MaxNameLen {
			t.Errorf("SanitizeName(%q) length %d exceeds %d", in, len(got), MaxNameLen)
		}
		for _, r := range got {
			if !allowed(r) {
				t.Errorf("SanitizeName(%q) contains %q", in, r)
			}
		}
		if again := SanitizeName(in); again != got {
			t.Errorf("SanitizeName(%q) not deterministic: %q then %q", in, got, again)
		}
	}
}
