package api

import (
	"strings"
	"testing"
)

func TestTextSanitizerClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "  Alice  ", want: "Alice"},
		{name: "tags", input: "<b>Alice</b>", want: "Alice"},
		{name: "script", input: "Alice<script>alert(1)</script>", want: "Alice"},
		{name: "encoded_script", input: "&lt;script&gt;alert(1)&lt;/script&gt;", want: ""},
		{name: "encoded_img", input: "&lt;img src=x onerror=alert(1)&gt;", want: ""},
		{name: "encoded_tags_around_text", input: "Bob &lt;b&gt;Builder&lt;/b&gt;", want: "Bob Builder"},
		{name: "ampersand_stays_escaped", input: "Tom & Jerry", want: "Tom &amp; Jerry"},
	}

	s := newTextSanitizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Clean(tt.input)
			if got != tt.want {
				t.Fatalf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if strings.ContainsAny(got, "<>") {
				t.Fatalf("Clean(%q) = %q still contains markup", tt.input, got)
			}
		})
	}
}
