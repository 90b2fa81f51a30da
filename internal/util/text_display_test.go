package util

import "testing"

func TestDisplaySnippet(t *testing.T) {
	in := "Hello\x00   world \n\t again"
	out := DisplaySnippet(in, 100)
	if out != "Hello world again" {
		t.Fatalf("unexpected snippet: %q", out)
	}
}

func TestDisplaySnippetTruncates(t *testing.T) {
	out := DisplaySnippet("abcdefghij", 4)
	if out != "abcd..." {
		t.Fatalf("unexpected truncation: %q", out)
	}
}
