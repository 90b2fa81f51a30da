package util

import (
	"strings"
	"testing"
)

func TestChunkText(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := ChunkText(text, 10, 2)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	if chunks[0] != "abcdefghij" || chunks[1] != "ijklmnopqr" {
		t.Fatalf("unexpected chunks: %q", chunks[:2])
	}
	if chunks[3] != "yz" {
		t.Fatalf("unexpected last chunk: %q", chunks[3])
	}
}

func TestChunkTextAdvancesByStep(t *testing.T) {
	text := strings.Repeat("a", 1000)
	chunks := ChunkText(text, 600, 120)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantLens := []int{600, 520, 40}
	for i, c := range chunks {
		if len(c) != wantLens[i] {
			t.Fatalf("chunk %d: expected len %d, got %d", i, wantLens[i], len(c))
		}
	}
	// starts at 0, 480, 960: the final window reaches the end of the input.
	if 960+len(chunks[2]) != len(text) {
		t.Fatalf("chunks do not cover the input")
	}
}

func TestChunkTextKeepsWhitespace(t *testing.T) {
	chunks := ChunkText("ab   ", 2, 0)
	if len(chunks) != 3 || chunks[1] != "  " || chunks[2] != " " {
		t.Fatalf("whitespace chunks must be kept verbatim: %q", chunks)
	}
}

func TestChunkTextOverlapNotBelowOne(t *testing.T) {
	chunks := ChunkText("abc", 2, 5)
	if len(chunks) != 3 || chunks[0] != "ab" || chunks[1] != "bc" || chunks[2] != "c" {
		t.Fatalf("expected step of 1, got %q", chunks)
	}
	if got := ChunkText("", 600, 120); len(got) != 0 {
		t.Fatalf("empty text must produce no chunks, got %d", len(got))
	}
}

func TestChunkTextRunes(t *testing.T) {
	chunks := ChunkText("αβγδ", 2, 0)
	if len(chunks) != 2 || chunks[0] != "αβ" || chunks[1] != "γδ" {
		t.Fatalf("expected rune windows, got %q", chunks)
	}
}
