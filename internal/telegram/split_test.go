package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageShortTextUntouched(t *testing.T) {
	chunks := SplitMessage("hello world", 4096)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Fatalf("SplitMessage() = %q", chunks)
	}
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	text := "first paragraph\nsecond paragraph that runs long"
	chunks := SplitMessage(text, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %q", chunks)
	}
	if chunks[0] != "first paragraph" {
		t.Fatalf("chunks[0] = %q, want break at newline", chunks[0])
	}
}

func TestSplitMessageFallsBackToSpace(t *testing.T) {
	text := "one two three four five six seven"
	chunks := SplitMessage(text, 10)
	for i, c := range chunks {
		if len([]rune(c)) > 10 {
			t.Fatalf("chunk %d too long: %q", i, c)
		}
		if strings.HasPrefix(c, " ") || strings.HasSuffix(c, " ") {
			t.Fatalf("chunk %d not trimmed: %q", i, c)
		}
	}
	if got := strings.Join(chunks, " "); got != text {
		t.Fatalf("rejoined = %q, want %q", got, text)
	}
}

func TestSplitMessageHardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks := SplitMessage(text, 10)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if chunks[0] != strings.Repeat("x", 10) || chunks[2] != strings.Repeat("x", 5) {
		t.Fatalf("chunks = %q", chunks)
	}
}

func TestSplitMessageRuneSafe(t *testing.T) {
	text := strings.Repeat("é", 15)
	chunks := SplitMessage(text, 10)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	for i, c := range chunks {
		if strings.ContainsRune(c, '�') {
			t.Fatalf("chunk %d contains replacement rune: %q", i, c)
		}
	}
	if chunks[0]+chunks[1] != text {
		t.Fatal("chunks do not recombine to the original text")
	}
}

func TestLargestPhotoPicksBiggestArea(t *testing.T) {
	sizes := []PhotoSize{
		{FileID: "small", Width: 90, Height: 90, FileSize: 100},
		{FileID: "big", Width: 800, Height: 600, FileSize: 9000},
		{FileID: "mid", Width: 320, Height: 240, FileSize: 2000},
	}
	got := largestPhoto(sizes)
	if got.id != "big" || got.size != 9000 {
		t.Fatalf("largestPhoto() = %+v", got)
	}
}
