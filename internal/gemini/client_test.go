package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/okhmat/lumen/internal/history"
)

func TestToContents(t *testing.T) {
	window := []history.Turn{
		{Role: history.RoleUser, Parts: []history.Part{history.TextPart("hello")}},
		{Role: history.RoleModel, Parts: []history.Part{history.TextPart("hi, what's up?")}},
		{Role: history.RoleUser, Parts: nil},
	}

	contents := toContents(window)
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2", len(contents))
	}
	if contents[0].Role != string(genai.RoleUser) {
		t.Fatalf("contents[0].Role = %q, want user", contents[0].Role)
	}
	if contents[0].Parts[0].Text != "hello" {
		t.Fatalf("contents[0] text = %q", contents[0].Parts[0].Text)
	}
	if contents[1].Role != string(genai.RoleModel) {
		t.Fatalf("contents[1].Role = %q, want model", contents[1].Role)
	}
	if contents[1].Parts[0].Text != "hi, what's up?" {
		t.Fatalf("contents[1] text = %q", contents[1].Parts[0].Text)
	}
}

func TestToContentsDropsStoredMediaRefs(t *testing.T) {
	// The remote file behind a stored media ref is deleted as soon as its own
	// request finishes. A later window must not put its URI back on the wire.
	window := []history.Turn{
		{Role: history.RoleUser, Parts: []history.Part{
			history.TextPart("(voice message)"),
			history.MediaPart("voice", "audio/ogg", "https://files/v1"),
		}},
		{Role: history.RoleModel, Parts: []history.Part{history.TextPart("Transcript: hello")}},
	}

	contents := toContents(window)
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2", len(contents))
	}
	for i, c := range contents {
		for j, p := range c.Parts {
			if p.FileData != nil {
				t.Fatalf("contents[%d].Parts[%d] carries file data %q", i, j, p.FileData.FileURI)
			}
		}
	}
	if len(contents[0].Parts) != 1 || contents[0].Parts[0].Text != "(voice message)" {
		t.Fatalf("contents[0].Parts = %+v, want the text placeholder only", contents[0].Parts)
	}
}
