package prompts

import (
	"os"
	"path/filepath"
	"testing"
)

func writePromptsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "example_prompts.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadNamedObject(t *testing.T) {
	path := writePromptsFile(t, `{
		"RAG": "Answer using only the provided context.",
		"Creative Writing": "Write a haiku about the ocean."
	}`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 prompts, got %+v", got)
	}
	// Sorted by name.
	if got[0].Name != "Creative Writing" || got[1].Name != "RAG" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Text != "Write a haiku about the ocean." {
		t.Fatalf("unexpected text: %q", got[0].Text)
	}
}

func TestLoadBareArray(t *testing.T) {
	path := writePromptsFile(t, `["first prompt", "  ", "second prompt"]`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 prompts, got %+v", got)
	}
	if got[0].Name != "first prompt" || got[0].Text != "first prompt" {
		t.Fatalf("array entries should use the text as name: %+v", got[0])
	}
}

func TestLoadWrappedArray(t *testing.T) {
	path := writePromptsFile(t, `{"prompts": ["only one"]}`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].Text != "only one" {
		t.Fatalf("unexpected prompts: %+v", got)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	got, err := Load("")
	if err != nil || got != nil {
		t.Fatalf("empty path: got=%+v err=%v", got, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should load as empty, got error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no prompts, got %+v", got)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writePromptsFile(t, `{"broken":`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
