package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

func TestReadFile(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"user","message":{"content":"set up the database"}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"On it."},{"type":"tool_use","name":"Bash","input":{"command":"createdb shop"}}]}}`,
		`{"type":"summary","summary":"Earlier: discussed schema design"}`,
		`not json at all`,
	)

	messages, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Text != "[User]: set up the database" {
		t.Errorf("unexpected user text: %q", messages[0].Text)
	}
	if !strings.Contains(messages[1].Text, "[Ran: createdb shop]") {
		t.Errorf("tool use not summarized: %q", messages[1].Text)
	}
	if messages[2].Text != "[Context Summary]: Earlier: discussed schema design" {
		t.Errorf("unexpected summary text: %q", messages[2].Text)
	}
	if messages[1].Line != 2 {
		t.Errorf("expected line 2, got %d", messages[1].Line)
	}
}

func TestReadFileMissing(t *testing.T) {
	messages, err := ReadFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if messages != nil {
		t.Errorf("expected nil messages, got %d", len(messages))
	}
}

func TestFormatIsPrefixStable(t *testing.T) {
	// Formatting the first n messages must be a byte prefix of formatting
	// all of them, so cursor offsets survive transcript growth.
	all := []Message{
		{Text: "[User]: first"},
		{Text: "[Assistant]: second"},
		{Text: "[User]: third"},
	}
	full := Format(all)
	partial := Format(all[:2])
	if !strings.HasPrefix(full, partial) {
		t.Errorf("format of prefix is not a prefix:\n%q\nvs\n%q", partial, full)
	}
}

func TestTail(t *testing.T) {
	text := "line one\nline two\nline three"
	if got := Tail(text, 1000); got != text {
		t.Errorf("short text should pass through, got %q", got)
	}
	got := Tail(text, 15)
	if len(got) > 15 {
		t.Errorf("tail exceeds max: %d bytes", len(got))
	}
	if strings.HasPrefix(got, "ne ") {
		t.Errorf("tail cut mid-line: %q", got)
	}
	if got != "line three" {
		t.Errorf("expected last full line, got %q", got)
	}
}
