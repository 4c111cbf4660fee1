package summarizer

import (
	"errors"
	"strings"
	"testing"
)

func TestParseExtractNothingNew(t *testing.T) {
	for _, raw := range []string{
		"NO_NEW_OBSERVATIONS",
		"  NO_NEW_OBSERVATIONS\n",
		"```\nNO_NEW_OBSERVATIONS\n```",
		"",
	} {
		res, err := parseExtractOutput(raw)
		if err != nil {
			t.Errorf("parse %q: %v", raw, err)
			continue
		}
		if !res.NothingNew {
			t.Errorf("expected nothing-new for %q", raw)
		}
	}
}

func TestParseExtractObservations(t *testing.T) {
	raw := "<observations>\nDate: 2026-01-05\n- 10:30 [!] User runs PostgreSQL 16 in production\n- 10:45 [~] Staging uses Docker Compose\n</observations>\n<current-task>Migrating the billing tables</current-task>\n<suggested-response>Continue with the invoices table migration</suggested-response>"

	res, err := parseExtractOutput(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.NothingNew {
		t.Fatal("unexpected nothing-new")
	}
	if len(res.Groups) != 1 || len(res.Groups[0].Entries) != 2 {
		t.Fatalf("unexpected groups: %+v", res.Groups)
	}
	if res.Groups[0].Date != "2026-01-05" {
		t.Errorf("unexpected date: %q", res.Groups[0].Date)
	}
	if res.CurrentTask != "Migrating the billing tables" {
		t.Errorf("current task: %q", res.CurrentTask)
	}
	if res.SuggestedResponse != "Continue with the invoices table migration" {
		t.Errorf("suggested response: %q", res.SuggestedResponse)
	}
}

func TestParseExtractWithoutXMLWrapper(t *testing.T) {
	// Backends sometimes skip the wrapper; the bare dated block is still
	// accepted.
	raw := "```markdown\nDate: 2026-01-05\n- 10:30 [~] User prefers tabs over spaces\n```"
	res, err := parseExtractOutput(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(res.Groups))
	}
	if res.Groups[0].Entries[0].Text != "User prefers tabs over spaces" {
		t.Errorf("unexpected text: %q", res.Groups[0].Entries[0].Text)
	}
}

func TestParseExtractRejectsProse(t *testing.T) {
	_, err := parseExtractOutput("Sure! Here are my thoughts on the conversation, in prose form.")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestParseExtractDropsJunkLines(t *testing.T) {
	raw := "Here is what I found:\nDate: 2026-01-05\n- 10:30 [~] Valid entry\nrandom commentary line"
	res, err := parseExtractOutput(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Groups) != 1 || len(res.Groups[0].Entries) != 1 {
		t.Fatalf("junk not filtered: %+v", res.Groups)
	}
}

func TestParseReflectOutput(t *testing.T) {
	raw := "```\nDate: 2026-01-05\n- 10:30 [!] User has a React app with TypeScript and Next.js 14 (added Jan 5-10)\n```"
	out, err := parseReflectOutput(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if strings.Contains(out, "```") {
		t.Error("code fences not stripped")
	}
	if !strings.HasPrefix(out, "Date: 2026-01-05") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestParseReflectRejectsShort(t *testing.T) {
	_, err := parseReflectOutput("too short")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestParseReflectRejectsProse(t *testing.T) {
	_, err := parseReflectOutput(strings.Repeat("prose without any structure whatsoever. ", 5))
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestBuildExtractPromptIncludesDedupContext(t *testing.T) {
	p := buildExtractPrompt(ExtractRequest{
		PreviousTail: "Date: 2026-01-05\n- 10:00 [~] Known fact",
		Segment:      "[User]: something new",
		Today:        "2026-01-06",
	})
	if !strings.Contains(p, "Do NOT repeat") {
		t.Error("dedup instruction missing")
	}
	if !strings.Contains(p, "Known fact") {
		t.Error("previous tail missing")
	}
	if !strings.Contains(p, "2026-01-06") {
		t.Error("today's date missing")
	}
}
