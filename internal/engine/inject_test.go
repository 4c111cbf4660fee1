package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/rcliao/observational-memory/internal/cursor"
)

func TestInjectEmptyStore(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	res, err := p.Inject(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if res.Context != "" {
		t.Error("empty store produced context")
	}
}

func TestInjectWrapsStoreWithGuidance(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	store := "Date: 2025-06-18\n\n- 14:00 [!] Deploy target is a single VM\n"
	writeStore(t, p, store)

	res, err := p.Inject(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Empty || res.Truncated {
		t.Fatalf("unexpected flags: %+v", res)
	}
	if !strings.Contains(res.Context, "<observations>") || !strings.Contains(res.Context, "</observations>") {
		t.Error("observations not delimited")
	}
	if !strings.Contains(res.Context, "Deploy target is a single VM") {
		t.Error("store content missing")
	}
	if !strings.Contains(res.Context, "MOST RECENT") {
		t.Error("usage guidance missing")
	}
	if res.StoreBytes != len(store) {
		t.Errorf("StoreBytes = %d, want %d", res.StoreBytes, len(store))
	}
	if res.ApproxTokens != len(store)/4 {
		t.Errorf("ApproxTokens = %d, want %d", res.ApproxTokens, len(store)/4)
	}
}

func TestInjectTruncatesKeepingRecentTail(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	p.eng.cfg.Inject.MaxChars = 200

	old := "Date: 2025-01-01\n\n" + strings.Repeat("- 09:00 [-] Old filler observation line\n", 20)
	recent := "Date: 2025-06-19\n\n- 12:00 [!] The newest important fact\n"
	writeStore(t, p, old+recent)

	res, err := p.Inject(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if !strings.Contains(res.Context, "The newest important fact") {
		t.Error("recent tail lost to truncation")
	}
	if !strings.Contains(res.Context, "[... older observations truncated ...]") {
		t.Error("truncation notice missing")
	}
	if strings.Contains(res.Context, "Date: 2025-01-01") {
		t.Error("oldest content survived the cap")
	}
}

func TestInjectCarriesTaskContinuity(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, "Date: 2025-06-19\n\n- 12:00 [~] Some fact\n")
	if err := cursor.Save(p.Dir(), &cursor.Cursor{
		CurrentTask:       "migrating the build to pnpm",
		SuggestedResponse: "finish the lockfile conversion",
	}); err != nil {
		t.Fatal(err)
	}

	res, err := p.Inject(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Context, "Task Continuity") {
		t.Error("continuity section missing")
	}
	if !strings.Contains(res.Context, "migrating the build to pnpm") {
		t.Error("current task missing")
	}
	if !strings.Contains(res.Context, "finish the lockfile conversion") {
		t.Error("suggested next step missing")
	}
}
