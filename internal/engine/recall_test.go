package engine

import (
	"context"
	"errors"
	"testing"
)

const recallStore = `Date: 2025-06-10

- 09:00 [!] User prefers pnpm over npm for workspace installs
- 10:00 [~] API pagination uses opaque cursors
  - 10:05 [-] Page size defaults to 50

Date: 2025-06-18

- 14:00 [!] Deployment target is a single Hetzner VM
- 15:00 [~] Database migrations run through goose
`

func TestListAllStats(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, recallStore)

	corpus, err := p.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if corpus.Stats.Entries != 5 {
		t.Errorf("Entries = %d, want 5", corpus.Stats.Entries)
	}
	if corpus.Stats.Groups != 2 {
		t.Errorf("Groups = %d, want 2", corpus.Stats.Groups)
	}
	if corpus.Stats.EarliestDate != "2025-06-10" || corpus.Stats.LatestDate != "2025-06-18" {
		t.Errorf("span = %s..%s", corpus.Stats.EarliestDate, corpus.Stats.LatestDate)
	}
	if corpus.Stats.ByteSize != len(recallStore) {
		t.Errorf("ByteSize = %d, want %d", corpus.Stats.ByteSize, len(recallStore))
	}
}

func TestRecallEmptyCorpus(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	if _, err := p.Recall(context.Background(), "anything"); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestRecallFindsByKeyword(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, recallStore)

	res, err := p.Recall(context.Background(), "deployment")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(res.Matches))
	}
	m := res.Matches[0]
	if m.Date != "2025-06-18" || m.Entry.Text != "Deployment target is a single Hetzner VM" {
		t.Errorf("unexpected match: %+v", m)
	}
	if res.Suggestions != nil {
		t.Error("suggestions offered despite a hit")
	}
}

func TestRecallCaseInsensitivePhrase(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, recallStore)

	res, err := p.Recall(context.Background(), "PNPM OVER NPM")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(res.Matches))
	}
}

func TestRecallChildMatchRecallsRoot(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, recallStore)

	res, err := p.Recall(context.Background(), "page size")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(res.Matches))
	}
	root := res.Matches[0].Entry
	if root.Text != "API pagination uses opaque cursors" {
		t.Errorf("recalled %q, want the parent entry", root.Text)
	}
	if len(root.Children) != 1 {
		t.Errorf("children lost: %+v", root)
	}
}

func TestRecallMissSuggestsFromHighPriority(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, recallStore)

	res, err := p.Recall(context.Background(), "zzz-nonexistent-topic")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 0 {
		t.Fatalf("unexpected matches: %+v", res.Matches)
	}
	if len(res.Suggestions) == 0 {
		t.Fatal("no suggestions on a miss")
	}
	if len(res.Suggestions) > maxSuggestions {
		t.Errorf("%d suggestions, cap is %d", len(res.Suggestions), maxSuggestions)
	}
	// Suggestions come from the high-priority entries only.
	for _, s := range res.Suggestions {
		if s == "goose" || s == "pagination" {
			t.Errorf("suggestion %q drawn from a non-high-priority entry", s)
		}
	}
}

func TestKeywordsDropShortAndStopwords(t *testing.T) {
	got := keywords("the API and its pagination, for real")
	want := map[string]bool{"api": true, "pagination": true, "its": true, "real": true}
	for _, w := range got {
		if !want[w] {
			t.Errorf("unexpected keyword %q", w)
		}
	}
	for _, w := range got {
		if w == "the" || w == "and" || w == "for" {
			t.Errorf("stopword %q survived", w)
		}
	}
}
