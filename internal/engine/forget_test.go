package engine

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

const forgetStore = `Date: 2025-06-10

- 09:00 [!] User prefers pnpm over npm
- 10:00 [~] Old npm registry mirror is still configured
  - 10:05 [-] Mirror points at registry.internal

Date: 2025-06-18

- 14:00 [~] Release scripts call npm publish directly
`

func candidateByText(t *testing.T, cands []Candidate, text string) Candidate {
	t.Helper()
	for _, c := range cands {
		if c.Text == text {
			return c
		}
	}
	t.Fatalf("no candidate with text %q in %+v", text, cands)
	return Candidate{}
}

func TestForgetListsEveryMatchWithoutMutating(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, forgetStore)

	cands, err := p.Forget(context.Background(), "npm")
	if err != nil {
		t.Fatal(err)
	}
	// "pnpm" contains "npm", so the preference entry is a candidate too;
	// selection, not matching, is what keeps it safe.
	if len(cands) != 3 {
		t.Fatalf("candidates = %d, want 3: %+v", len(cands), cands)
	}
	reg := candidateByText(t, cands, "Old npm registry mirror is still configured")
	if reg.Children != 1 {
		t.Errorf("registry candidate children = %d, want 1", reg.Children)
	}
	if readStore(t, p) != forgetStore {
		t.Error("preview mutated the store")
	}
}

func TestForgetEmptyCorpus(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	if _, err := p.Forget(context.Background(), "npm"); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestCommitForgetRemovesOnlySelected(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, forgetStore)

	cands, err := p.Forget(context.Background(), "npm")
	if err != nil {
		t.Fatal(err)
	}
	reg := candidateByText(t, cands, "Old npm registry mirror is still configured")

	res, err := p.CommitForget(context.Background(), []string{reg.ID})
	if err != nil {
		t.Fatal(err)
	}
	// Parent removal cascades to the child.
	if len(res.Removed) != 1 || res.Removed[0].Children != 1 {
		t.Fatalf("removed = %+v", res.Removed)
	}
	if res.RemainingEntries != 2 {
		t.Errorf("RemainingEntries = %d, want 2", res.RemainingEntries)
	}

	store := readStore(t, p)
	if strings.Contains(store, "registry mirror") || strings.Contains(store, "registry.internal") {
		t.Errorf("selected subtree survived:\n%s", store)
	}
	if !strings.Contains(store, "User prefers pnpm over npm") {
		t.Errorf("unselected candidate was removed:\n%s", store)
	}
	if !strings.Contains(store, "npm publish") {
		t.Errorf("unrelated entry was removed:\n%s", store)
	}
}

func TestCommitForgetDropsEmptiedGroup(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, forgetStore)

	cands, err := p.Forget(context.Background(), "npm publish")
	if err != nil {
		t.Fatal(err)
	}
	pub := candidateByText(t, cands, "Release scripts call npm publish directly")

	res, err := p.CommitForget(context.Background(), []string{pub.ID})
	if err != nil {
		t.Fatal(err)
	}
	if res.RemovedGroups != 1 {
		t.Errorf("RemovedGroups = %d, want 1", res.RemovedGroups)
	}
	if strings.Contains(readStore(t, p), "Date: 2025-06-18") {
		t.Error("emptied date group left a dangling header")
	}
}

func TestCommitForgetRequiresSelection(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, forgetStore)

	if _, err := p.CommitForget(context.Background(), nil); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v, want ErrNoSelection", err)
	}
	if _, err := p.CommitForget(context.Background(), []string{"does-not-exist"}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("unknown id err = %v, want ErrNoSelection", err)
	}
	if readStore(t, p) != forgetStore {
		t.Error("store mutated by a rejected commit")
	}
}

func TestCommitForgetArchivesPreImage(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, forgetStore)

	cands, err := p.Forget(context.Background(), "registry")
	if err != nil {
		t.Fatal(err)
	}
	reg := candidateByText(t, cands, "Old npm registry mirror is still configured")
	if _, err := p.CommitForget(context.Background(), []string{reg.ID}); err != nil {
		t.Fatal(err)
	}

	archive, err := os.ReadFile(p.ArchivePath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(archive), "registry mirror") {
		t.Error("archive missing the removed content")
	}
	if !strings.Contains(string(archive), "Forget") {
		t.Error("archive missing the Forget label")
	}
}

func TestForgetThenRecallIsolation(t *testing.T) {
	p := newTestProject(t, &fakeSummarizer{})
	writeStore(t, p, forgetStore)

	cands, err := p.Forget(context.Background(), "registry")
	if err != nil {
		t.Fatal(err)
	}
	reg := candidateByText(t, cands, "Old npm registry mirror is still configured")
	if _, err := p.CommitForget(context.Background(), []string{reg.ID}); err != nil {
		t.Fatal(err)
	}

	res, err := p.Recall(context.Background(), "registry")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 0 {
		t.Fatalf("forgotten content still recallable: %+v", res.Matches)
	}
	if len(res.Suggestions) == 0 {
		t.Error("no suggestions after the miss")
	}
}
