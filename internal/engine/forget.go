package engine

import (
	"context"
	"fmt"

	"github.com/rcliao/observational-memory/internal/codec"
	"github.com/rcliao/observational-memory/internal/model"
)

// Candidate is one entry eligible for retraction. Children of a matching
// parent are listed separately so a caller can remove just the child.
type Candidate struct {
	ID       string         `json:"id"`
	Date     string         `json:"date"`
	Time     string         `json:"time,omitempty"`
	Priority model.Priority `json:"priority"`
	Text     string         `json:"text"`
	Children int            `json:"children,omitempty"`
}

// ForgetResult reports a committed retraction.
type ForgetResult struct {
	RunID            string      `json:"run_id"`
	Removed          []Candidate `json:"removed"`
	RemainingEntries int         `json:"remaining_entries"`
	RemovedGroups    int         `json:"removed_groups"`
}

// Forget finds entries matching a pattern, using the same semantics as
// Recall but listing every matching entry individually, descendants
// included. It does not mutate anything; removal happens in CommitForget
// after the boundary layer confirms the selection.
func (p *Project) Forget(ctx context.Context, pattern string) ([]Candidate, error) {
	unlock := p.lock()
	defer unlock()

	corpus, err := p.listAllLocked()
	if err != nil {
		return nil, err
	}
	if len(corpus.Store.Groups) == 0 {
		return nil, ErrEmptyCorpus
	}

	words := keywords(pattern)
	var out []Candidate
	var walk func(date string, entries []model.Entry)
	walk = func(date string, entries []model.Entry) {
		for i := range entries {
			e := &entries[i]
			if textMatches(e.Text, pattern, words) {
				out = append(out, Candidate{
					ID:       e.ID,
					Date:     date,
					Time:     e.Time,
					Priority: e.Priority,
					Text:     e.Text,
					Children: countEntries(e.Children),
				})
			}
			walk(date, e.Children)
		}
	}
	for _, g := range corpus.Store.Groups {
		walk(g.Date, g.Entries)
	}
	return out, nil
}

// CommitForget removes exactly the selected entries. Removing a parent
// cascades to its children; removing only a child leaves the parent
// intact; a date group emptied by removal is dropped rather than left as
// a dangling header. The pre-image is archived before the store is
// replaced — there is no undo at the store layer.
func (p *Project) CommitForget(ctx context.Context, ids []string) (*ForgetResult, error) {
	unlock := p.lock()
	defer unlock()

	if len(ids) == 0 {
		return nil, ErrNoSelection
	}

	text, err := p.loadStoreText()
	if err != nil {
		return nil, err
	}
	st := codec.Parse(text)

	selected := map[string]bool{}
	for _, id := range ids {
		selected[id] = true
	}

	res := &ForgetResult{RunID: newRunID()}
	var groups []model.DateGroup
	for _, g := range st.Groups {
		g.Entries = removeSelected(g.Date, g.Entries, selected, res)
		if len(g.Entries) == 0 {
			res.RemovedGroups++
			continue
		}
		groups = append(groups, g)
	}
	st.Groups = groups

	if len(res.Removed) == 0 {
		return nil, fmt.Errorf("%w: no entries matched the given ids", ErrNoSelection)
	}

	if err := p.archive("Forget", res.RunID, text, len(codec.Serialize(st))); err != nil {
		return nil, err
	}
	if err := p.writeStoreText(codec.Serialize(st)); err != nil {
		return nil, err
	}

	res.RemainingEntries = codec.Count(st)
	p.audit(res.RunID, fmt.Sprintf("forget removed=%d groups_dropped=%d remaining=%d",
		len(res.Removed), res.RemovedGroups, res.RemainingEntries))
	return res, nil
}

func removeSelected(date string, entries []model.Entry, selected map[string]bool, res *ForgetResult) []model.Entry {
	var kept []model.Entry
	for _, e := range entries {
		if selected[e.ID] {
			res.Removed = append(res.Removed, Candidate{
				ID:       e.ID,
				Date:     date,
				Time:     e.Time,
				Priority: e.Priority,
				Text:     e.Text,
				Children: countEntries(e.Children),
			})
			continue
		}
		e.Children = removeSelected(date, e.Children, selected, res)
		kept = append(kept, e)
	}
	return kept
}
