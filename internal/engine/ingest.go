package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/observational-memory/internal/codec"
	"github.com/rcliao/observational-memory/internal/cursor"
	"github.com/rcliao/observational-memory/internal/model"
	"github.com/rcliao/observational-memory/internal/summarizer"
	"github.com/rcliao/observational-memory/internal/transcript"
)

// ObserveResult reports what an ingest run did.
type ObserveResult struct {
	RunID        string `json:"run_id,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
	SkipReason   string `json:"skip_reason,omitempty"`
	NothingNew   bool   `json:"nothing_new,omitempty"`
	Degraded     bool   `json:"degraded,omitempty"`
	EntriesAdded int    `json:"entries_added"`
	NewChars     int    `json:"new_chars"`
	StoreBytes   int    `json:"store_bytes"`
}

// Observe ingests the unobserved portion of a transcript: it slices past
// the cursor, asks the summarizer for new entries, merges them into the
// store without duplicating recorded facts, and advances the cursor.
//
// Durability order is store first, cursor second. A crash between the two
// re-extracts an already-merged segment on retry, which the dedup guard
// absorbs; the reverse order could silently lose observations.
func (p *Project) Observe(ctx context.Context, transcriptText, transcriptPath string) (*ObserveResult, error) {
	unlock := p.lock()
	defer unlock()

	cfg := p.eng.cfg
	res := &ObserveResult{}
	data := []byte(transcriptText)

	c := cursor.Load(p.dir)
	if transcriptPath != "" && c.TranscriptPath != "" && c.TranscriptPath != transcriptPath {
		// New session transcript: start over.
		c = &cursor.Cursor{}
	}

	if !c.Verify(data) {
		// The transcript was rewritten or truncated beneath the cursor.
		// Safe default: re-extract from the top with dedup context, and
		// flag the run as degraded-confidence.
		p.eng.log.Warn("cursor mismatch, re-extracting from start",
			"dir", p.dir, "offset", c.Offset)
		res.Degraded = true
		c.Offset = 0
		c.Checksum = ""
	}

	if c.Offset >= len(data) {
		res.Skipped = true
		res.SkipReason = "cursor at end of transcript"
		return res, nil
	}

	segment := transcriptText[c.Offset:]
	res.NewChars = len(segment)
	if len(segment) < cfg.Observer.MinNewChars && !res.Degraded {
		// Too little new content to bother the summarizer. The cursor
		// stays put so the content is picked up next run.
		res.Skipped = true
		res.SkipReason = fmt.Sprintf("only %d new chars (minimum %d)", len(segment), cfg.Observer.MinNewChars)
		return res, nil
	}

	storeText, err := p.loadStoreText()
	if err != nil {
		return nil, err
	}
	st := codec.Parse(storeText)

	runID := newRunID()
	res.RunID = runID

	extracted, err := p.eng.sum.Extract(ctx, summarizer.ExtractRequest{
		PreviousTail: tailText(st, cfg.Observer.TailGroups),
		Segment:      transcript.Tail(segment, cfg.Observer.MaxPromptChars),
		Today:        p.eng.today(),
	})
	if err != nil {
		// Nothing was mutated; the caller may retry.
		return nil, fmt.Errorf("summarizer extract: %w", err)
	}

	advance := func() error {
		c.Offset = len(data)
		c.Checksum = cursor.Checksum(data, len(data))
		c.TranscriptPath = transcriptPath
		c.LastRunID = runID
		if extracted.CurrentTask != "" {
			c.CurrentTask = extracted.CurrentTask
		}
		if extracted.SuggestedResponse != "" {
			c.SuggestedResponse = extracted.SuggestedResponse
		}
		return cursor.Save(p.dir, c)
	}

	if extracted.NothingNew {
		// "Nothing new" is still a processed result: the cursor advances
		// so the segment is never re-examined.
		if err := advance(); err != nil {
			return nil, err
		}
		res.NothingNew = true
		res.StoreBytes = len(storeText)
		p.audit(runID, fmt.Sprintf("observe nothing-new offset=%d degraded=%t", c.Offset, res.Degraded))
		return res, nil
	}

	added := mergeGroups(st, extracted.Groups)
	if added == 0 {
		// Everything the summarizer returned was already recorded.
		if err := advance(); err != nil {
			return nil, err
		}
		res.NothingNew = true
		res.StoreBytes = len(storeText)
		p.audit(runID, fmt.Sprintf("observe all-duplicates offset=%d degraded=%t", c.Offset, res.Degraded))
		return res, nil
	}

	newText := codec.Serialize(st)
	if err := p.writeStoreText(newText); err != nil {
		return nil, err
	}
	if err := advance(); err != nil {
		return nil, err
	}

	res.EntriesAdded = added
	res.StoreBytes = len(newText)
	p.audit(runID, fmt.Sprintf("observe added=%d offset=%d store=%d degraded=%t",
		added, c.Offset, res.StoreBytes, res.Degraded))
	return res, nil
}

// mergeGroups appends new entries into the store by date: entries join
// the existing group with a matching date, otherwise a new group goes at
// the end. Entries whose normalized text already exists anywhere in the
// store are dropped. Returns the number of entries added, children
// included.
func mergeGroups(st *model.Store, groups []model.DateGroup) int {
	existing := map[string]bool{}
	for i := range st.Groups {
		collectTexts(st.Groups[i].Entries, existing)
	}

	added := 0
	for _, g := range groups {
		var fresh []model.Entry
		for _, e := range g.Entries {
			if existing[normalizeText(e.Text)] {
				continue
			}
			existing[normalizeText(e.Text)] = true
			fresh = append(fresh, e)
			added += countEntries([]model.Entry{e})
		}
		if len(fresh) == 0 {
			continue
		}
		if target := findGroup(st, g.Date); target != nil {
			target.Entries = append(target.Entries, fresh...)
		} else {
			st.Groups = append(st.Groups, model.DateGroup{Date: g.Date, Entries: fresh})
		}
	}
	if added > 0 {
		codec.AssignIDs(st)
	}
	return added
}

func findGroup(st *model.Store, date string) *model.DateGroup {
	for i := len(st.Groups) - 1; i >= 0; i-- {
		if st.Groups[i].Date == date {
			return &st.Groups[i]
		}
	}
	return nil
}

func collectTexts(entries []model.Entry, into map[string]bool) {
	for i := range entries {
		into[normalizeText(entries[i].Text)] = true
		collectTexts(entries[i].Children, into)
	}
}

func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".")
	return strings.Join(strings.Fields(s), " ")
}

func countEntries(entries []model.Entry) int {
	n := 0
	for i := range entries {
		n += 1 + countEntries(entries[i].Children)
	}
	return n
}

// tailText serializes the most recent date groups as dedup context for
// the summarizer.
func tailText(st *model.Store, groups int) string {
	if groups <= 0 || len(st.Groups) == 0 {
		return ""
	}
	start := len(st.Groups) - groups
	if start < 0 {
		start = 0
	}
	tail := model.Store{Groups: st.Groups[start:]}
	return codec.Serialize(&tail)
}
