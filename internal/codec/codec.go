// Package codec parses and serializes the observations.md store format.
//
// The format is line-oriented:
//
//	Date: 2026-01-05
//	- 10:30 [!] User prefers pnpm over npm
//	  - 10:32 [~] Workspace uses pnpm 9
//
// Parsing is lossy-averse: lines that fail to parse are preserved verbatim
// as raw entries instead of being dropped, so a partially corrupt store
// never loses content on a read-modify-write cycle.
package codec

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/rcliao/observational-memory/internal/model"
)

var (
	dateRe   = regexp.MustCompile(`^Date:\s*(\d{4}-\d{2}-\d{2})\s*$`)
	timeRe   = regexp.MustCompile(`^(\d{2}:\d{2})\s+`)
	markerRe = regexp.MustCompile(`^(\[[!~-]\])\s+`)
)

// maxDepth bounds entry nesting. Deeper indentation is clamped to the
// closest supported level.
const maxDepth = 2

// Parse reads store text into the typed tree. It never fails on malformed
// content; offending lines survive as raw entries.
func Parse(text string) *model.Store {
	st := &model.Store{}

	var group *model.DateGroup
	ensureGroup := func(date string) *model.DateGroup {
		st.Groups = append(st.Groups, model.DateGroup{Date: date})
		return &st.Groups[len(st.Groups)-1]
	}

	// Last structured entry seen at each depth, for child attachment.
	var parents [maxDepth + 1]*model.Entry

	appendEntry := func(e model.Entry, depth int) {
		if group == nil {
			group = ensureGroup("")
		}
		for depth > 0 && parents[depth-1] == nil {
			depth--
		}
		if depth == 0 {
			group.Entries = append(group.Entries, e)
			parents[0] = &group.Entries[len(group.Entries)-1]
			parents[1], parents[2] = nil, nil
			return
		}
		p := parents[depth-1]
		p.Children = append(p.Children, e)
		parents[depth] = &p.Children[len(p.Children)-1]
		for d := depth + 1; d <= maxDepth; d++ {
			parents[d] = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := dateRe.FindStringSubmatch(line); m != nil {
			group = ensureGroup(m[1])
			parents[0], parents[1], parents[2] = nil, nil, nil
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " "))
		depth := indent / 2
		if depth > maxDepth {
			depth = maxDepth
		}

		body, ok := strings.CutPrefix(strings.TrimLeft(line, " "), "- ")
		if !ok {
			appendEntry(model.Entry{Text: line, Raw: true}, 0)
			continue
		}

		tm := timeRe.FindStringSubmatch(body)
		if tm == nil {
			// No parseable time. Keep the whole line so nothing is lost.
			appendEntry(model.Entry{Text: line, Raw: true}, 0)
			continue
		}
		body = body[len(tm[0]):]

		prio := model.PriorityMedium
		if pm := markerRe.FindStringSubmatch(body); pm != nil {
			prio, _ = model.ParseMarker(pm[1])
			body = body[len(pm[0]):]
		}

		appendEntry(model.Entry{
			Time:     tm[1],
			Priority: prio,
			Text:     strings.TrimSpace(body),
		}, depth)
	}

	AssignIDs(st)
	return st
}

// Serialize renders the store back to its on-disk text form. Structured
// entries always get a time and a priority marker; raw entries are emitted
// verbatim.
func Serialize(st *model.Store) string {
	var b strings.Builder
	for i := range st.Groups {
		g := &st.Groups[i]
		if i > 0 {
			b.WriteString("\n")
		}
		if g.Date != "" {
			fmt.Fprintf(&b, "Date: %s\n", g.Date)
		}
		for j := range g.Entries {
			writeEntry(&b, &g.Entries[j], 0)
		}
	}
	return b.String()
}

func writeEntry(b *strings.Builder, e *model.Entry, depth int) {
	if e.Raw {
		b.WriteString(e.Text)
		b.WriteString("\n")
	} else {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("- ")
		if e.Time != "" {
			b.WriteString(e.Time)
			b.WriteString(" ")
		}
		b.WriteString(e.Priority.Marker())
		b.WriteString(" ")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	for i := range e.Children {
		writeEntry(b, &e.Children[i], depth+1)
	}
}

// AssignIDs gives every entry a deterministic content-derived ID so a
// selection made against one parse of the store resolves identically in a
// later process. Duplicate content gets an ordinal suffix.
func AssignIDs(st *model.Store) {
	seen := map[string]int{}
	for i := range st.Groups {
		g := &st.Groups[i]
		for j := range g.Entries {
			assignID(&g.Entries[j], g.Date, seen)
		}
	}
}

func assignID(e *model.Entry, date string, seen map[string]int) {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", date, e.Time, e.Text)
	base := fmt.Sprintf("%016x", h.Sum64())
	if n := seen[base]; n > 0 {
		e.ID = fmt.Sprintf("%s-%d", base, n)
	} else {
		e.ID = base
	}
	seen[base]++
	for i := range e.Children {
		assignID(&e.Children[i], date, seen)
	}
}

// Count returns the total number of entries, children included. Raw
// entries count too; they are content.
func Count(st *model.Store) int {
	n := 0
	for i := range st.Groups {
		for j := range st.Groups[i].Entries {
			n += countEntry(&st.Groups[i].Entries[j])
		}
	}
	return n
}

func countEntry(e *model.Entry) int {
	n := 1
	for i := range e.Children {
		n += countEntry(&e.Children[i])
	}
	return n
}

// Span returns the earliest and latest dates present in the store. Empty
// strings when no dated group exists. ISO dates compare lexically.
func Span(st *model.Store) (earliest, latest string) {
	for _, g := range st.Groups {
		if g.Date == "" {
			continue
		}
		if earliest == "" || g.Date < earliest {
			earliest = g.Date
		}
		if g.Date > latest {
			latest = g.Date
		}
	}
	return earliest, latest
}

// Validate checks that text conforms to the store grammar well enough to
// accept as a summarizer response: at least one dated group holding at
// least one structured entry.
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty store text")
	}
	st := Parse(text)
	dated := false
	for _, g := range st.Groups {
		if g.Date == "" {
			continue
		}
		for _, e := range g.Entries {
			if !e.Raw {
				dated = true
			}
		}
	}
	if !dated {
		return fmt.Errorf("no dated observation entries found")
	}
	return nil
}
