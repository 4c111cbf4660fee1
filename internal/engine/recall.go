package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/rcliao/observational-memory/internal/codec"
	"github.com/rcliao/observational-memory/internal/model"
)

// Stats summarizes the corpus.
type Stats struct {
	ByteSize     int    `json:"byte_size"`
	ApproxTokens int    `json:"approx_tokens"`
	Entries      int    `json:"entries"`
	Groups       int    `json:"groups"`
	EarliestDate string `json:"earliest_date,omitempty"`
	LatestDate   string `json:"latest_date,omitempty"`
}

// Corpus is the full store with stats, as served by ListAll.
type Corpus struct {
	Text  string       `json:"-"`
	Store *model.Store `json:"store"`
	Stats Stats        `json:"stats"`
}

// Match is one recalled entry with its date context.
type Match struct {
	Date  string      `json:"date"`
	Entry model.Entry `json:"entry"`
}

// RecallResult holds search output. An empty Matches with a non-nil
// result means "no matches" against a non-empty corpus; an empty corpus
// is reported as ErrEmptyCorpus instead.
type RecallResult struct {
	Topic       string   `json:"topic"`
	Matches     []Match  `json:"matches"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// maxSuggestions caps related-topic hints on a miss.
const maxSuggestions = 5

// ListAll serves the whole corpus with stats.
func (p *Project) ListAll(ctx context.Context) (*Corpus, error) {
	unlock := p.lock()
	defer unlock()
	return p.listAllLocked()
}

func (p *Project) listAllLocked() (*Corpus, error) {
	text, err := p.loadStoreText()
	if err != nil {
		return nil, err
	}
	st := codec.Parse(text)
	earliest, latest := codec.Span(st)
	return &Corpus{
		Text:  text,
		Store: st,
		Stats: Stats{
			ByteSize:     len(text),
			ApproxTokens: len(text) / 4,
			Entries:      codec.Count(st),
			Groups:       len(st.Groups),
			EarliestDate: earliest,
			LatestDate:   latest,
		},
	}, nil
}

// Recall searches the corpus for a topic. Matching is case-insensitive:
// an entry matches when its text contains the whole topic or shares a
// significant keyword with it; a match anywhere in an entry's subtree
// recalls the root entry with its children as context.
func (p *Project) Recall(ctx context.Context, topic string) (*RecallResult, error) {
	unlock := p.lock()
	defer unlock()

	corpus, err := p.listAllLocked()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(corpus.Text) == "" {
		return nil, ErrEmptyCorpus
	}

	res := &RecallResult{Topic: topic}
	words := keywords(topic)
	for _, g := range corpus.Store.Groups {
		for _, e := range g.Entries {
			if entryMatches(&e, topic, words) {
				res.Matches = append(res.Matches, Match{Date: g.Date, Entry: e})
			}
		}
	}

	if len(res.Matches) == 0 {
		res.Suggestions = suggestTopics(corpus.Store)
	}
	return res, nil
}

func entryMatches(e *model.Entry, topic string, words []string) bool {
	if textMatches(e.Text, topic, words) {
		return true
	}
	for i := range e.Children {
		if entryMatches(&e.Children[i], topic, words) {
			return true
		}
	}
	return false
}

func textMatches(text, topic string, words []string) bool {
	lower := strings.ToLower(text)
	if topic != "" && strings.Contains(lower, strings.ToLower(topic)) {
		return true
	}
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// keywords extracts significant lowercase terms from a topic.
func keywords(topic string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) >= 3 && !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// suggestTopics draws related-topic hints from high-priority entries: the
// most frequent significant terms across them.
func suggestTopics(st *model.Store) []string {
	freq := map[string]int{}
	var collect func(entries []model.Entry)
	collect = func(entries []model.Entry) {
		for _, e := range entries {
			if e.Priority == model.PriorityHigh && !e.Raw {
				for _, w := range keywords(e.Text) {
					freq[w]++
				}
			}
			collect(e.Children)
		}
	}
	for _, g := range st.Groups {
		collect(g.Entries)
	}

	terms := make([]string, 0, len(freq))
	for w := range freq {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxSuggestions {
		terms = terms[:maxSuggestions]
	}
	return terms
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "has": true, "was": true, "are": true, "not": true,
	"uses": true, "using": true, "user": true, "from": true, "into": true,
}
