package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rcliao/observational-memory/internal/cursor"
)

// InjectResult is the rendered context for a new session.
type InjectResult struct {
	Context      string `json:"context"`
	ApproxTokens int    `json:"approx_tokens"`
	StoreBytes   int    `json:"store_bytes"`
	LastUpdated  string `json:"last_updated,omitempty"`
	Truncated    bool   `json:"truncated,omitempty"`
	Empty        bool   `json:"empty,omitempty"`
}

// Inject renders the corpus for context injection at session start. The
// output is capped; when the store exceeds the cap the most recent tail
// wins, since later observations supersede earlier ones.
func (p *Project) Inject(ctx context.Context) (*InjectResult, error) {
	unlock := p.lock()
	defer unlock()

	text, err := p.loadStoreText()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return &InjectResult{Empty: true}, nil
	}

	res := &InjectResult{
		StoreBytes:   len(text),
		ApproxTokens: len(text) / 4,
	}

	observations := text
	if max := p.eng.cfg.Inject.MaxChars; len(observations) > max {
		observations = "[... older observations truncated ...]\n\n" + observations[len(observations)-max:]
		res.Truncated = true
	}

	if info, err := os.Stat(p.ObservationsPath()); err == nil {
		res.LastUpdated = info.ModTime().UTC().Format("2006-01-02 15:04 UTC")
	}

	c := cursor.Load(p.dir)
	var continuity strings.Builder
	if c.CurrentTask != "" || c.SuggestedResponse != "" {
		continuity.WriteString("\n### Task Continuity (from last session)\n")
		if c.CurrentTask != "" {
			fmt.Fprintf(&continuity, "- **Last task**: %s\n", c.CurrentTask)
		}
		if c.SuggestedResponse != "" {
			fmt.Fprintf(&continuity, "- **Suggested next step**: %s\n", c.SuggestedResponse)
		}
	}

	res.Context = fmt.Sprintf(`## Observational Memory

The following observations were automatically extracted from your previous conversations with this user. They represent your long-term memory across sessions.

<observations>
%s
</observations>
%s
### How to use these observations:
- Reference specific details from observations when relevant to the current task
- Prefer the MOST RECENT information when observations conflict
- If an observation mentions a planned action with a past date, assume it was completed unless told otherwise
- New observations will be automatically extracted after this session ends

Observation stats: ~%d tokens, last updated: %s`,
		strings.TrimRight(observations, "\n"), continuity.String(), res.ApproxTokens, res.LastUpdated)

	return res, nil
}
