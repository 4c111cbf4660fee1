package summarizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rcliao/observational-memory/internal/codec"
	"github.com/rcliao/observational-memory/internal/model"
)

// nothingNewSignal is the exact reply meaning the segment held no facts
// worth recording.
const nothingNewSignal = "NO_NEW_OBSERVATIONS"

const observerSystemPrompt = `You are the observer of a long-term memory system for a coding assistant.
You read new conversation messages and record durable facts the assistant
should remember across sessions.

Record facts in exactly this format, one dated section per calendar date:

Date: YYYY-MM-DD
- HH:MM [!] High-priority fact (user-stated facts, decisions, identifiers, file paths, open issues)
- HH:MM [~] Medium-priority fact (useful working context)
  - HH:MM [~] Sub-detail elaborating on the fact above (indent two spaces)
- HH:MM [-] Low-priority fact (transient detail, likely to expire)

Rules:
- Each fact is 1-2 complete sentences. Never cut a sentence short.
- Use the [!] / [~] / [-] markers for high / medium / low priority.
- Use times from the conversation when available, otherwise the current time.
- Nest at most two levels deep.
- Do NOT repeat anything from the previous observations you are shown.
- Skip greetings, pleasantries, and conversation mechanics.

Wrap the dated sections in an <observations> block. If you can tell what
the user is currently working toward, add a one-line <current-task> block;
if there is an obvious next step, add a one-line <suggested-response>
block.

If the new messages contain nothing worth remembering, reply with exactly:
NO_NEW_OBSERVATIONS`

const reflectorSystemPrompt = `You condense the observation log of a long-term memory system. You will be
given one age band of the log and a target size. Rewrite it smaller while
keeping every load-bearing fact.

Preserve always, regardless of age:
- Facts the user stated about themselves or their project
- Architecture and tech-stack decisions
- File paths, identifiers, names, version numbers
- Open issues and unresolved questions

Safe to drop:
- Debugging detail for problems that were resolved
- Approaches that were tried and abandoned
- Exploratory questions that were answered
- Low-priority [-] items older than the band

When several entries describe a progression of the same value (A, then B,
then C), keep one entry stating the final value with a short parenthetical
history. When an inferred observation conflicts with something the user
stated outright, keep the user's statement and drop the inference.

Output ONLY the condensed log, in the same format you received:

Date: YYYY-MM-DD
- HH:MM [!] text
  - HH:MM [~] nested detail

Keep date sections in their original order. Do not add commentary, code
fences, or anything outside the log format.`

func buildExtractPrompt(req ExtractRequest) string {
	var b strings.Builder
	if strings.TrimSpace(req.PreviousTail) != "" {
		b.WriteString("## Previous Observations\n\n")
		b.WriteString(strings.TrimSpace(req.PreviousTail))
		b.WriteString("\n\n---\n")
		b.WriteString("Do NOT repeat any of the above observations. Only extract genuinely new information.\n")
	}
	b.WriteString("\n## New Messages to Observe\n\n")
	b.WriteString(req.Segment)
	b.WriteString("\n\n---\n\n## Your Task\n\n")
	fmt.Fprintf(&b, "Extract new observations from the messages above. Today's date is %s. ", req.Today)
	b.WriteString("Use actual timestamps from the conversation when available. ")
	b.WriteString("Return ONLY the new observations block, or NO_NEW_OBSERVATIONS if there is nothing meaningful to note.")
	return b.String()
}

func buildReflectPrompt(req ReflectRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Observations to Condense (%s band)\n\n", req.Band)
	b.WriteString(req.StoreText)
	b.WriteString("\n\n---\n\n")
	fmt.Fprintf(&b, "Condense these observations. Today's date is %s. ", req.Today)
	fmt.Fprintf(&b, "Current size: %d characters. Target: ~%d characters.", len(req.StoreText), req.TargetChars)
	if req.Band == "aged" {
		b.WriteString(" This is the oldest band: compress aggressively, but the preserve-always rules still apply.")
	}
	return b.String()
}

var (
	fenceOpenRe    = regexp.MustCompile("^```[a-zA-Z]*\n?")
	fenceCloseRe   = regexp.MustCompile("\n?```$")
	observationsRe = regexp.MustCompile(`(?s)<observations>(.*?)</observations>`)
	currentTaskRe  = regexp.MustCompile(`(?s)<current-task>(.*?)</current-task>`)
	suggestedRe    = regexp.MustCompile(`(?s)<suggested-response>(.*?)</suggested-response>`)
)

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = fenceCloseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// parseExtractOutput validates and structures a raw observer reply.
// Replies that carry no valid dated entries are rejected rather than
// merged, so a confused backend can never corrupt the store.
func parseExtractOutput(raw string) (*ExtractResult, error) {
	cleaned := stripFences(raw)
	if cleaned == "" || strings.HasPrefix(cleaned, nothingNewSignal) {
		return &ExtractResult{NothingNew: true}, nil
	}

	result := &ExtractResult{}
	if m := currentTaskRe.FindStringSubmatch(cleaned); m != nil {
		result.CurrentTask = strings.TrimSpace(m[1])
	}
	if m := suggestedRe.FindStringSubmatch(cleaned); m != nil {
		result.SuggestedResponse = strings.TrimSpace(m[1])
	}

	obsText := cleaned
	if m := observationsRe.FindStringSubmatch(cleaned); m != nil {
		obsText = strings.TrimSpace(m[1])
	} else {
		obsText = currentTaskRe.ReplaceAllString(obsText, "")
		obsText = suggestedRe.ReplaceAllString(obsText, "")
		obsText = strings.TrimSpace(obsText)
	}
	obsText = stripFences(obsText)

	if obsText == "" || strings.HasPrefix(obsText, nothingNewSignal) {
		return &ExtractResult{
			NothingNew:        true,
			CurrentTask:       result.CurrentTask,
			SuggestedResponse: result.SuggestedResponse,
		}, nil
	}

	if err := codec.Validate(obsText); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	result.Groups = sanitizeGroups(codec.Parse(obsText))
	if len(result.Groups) == 0 {
		return nil, fmt.Errorf("%w: no dated entries", ErrInvalidResponse)
	}
	return result, nil
}

// parseReflectOutput validates a raw reflector reply and returns the
// condensed store text.
func parseReflectOutput(raw string) (string, error) {
	cleaned := stripFences(raw)
	if len(cleaned) < 50 {
		return "", fmt.Errorf("%w: response too short (%d chars)", ErrInvalidResponse, len(cleaned))
	}
	if err := codec.Validate(cleaned); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return cleaned, nil
}

// sanitizeGroups keeps only dated groups and structured entries from a
// backend reply. The lenient codec accepts junk lines; a reply is held to
// a stricter standard than the store itself.
func sanitizeGroups(st *model.Store) []model.DateGroup {
	var groups []model.DateGroup
	for _, g := range st.Groups {
		if g.Date == "" {
			continue
		}
		var entries []model.Entry
		for _, e := range g.Entries {
			if e.Raw {
				continue
			}
			e.Children = dropRaw(e.Children)
			entries = append(entries, e)
		}
		if len(entries) > 0 {
			groups = append(groups, model.DateGroup{Date: g.Date, Entries: entries})
		}
	}
	return groups
}

func dropRaw(entries []model.Entry) []model.Entry {
	var out []model.Entry
	for _, e := range entries {
		if e.Raw {
			continue
		}
		e.Children = dropRaw(e.Children)
		out = append(out, e)
	}
	return out
}
