// Package transcript reads session transcripts (JSONL) and flattens them
// into plain text for the summarizer.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Message is one transcript line with its position.
type Message struct {
	Type    string
	Text    string
	Line    int
}

type rawEntry struct {
	Type    string          `json:"type"`
	Summary string          `json:"summary"`
	Message json.RawMessage `json:"message"`
}

type rawMessage struct {
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ReadFile parses a JSONL transcript. Malformed lines are skipped; a
// missing file yields no messages and no error, matching the hook's
// tolerance for sessions that never wrote a transcript.
func ReadFile(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var messages []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var entry rawEntry
		if err := json.Unmarshal([]byte(text), &entry); err != nil {
			continue
		}
		if m := extractText(entry); m != "" {
			messages = append(messages, Message{Type: entry.Type, Text: m, Line: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return messages, fmt.Errorf("scan transcript: %w", err)
	}
	return messages, nil
}

// Format joins messages into observer-readable text. Appending messages
// to a transcript only ever appends to this output, which keeps byte
// offsets over it stable across incremental runs.
func Format(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n\n")
}

func extractText(entry rawEntry) string {
	switch entry.Type {
	case "human", "user":
		text := contentText(entry.Message, false)
		if text == "" {
			return ""
		}
		return "[User]: " + text
	case "assistant":
		text := contentText(entry.Message, true)
		if text == "" {
			return ""
		}
		return "[Assistant]: " + text
	case "summary":
		if entry.Summary == "" {
			return ""
		}
		return "[Context Summary]: " + entry.Summary
	}
	return ""
}

func contentText(msg json.RawMessage, withTools bool) string {
	if len(msg) == 0 {
		return ""
	}
	var rm rawMessage
	if err := json.Unmarshal(msg, &rm); err != nil {
		return ""
	}
	content := rm.Content
	if len(content) == 0 {
		content = msg
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}
	var texts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if t := strings.TrimSpace(b.Text); t != "" {
				texts = append(texts, t)
			}
		case "tool_use":
			if withTools {
				texts = append(texts, summarizeToolUse(b.Name, b.Input))
			}
		}
	}
	return strings.Join(texts, " ")
}

func summarizeToolUse(name string, input map[string]interface{}) string {
	str := func(key string) string {
		if v, ok := input[key].(string); ok {
			return v
		}
		return "?"
	}
	switch name {
	case "Bash":
		cmd := str("command")
		if len(cmd) > 200 {
			cmd = cmd[:200]
		}
		return "[Ran: " + cmd + "]"
	case "Read":
		return "[Read: " + str("file_path") + "]"
	case "Write":
		return "[Wrote: " + str("file_path") + "]"
	case "Edit":
		return "[Edited: " + str("file_path") + "]"
	case "Glob":
		return "[Glob: " + str("pattern") + "]"
	case "Grep":
		return "[Grep: " + str("pattern") + "]"
	case "Task":
		return "[Delegated: " + str("description") + "]"
	case "WebFetch":
		return "[Fetched: " + str("url") + "]"
	case "WebSearch":
		return "[Searched: " + str("query") + "]"
	}
	return "[Tool: " + name + "]"
}

// Tail returns at most max bytes from the end of text, cut on a line
// boundary so the summarizer never sees half a message.
func Tail(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := text[len(text)-max:]
	if i := strings.IndexByte(cut, '\n'); i >= 0 && i+1 < len(cut) {
		cut = cut[i+1:]
	}
	return cut
}
