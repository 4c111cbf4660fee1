// Package cursor persists the per-project transcript position so
// extraction runs incrementally and at most once per transcript offset.
package cursor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rcliao/observational-memory/internal/fsutil"
)

// StateFile is the cursor file name inside a project memory directory.
const StateFile = ".observer-state.json"

// Cursor records how much of the transcript has been ingested, plus task
// continuity carried between sessions.
type Cursor struct {
	Offset         int    `json:"offset"`
	Checksum       string `json:"checksum,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	LastRunID      string `json:"last_run_id,omitempty"`
	LastObservedAt string `json:"last_observed_at,omitempty"`

	CurrentTask       string `json:"current_task,omitempty"`
	SuggestedResponse string `json:"suggested_response,omitempty"`
}

// Load reads the cursor for a memory directory. A missing or unreadable
// state file yields the zero cursor: extraction starts from the top.
func Load(dir string) *Cursor {
	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	if err != nil {
		return &Cursor{}
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return &Cursor{}
	}
	return &c
}

// Save writes the cursor atomically so a crash mid-write leaves the
// previous valid cursor intact.
func Save(dir string, c *Cursor) error {
	c.LastObservedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, StateFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Checksum hashes the transcript prefix up to offset. Offsets beyond the
// transcript are clamped.
func Checksum(transcript []byte, offset int) string {
	if offset > len(transcript) {
		offset = len(transcript)
	}
	if offset < 0 {
		offset = 0
	}
	sum := sha256.Sum256(transcript[:offset])
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the transcript still agrees with the cursor: the
// prefix up to Offset must exist and match the stored checksum. A cursor
// without a checksum (older state files) passes as long as the offset is
// still in range.
func (c *Cursor) Verify(transcript []byte) bool {
	if c.Offset == 0 {
		return true
	}
	if c.Offset > len(transcript) {
		return false
	}
	if c.Checksum == "" {
		return true
	}
	return Checksum(transcript, c.Offset) == c.Checksum
}
