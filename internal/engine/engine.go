// Package engine implements the observation store lifecycle: observe
// (incremental ingest), load (context injection), reflect (compaction),
// recall (retrieval), and forget (retraction). All text judgment is
// delegated to a summarizer; everything here is deterministic and
// crash-safe through atomic file replacement.
package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/rcliao/observational-memory/internal/config"
	"github.com/rcliao/observational-memory/internal/fsutil"
	"github.com/rcliao/observational-memory/internal/summarizer"
)

// File names inside a project memory directory.
const (
	ObservationsFile = "observations.md"
	ArchiveFile      = "reflections.log"
	AuditFile        = "om-audit.log"
)

// Sentinel errors surfaced to the boundary layer.
var (
	ErrNotNeeded    = errors.New("reflection not needed")
	ErrEmptyCorpus  = errors.New("no observations recorded")
	ErrStoreChanged = errors.New("store changed since preview")
	ErrNoSelection  = errors.New("no entries selected")
)

// Engine serves lifecycle operations for any number of projects from one
// process. Operations on the same project are serialized; distinct
// projects are independent.
type Engine struct {
	cfg *config.Config
	sum summarizer.Summarizer
	log *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	nowFn func() time.Time
}

// New creates an engine.
func New(cfg *config.Config, sum summarizer.Summarizer, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Engine{
		cfg:   cfg,
		sum:   sum,
		log:   logger,
		locks: map[string]*sync.Mutex{},
		nowFn: time.Now,
	}
}

// Project returns a handle for the project rooted at the given working
// directory (or an already-derived project key).
func (e *Engine) Project(id string) *Project {
	return &Project{eng: e, dir: filepath.Join(e.cfg.Root, ProjectKey(id), "memory")}
}

// ProjectFromTranscript derives the project handle from a transcript
// path, the way the session hooks receive it.
func (e *Engine) ProjectFromTranscript(path string) *Project {
	return &Project{eng: e, dir: MemoryDirFromTranscript(path)}
}

// ProjectAt returns a handle for an explicit memory directory.
func (e *Engine) ProjectAt(dir string) *Project {
	return &Project{eng: e, dir: dir}
}

// ProjectKey turns a working directory into the flat per-project
// directory name used under the memory root.
func ProjectKey(workdir string) string {
	if abs, err := filepath.Abs(workdir); err == nil {
		workdir = abs
	}
	return strings.ReplaceAll(filepath.Clean(workdir), string(filepath.Separator), "-")
}

var projectDirRe = regexp.MustCompile(`(.*?/\.claude/projects/[^/]+)`)

// MemoryDirFromTranscript locates the project memory directory for a
// transcript path. Transcripts outside the standard projects tree fall
// back to a memory directory beside the transcript.
func MemoryDirFromTranscript(path string) string {
	if m := projectDirRe.FindStringSubmatch(path); m != nil {
		return filepath.Join(m[1], "memory")
	}
	return filepath.Join(filepath.Dir(path), "memory")
}

// Project is a handle on one project's memory files.
type Project struct {
	eng *Engine
	dir string
}

// Dir returns the project memory directory.
func (p *Project) Dir() string { return p.dir }

// ObservationsPath returns the store file path.
func (p *Project) ObservationsPath() string { return filepath.Join(p.dir, ObservationsFile) }

// ArchivePath returns the archive log path.
func (p *Project) ArchivePath() string { return filepath.Join(p.dir, ArchiveFile) }

// lock serializes lifecycle operations per project. The returned func
// releases it.
func (p *Project) lock() func() {
	p.eng.mu.Lock()
	m, ok := p.eng.locks[p.dir]
	if !ok {
		m = &sync.Mutex{}
		p.eng.locks[p.dir] = m
	}
	p.eng.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (p *Project) loadStoreText() (string, error) {
	data, err := os.ReadFile(p.ObservationsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read store: %w", err)
	}
	return string(data), nil
}

func (p *Project) writeStoreText(text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := fsutil.WriteFileAtomic(p.ObservationsPath(), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// archive appends a pre-image snapshot block to reflections.log before a
// destructive store replacement. The log is write-only: nothing in the
// engine ever reads it back.
func (p *Project) archive(label, runID, snapshot string, afterBytes int) error {
	sep := strings.Repeat("=", 60)
	ts := p.eng.nowFn().UTC().Format(time.RFC3339)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", sep)
	fmt.Fprintf(&b, "%s at %s (run %s)\n", label, ts, runID)
	fmt.Fprintf(&b, "Before: %d chars -> After: %d chars\n", len(snapshot), afterBytes)
	fmt.Fprintf(&b, "%s\n", sep)
	b.WriteString(snapshot)
	fmt.Fprintf(&b, "\n%s\n\n", sep)
	if err := fsutil.AppendFileAtomic(p.ArchivePath(), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("archive snapshot: %w", err)
	}
	return nil
}

// audit appends one trace line per completed run.
func (p *Project) audit(runID, line string) {
	ts := p.eng.nowFn().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("[%s] run=%s %s\n", ts, runID, line)
	if err := fsutil.AppendFileAtomic(filepath.Join(p.dir, AuditFile), []byte(entry), 0o644); err != nil {
		p.eng.log.Warn("audit trace failed", "err", err)
	}
}

func newRunID() string {
	return ulid.Make().String()
}

func (e *Engine) today() string {
	return e.nowFn().UTC().Format("2006-01-02")
}
