package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/observational-memory/internal/engine"
	"github.com/rcliao/observational-memory/internal/fsutil"
	"github.com/rcliao/observational-memory/internal/summarizer"
	"github.com/rcliao/observational-memory/internal/transcript"
)

// hookInput is the Stop hook payload on stdin.
type hookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	StopHookActive bool   `json:"stop_hook_active"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "observe [transcript]",
		Short: "Extract observations from a session transcript",
		Long: "Reads the transcript past the saved cursor, asks the summarizer for\n" +
			"durable observations, and appends them to the project store. With\n" +
			"--hook, reads the Stop hook payload from stdin and never fails the\n" +
			"session: errors go to om-error.log and the exit code stays zero.",
		Args: cobra.MaximumNArgs(1),
		Run:  runObserve,
	}

	cmd.Flags().Bool("hook", false, "Run as a Stop hook: read payload from stdin, exit 0 on errors")
	cmd.Flags().Bool("no-reflect", false, "Skip automatic reflection after ingest")

	RootCmd.AddCommand(cmd)
}

func runObserve(cmd *cobra.Command, args []string) {
	hook, _ := cmd.Flags().GetBool("hook")
	noReflect, _ := cmd.Flags().GetBool("no-reflect")

	if hook {
		runObserveHook(cmd, noReflect)
		return
	}

	eng, cfg, err := newEngine()
	if err != nil {
		exitErr("load config", err)
	}
	proj, err := currentProject(eng)
	if err != nil {
		exitErr("resolve project", err)
	}

	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		path, err = newestTranscript(proj.Dir())
		if err != nil {
			exitErr("locate transcript", err)
		}
	}

	res, err := observeTranscript(cmd, proj, path, cfg.Reflect.ThresholdChars, noReflect)
	if err != nil {
		exitErr("observe", err)
	}
	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}

// runObserveHook is the Stop hook entry point. It must never break the
// session: every failure is swallowed into om-error.log and the process
// exits zero.
func runObserveHook(cmd *cobra.Command, noReflect bool) {
	// Recursion guards: the summarizer may itself be a claude invocation,
	// whose session end would fire this hook again.
	if os.Getenv(summarizer.HookGuardEnv) != "" {
		return
	}

	var in hookInput
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil || json.Unmarshal(data, &in) != nil {
		return
	}
	if in.StopHookActive || in.TranscriptPath == "" {
		return
	}

	eng, cfg, err := newEngine()
	if err != nil {
		return
	}
	proj := eng.ProjectFromTranscript(in.TranscriptPath)

	res, err := observeTranscript(cmd, proj, in.TranscriptPath, cfg.Reflect.ThresholdChars, noReflect)
	if err != nil {
		logHookError(proj.Dir(), err)
		return
	}
	if res.EntriesAdded > 0 {
		out := map[string]string{
			"systemMessage": fmt.Sprintf("om: recorded %d observation(s)", res.EntriesAdded),
		}
		b, _ := json.Marshal(out)
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	}
}

// observeTranscript runs one ingest pass and, when the store has grown
// past the threshold, a reflection right after.
func observeTranscript(cmd *cobra.Command, proj *engine.Project, path string, threshold int, noReflect bool) (*engine.ObserveResult, error) {
	messages, err := transcript.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := proj.Observe(cmd.Context(), transcript.Format(messages), path)
	if err != nil {
		return nil, err
	}

	if !noReflect && res.StoreBytes >= threshold {
		plan, err := proj.Reflect(cmd.Context(), false)
		if errors.Is(err, engine.ErrNotNeeded) {
			return res, nil
		}
		if err != nil {
			return nil, fmt.Errorf("auto-reflect: %w", err)
		}
		if err := proj.CommitReflect(cmd.Context(), plan); err != nil {
			return nil, fmt.Errorf("auto-reflect commit: %w", err)
		}
	}
	return res, nil
}

// newestTranscript finds the most recently modified .jsonl beside the
// memory directory, the layout session transcripts live in.
func newestTranscript(memoryDir string) (string, error) {
	parent := filepath.Dir(memoryDir)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", parent, err)
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(parent, e.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no transcript found in %s", parent)
	}
	return newest, nil
}

func logHookError(memoryDir string, err error) {
	line := fmt.Sprintf("[%s] %v\n", time.Now().UTC().Format(time.RFC3339), err)
	_ = fsutil.AppendFileAtomic(filepath.Join(memoryDir, "om-error.log"), []byte(line), 0o644)
}
