package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// sessionStartInput is the SessionStart hook payload on stdin.
type sessionStartInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Source         string `json:"source"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Render stored observations for session start",
		Long: "Prints the project's observations wrapped with usage guidance, capped\n" +
			"to the configured size. With --hook, reads the SessionStart hook\n" +
			"payload from stdin and emits additionalContext JSON.",
		Args: cobra.NoArgs,
		Run:  runLoad,
	}

	cmd.Flags().Bool("hook", false, "Run as a SessionStart hook: read payload from stdin, emit hook JSON")

	RootCmd.AddCommand(cmd)
}

func runLoad(cmd *cobra.Command, args []string) {
	hook, _ := cmd.Flags().GetBool("hook")

	eng, _, err := newEngine()
	if err != nil {
		if hook {
			return
		}
		exitErr("load config", err)
	}

	if hook {
		var in sessionStartInput
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil || json.Unmarshal(data, &in) != nil || in.TranscriptPath == "" {
			return
		}
		proj := eng.ProjectFromTranscript(in.TranscriptPath)
		res, err := proj.Inject(cmd.Context())
		if err != nil {
			logHookError(proj.Dir(), err)
			return
		}
		if res.Empty {
			return
		}
		out := map[string]any{
			"hookSpecificOutput": map[string]any{
				"hookEventName":     "SessionStart",
				"additionalContext": res.Context,
			},
		}
		b, _ := json.Marshal(out)
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return
	}

	proj, err := currentProject(eng)
	if err != nil {
		exitErr("resolve project", err)
	}
	res, err := proj.Inject(cmd.Context())
	if err != nil {
		exitErr("load", err)
	}
	if res.Empty {
		fmt.Fprintln(cmd.OutOrStdout(), "No observations recorded for this project yet.")
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Context)
}
