package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/observational-memory/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "forget [pattern]",
		Short: "Remove observations matching a pattern",
		Long: "Lists entries matching the pattern with their ids. Nothing is removed\n" +
			"until you re-run with --commit and --ids naming exactly which entries\n" +
			"to drop; removing a parent removes its children too.",
		Args: cobra.MinimumNArgs(1),
		Run:  runForget,
	}

	cmd.Flags().Bool("commit", false, "Remove the entries named by --ids")
	cmd.Flags().StringSlice("ids", nil, "Entry ids to remove (from the preview output)")

	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
	commit, _ := cmd.Flags().GetBool("commit")
	ids, _ := cmd.Flags().GetStringSlice("ids")
	pattern := strings.Join(args, " ")

	eng, _, err := newEngine()
	if err != nil {
		exitErr("load config", err)
	}
	proj, err := currentProject(eng)
	if err != nil {
		exitErr("resolve project", err)
	}

	if commit {
		res, err := proj.CommitForget(cmd.Context(), ids)
		if errors.Is(err, engine.ErrNoSelection) {
			exitErr("forget", fmt.Errorf("%w (pass --ids from the preview)", err))
		}
		if err != nil {
			exitErr("forget", err)
		}
		b, _ := json.MarshalIndent(res, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return
	}

	cands, err := proj.Forget(cmd.Context(), pattern)
	if errors.Is(err, engine.ErrEmptyCorpus) {
		fmt.Fprintln(cmd.OutOrStdout(), "No observations recorded for this project yet.")
		return
	}
	if err != nil {
		exitErr("forget", err)
	}
	if len(cands) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no entries match %q\n", pattern)
		return
	}

	b, _ := json.MarshalIndent(cands, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	fmt.Fprintln(cmd.OutOrStdout(), "preview only; re-run with --commit --ids <id,...> to remove")
}
