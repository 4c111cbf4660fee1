package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/observational-memory/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Condense old observations",
		Long: "Partitions the store by age and asks the summarizer to condense the\n" +
			"older bands. Without --commit this is a dry run: it prints the plan\n" +
			"and touches nothing.",
		Args: cobra.NoArgs,
		Run:  runReflect,
	}

	cmd.Flags().Bool("commit", false, "Apply the compaction instead of previewing it")
	cmd.Flags().Bool("force", false, "Reflect even below the size floor")

	RootCmd.AddCommand(cmd)
}

func runReflect(cmd *cobra.Command, args []string) {
	commit, _ := cmd.Flags().GetBool("commit")
	force, _ := cmd.Flags().GetBool("force")

	eng, _, err := newEngine()
	if err != nil {
		exitErr("load config", err)
	}
	proj, err := currentProject(eng)
	if err != nil {
		exitErr("resolve project", err)
	}

	plan, err := proj.Reflect(cmd.Context(), force)
	if errors.Is(err, engine.ErrNotNeeded) {
		fmt.Fprintf(cmd.OutOrStdout(), "nothing to do: %v\n", err)
		return
	}
	if err != nil {
		exitErr("reflect", err)
	}

	if commit {
		if err := proj.CommitReflect(cmd.Context(), plan); err != nil {
			exitErr("commit reflect", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reflected: %d -> %d chars (%d groups condensed, %d kept recent)\n",
			plan.BeforeBytes, plan.AfterBytes, plan.CompactedGroups, plan.RecentGroups)
		return
	}

	b, _ := json.MarshalIndent(plan, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	fmt.Fprintln(cmd.OutOrStdout(), "dry run; re-run with --commit to apply")
}
