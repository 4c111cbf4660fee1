package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show observation store statistics",
		Args:  cobra.NoArgs,
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	eng, _, err := newEngine()
	if err != nil {
		exitErr("load config", err)
	}
	proj, err := currentProject(eng)
	if err != nil {
		exitErr("resolve project", err)
	}

	corpus, err := proj.ListAll(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	b, _ := json.MarshalIndent(corpus.Stats, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
