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
		Use:   "recall [topic]",
		Short: "Search observations by topic",
		Long: "Searches the project store for entries matching the topic. A match\n" +
			"anywhere in an entry's subtree recalls the whole entry. On a miss,\n" +
			"suggests related topics drawn from high-priority observations.",
		Args: cobra.MinimumNArgs(1),
		Run:  runRecall,
	}

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	topic := strings.Join(args, " ")

	eng, _, err := newEngine()
	if err != nil {
		exitErr("load config", err)
	}
	proj, err := currentProject(eng)
	if err != nil {
		exitErr("resolve project", err)
	}

	res, err := proj.Recall(cmd.Context(), topic)
	if errors.Is(err, engine.ErrEmptyCorpus) {
		fmt.Fprintln(cmd.OutOrStdout(), "No observations recorded for this project yet.")
		return
	}
	if err != nil {
		exitErr("recall", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
