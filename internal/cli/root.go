// Package cli implements the om CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rcliao/observational-memory/internal/config"
	"github.com/rcliao/observational-memory/internal/engine"
	"github.com/rcliao/observational-memory/internal/summarizer"
)

var (
	configPath  string
	rootFlag    string
	projectFlag string
	debugFlag   bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "om",
	Short: "Observational memory for coding agents",
	Long: "om watches session transcripts, extracts durable observations into a\n" +
		"per-project markdown store, and injects them back at session start.\n" +
		"Text in, text out; every store mutation is an atomic file replacement.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.config/om/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Memory root directory (default: ~/.claude/projects)")
	RootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "Project working directory (default: current directory)")
	RootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Verbose logging")
}

func newLogger() *log.Logger {
	logger := log.New(os.Stderr)
	if debugFlag {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if rootFlag != "" {
		cfg.Root = rootFlag
	}
	return cfg, nil
}

func newEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	sum, err := summarizer.New(cfg.Summarizer)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(cfg, sum, newLogger()), cfg, nil
}

// currentProject resolves the project handle from --project or the
// working directory.
func currentProject(eng *engine.Engine) (*engine.Project, error) {
	dir := projectFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}
	return eng.Project(dir), nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
