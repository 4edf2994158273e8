package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"announcer/internal/config"
)

// cli carries state shared by all subcommands.
type cli struct {
	configPath string
	dryRun     bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "announcer",
		Short: "Mirror feed announcements into a Slack channel",
		Long: `announcer reads the announcement feed, posts new entries to Slack and
edits messages whose announcement changed since it was last posted.

Example usage:
  announcer serve                 # HTTP trigger plus optional schedule
  announcer reconcile             # single pass, prints a summary
  announcer reconcile --dry-run   # log intended actions only`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&c.dryRun, "dry-run", false, "log intended Slack and state changes without making them")

	root.AddCommand(newServeCmd(c), newReconcileCmd(c))

	return root
}

func (c *cli) init() error {
	cfg, err := config.Load(c.configPath, c.dryRun)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = setupLogger(cfg.LogLevel)
	return nil
}
