// Package cli implements the guardctl command tree.
package cli

import (
	"fmt"
	"slices"

	"tracker-guard/agent/internal/bus"
	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/config"
	"tracker-guard/agent/internal/initialize"
	"tracker-guard/agent/internal/logger"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	BusURL     string
	Format     string // "json" | "text"
	Verbose    bool

	cfg     config.AppConfig
	storage *initialize.Storage
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for guardctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "guardctl",
		Short: "Control the tracker-guard agent",
		Long:  "guardctl opens the popup, observes pages and queries the running tracker-guard agent.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.cfg = config.Init(opts.ConfigPath)
			if opts.BusURL != "" {
				opts.cfg.BusURL = opts.BusURL
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			logger.SetLevel(level)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.storage != nil {
				return opts.storage.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.BusURL, "url", "", "agent bus url (overrides agent.bus.url)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewPopupCommand(opts))
	cmd.AddCommand(NewObserveCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewPageDataCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewCookiesCommand(opts))
	cmd.AddCommand(NewEmailCommand(opts))
	cmd.AddCommand(NewSubscribeCommand(opts))

	return cmd
}

// Storage opens the agent's store once per invocation.
func (o *RootOptions) Storage() (*initialize.Storage, error) {
	if o.storage != nil {
		return o.storage, nil
	}
	st, err := initialize.OpenStorage(o.cfg)
	if err != nil {
		return nil, err
	}
	o.storage = st
	return st, nil
}

// Client returns a bus client acting as the given context.
func (o *RootOptions) Client(c command.Context) (*bus.Client, error) {
	return bus.Dial(o.cfg.BusURL, initialize.NewSigner(o.cfg), c)
}

func (o *RootOptions) Output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
