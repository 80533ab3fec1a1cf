package cli

import (
	"context"
	"fmt"
	"time"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/observer"

	"github.com/spf13/cobra"
)

const requestTimeout = 15 * time.Second

func send[T any](opts *RootOptions, c command.Context, action string, data any, tabURL string) (T, error) {
	var zero T
	client, err := opts.Client(c)
	if err != nil {
		return zero, err
	}
	env, err := command.NewEnvelope(action, data)
	if err != nil {
		return zero, err
	}
	if tabURL != "" {
		env.URL = tabURL
		env.Tab = &command.Tab{URL: tabURL}
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := client.Send(ctx, env)
	if err != nil {
		return zero, err
	}
	return command.Decode[T](resp)
}

func onOff(enabled bool) string {
	if enabled {
		return "Protected"
	}
	return "Unprotected"
}

func NewToggleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "toggle",
		Short:        "Flip protection on or off",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := send[command.BlockingStatus](opts, command.ContextPopup, command.ActionToggleBlocking, nil, "")
			if err != nil {
				return err
			}
			return opts.Output(cmd).Print(st, onOff(st.BlockingEnabled))
		},
	}
}

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "status",
		Short:        "Show whether protection is on",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := send[command.BlockingStatus](opts, command.ContextPopup, command.ActionGetBlockingStatus, nil, "")
			if err != nil {
				return err
			}
			return opts.Output(cmd).Print(st, onOff(st.BlockingEnabled))
		},
	}
}

func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "stats",
		Short:        "Show blocked tracker counters",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := send[command.Stats](opts, command.ContextPopup, command.ActionGetStats, nil, "")
			if err != nil {
				return err
			}
			return opts.Output(cmd).Print(st, fmt.Sprintf("Blocked today: %d\nBlocked total: %d", st.DailyBlocked, st.TotalBlocked))
		},
	}
}

func NewPageDataCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "page-data <url>",
		Short:        "Ask the agent for a fresh analysis of a page",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := send[observer.Report](opts, command.ContextPopup, command.ActionGetPageData, nil, args[0])
			if err != nil {
				return err
			}
			return opts.Output(cmd).Print(rep, reportText(rep))
		},
	}
}

func reportText(rep observer.Report) string {
	return fmt.Sprintf("%s: %d trackers in %d scripts %v", rep.URL, rep.BlockedCount, rep.TotalScripts, rep.Trackers)
}
