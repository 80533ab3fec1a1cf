package cli

import (
	"context"
	"fmt"
	"strings"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/initialize"
	"tracker-guard/agent/internal/popup"

	"github.com/spf13/cobra"
)

func (o *RootOptions) popup() (*popup.Controller, error) {
	st, err := o.Storage()
	if err != nil {
		return nil, err
	}
	client, err := o.Client(command.ContextPopup)
	if err != nil {
		return nil, err
	}
	return initialize.NewPopup(o.cfg, st, client), nil
}

// NewPopupCommand opens the interactive popup for a tab url.
func NewPopupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "popup [tab-url]",
		Short:        "Open the interactive popup",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := opts.popup()
			if err != nil {
				return err
			}
			tab := ""
			if len(args) == 1 {
				tab = args[0]
			}
			return popup.Run(ctl, tab)
		},
	}
}

func NewCookiesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Manage cookies of a site",
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "clear <tab-url>",
		Short:        "Remove every cookie of the tab's domain",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := opts.popup()
			if err != nil {
				return err
			}
			msg := ctl.ClearCookies(context.Background(), args[0])
			return opts.Output(cmd).Print(map[string]string{"message": msg}, msg)
		},
	})
	return cmd
}

func NewEmailCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Manage monitored email addresses",
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "add <address>",
		Short:        "Monitor an address for breaches",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := opts.popup()
			if err != nil {
				return err
			}
			ctx := context.Background()
			if _, err := ctl.Load(ctx, ""); err != nil {
				return err
			}
			found, err := ctl.AddEmail(ctx, args[0])
			if err != nil {
				return err
			}
			text := "Monitoring " + strings.TrimSpace(args[0])
			for _, b := range found {
				text += fmt.Sprintf("\nBreach Found! %s was found in %s breach.", strings.TrimSpace(args[0]), b)
			}
			return opts.Output(cmd).Print(map[string]any{"email": strings.TrimSpace(args[0]), "breaches": found}, text)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:          "remove <address>",
		Short:        "Stop monitoring an address",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := opts.popup()
			if err != nil {
				return err
			}
			if err := ctl.RemoveEmail(context.Background(), args[0]); err != nil {
				return err
			}
			return opts.Output(cmd).Print(map[string]string{"removed": args[0]}, "Removed "+args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "List monitored addresses",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := opts.popup()
			if err != nil {
				return err
			}
			emails, err := ctl.Emails(context.Background())
			if err != nil {
				return err
			}
			text := "No emails being monitored"
			if len(emails) > 0 {
				text = strings.Join(emails, "\n")
			}
			return opts.Output(cmd).Print(emails, text)
		},
	})
	return cmd
}

func NewSubscribeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "subscribe",
		Short:        "Activate the Pro subscription",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := opts.popup()
			if err != nil {
				return err
			}
			if err := ctl.Subscribe(context.Background()); err != nil {
				return err
			}
			return opts.Output(cmd).Print(map[string]bool{"premium": true}, "Upgrade successful! You now have access to all premium features.")
		},
	}
}
