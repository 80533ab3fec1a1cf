package cli

import (
	"context"
	"fmt"
	"strings"

	"tracker-guard/agent/internal/firewall"

	"github.com/spf13/cobra"
)

func NewRulesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the installed blocking rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "List installed rules",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := installedRules(opts)
			if err != nil {
				return err
			}
			var b strings.Builder
			if len(rules) == 0 {
				b.WriteString("No rules installed")
			}
			for i, r := range rules {
				if i > 0 {
					b.WriteByte('\n')
				}
				fmt.Fprintf(&b, "%d  prio=%d  %s  %s  [%s]", r.ID, r.Priority, r.Action, r.URLFilter, strings.Join(r.ResourceTypes, ","))
			}
			return opts.Output(cmd).Print(rules, b.String())
		},
	})

	var resourceType string
	test := &cobra.Command{
		Use:          "test <url>",
		Short:        "Check whether the installed rules block a request",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := installedRules(opts)
			if err != nil {
				return err
			}
			rule, blocked := firewall.Blocking(rules, args[0], resourceType)
			text := "allowed"
			if blocked {
				text = fmt.Sprintf("blocked by rule %d (%s)", rule.ID, rule.URLFilter)
			}
			return opts.Output(cmd).Print(map[string]any{"url": args[0], "blocked": blocked, "rule": rule.ID}, text)
		},
	}
	test.Flags().StringVar(&resourceType, "type", firewall.ResourceScript, "resource type of the request")
	cmd.AddCommand(test)

	return cmd
}

func installedRules(opts *RootOptions) ([]firewall.Rule, error) {
	st, err := opts.Storage()
	if err != nil {
		return nil, err
	}
	return firewall.NewManager(firewall.NewDBHost(st.DB)).Installed(context.Background())
}
