package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/notify"
	"tracker-guard/agent/internal/observer"
	"tracker-guard/agent/internal/state"

	"github.com/spf13/cobra"
)

// ObserveOptions holds flags for the observe command.
type ObserveOptions struct {
	*RootOptions
	Watch []string
}

// NewObserveCommand creates the observe command, which plays the page
// context for a url, a saved file or a watched directory.
func NewObserveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObserveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "observe [url|file]",
		Short: "Analyze a page and report it to the agent",
		Long: `Analyze a page for tracker scripts and report the result to the agent.

Examples:
  guardctl observe https://example.com/
  guardctl observe ./saved/page.html
  guardctl observe --watch ./saved`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.Watch) == 0 && len(args) == 0 {
				return fmt.Errorf("give a page url or file, or --watch a directory")
			}
			return runObserve(cmd, opts, args)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Watch, "watch", nil, "directories of saved pages to watch")
	return cmd
}

func runObserve(cmd *cobra.Command, opts *ObserveOptions, args []string) error {
	st, err := opts.Storage()
	if err != nil {
		return err
	}
	client, err := opts.Client(command.ContextPage)
	if err != nil {
		return err
	}
	board := notify.NewBoard()
	obs := observer.New(state.ForObserver(st.Store), client, board, opts.cfg.Trackers)
	defer obs.Wait()
	out := opts.Output(cmd)

	if len(opts.Watch) > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return obs.Watch(ctx, opts.Watch, func(path string, rep observer.Report, ok bool) {
			if !ok {
				_ = out.Print(map[string]any{"path": path, "skipped": true}, path+": protection disabled, skipped")
				return
			}
			_ = out.Print(rep, reportText(rep))
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	pageURL := args[0]
	if !strings.Contains(pageURL, "://") {
		pageURL = "file://" + absPath(pageURL)
	}
	body, err := observer.NewHTTPFetcher().Fetch(ctx, pageURL)
	if err != nil {
		return err
	}
	defer body.Close()
	rep, ok, err := obs.Observe(ctx, pageURL, body)
	if err != nil {
		return err
	}
	if !ok {
		return out.Print(map[string]any{"skipped": true}, "Protection disabled, page not analyzed")
	}
	text := reportText(rep)
	if lines := board.Lines(); len(lines) > 0 {
		text += "\n" + strings.Join(lines, "\n")
	}
	return out.Print(rep, text)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, p)
	}
	return p
}
