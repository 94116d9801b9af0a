package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"usher-schedule/config"
	"usher-schedule/service"
	"usher-schedule/store"
	"usher-schedule/tui"
)

const appName = "usher-schedule"

var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	apiURL  string
	mock    bool
	timeout time.Duration
}

// app bundles the collaborators every command shares. It is built once per
// command run and closed when the command returns.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.ShowtimeStore
	fetcher service.Fetcher
	closeFn func() error
}

func (a *app) Close() error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Usher schedule for today's showtimes",
		Long:          `Browse today's showtimes, sort them, hide finished screenings and cross off the ones you have checked.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			model := tui.New(tui.Deps{
				Store:   a.store,
				Fetcher: a.fetcher,
				Logger:  a.logger,
				Theater: a.cfg.Theater,
			})
			if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
				return err
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "schedule API base URL (overrides USHER_API_URL)")
	root.PersistentFlags().BoolVar(&opts.mock, "mock", false, "serve the built-in demo schedule")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "fetch timeout (overrides USHER_TIMEOUT)")

	root.AddCommand(newListCmd(opts), newVersionCmd())
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.apiURL != "" {
		cfg.APIURL = opts.apiURL
	}
	if opts.mock {
		cfg.Mock = true
	}
	if opts.timeout > 0 {
		cfg.Timeout = opts.timeout
	}

	logger, closeFn, err := newLogger(cfg.LogFile)
	if err != nil {
		return nil, err
	}

	fetcher, err := service.NewFetcher(cfg, logger)
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store.New(store.WithLogger(logger)),
		fetcher: fetcher,
		closeFn: closeFn,
	}, nil
}

// newLogger writes to path when set. The TUI owns the terminal, so without a
// log file everything is discarded.
func newLogger(path string) (*slog.Logger, func() error, error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, f.Close, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + appName,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s", appName, version)
			if commit != "none" && commit != "" {
				fmt.Fprintf(out, " (%s)", commit)
			}
			fmt.Fprintln(out)
		},
	}
}
