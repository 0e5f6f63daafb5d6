package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/okian/healthreview/internal/adapters/http/client"
	"github.com/okian/healthreview/internal/config"
	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/presenter"
	"github.com/okian/healthreview/internal/presenter/tui"
	"github.com/okian/healthreview/pkg/logger"
)

var (
	presentWeek    string
	presentServer  string
	presentFixture string
	presentDemo    bool
)

var presentCmd = &cobra.Command{
	Use:   "present",
	Short: "Run presenter mode in the terminal",
	Long: `Walks the week's clients manager by manager, interjecting a summary
slide after each manager's last client.

Data comes from a running server when --server or server_url is set,
otherwise from an in-process service over the configured store.

Keys: →/space next, ← previous, 1-9 jump, ↑/↓ select metric,
g/a/r score, c copy last week, [ ] change week, esc exit.`,
	Args: cobra.NoArgs,
	RunE: runPresent,
}

var errRemoteSeed = errors.New("--seed and --demo apply to the in-process store only")

func init() {
	presentCmd.Flags().StringVarP(&presentWeek, "week", "W", "", "week to present, any date in it (default: this week)")
	presentCmd.Flags().StringVar(&presentServer, "server", "", "API base URL, e.g. http://localhost:9080")
	presentCmd.Flags().StringVar(&presentFixture, "seed", "", "YAML fixture to load into the in-process store")
	presentCmd.Flags().BoolVar(&presentDemo, "demo", false, "load the built-in demo fixture into the in-process store")
}

func runPresent(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if presentServer != "" {
		cfg.ServerURL = presentServer
	}
	week, err := parseWeek(presentWeek, time.Now())
	if err != nil {
		return err
	}

	closeLog, err := initFileLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.Named("present")

	src, release, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	notifier := &tui.Notifier{}
	session, err := presenter.Load(ctx, src, week,
		presenter.WithCopiedFlagTTL(cfg.CopiedFlagTTL()),
		presenter.WithOnChange(notifier.Notify),
		presenter.WithOnClose(func() { log.Info(ctx, "presenter exited") }),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	program := tea.NewProgram(tui.New(ctx, session),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	notifier.Attach(program)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("presenter: %w", err)
	}
	return nil
}

// openSource picks the REST client or an in-process service.
func openSource(ctx context.Context, cfg *config.Config) (presenter.Source, func(), error) {
	if cfg.ServerURL != "" {
		if presentFixture != "" || presentDemo {
			return nil, nil, errRemoteSeed
		}
		return client.New(cfg.ServerURL, client.WithTimeout(cfg.ScoreWriteTimeout())), func() {}, nil
	}

	store, err := openStore(ctx, cfg, presentFixture, presentDemo)
	if err != nil {
		return nil, nil, err
	}
	svc := newService(cfg, store)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return svc, func() {
		svc.Stop(context.Background())
		_ = store.Close()
	}, nil
}

// initFileLogging sends logs to cfg.LogFile so they do not tear the UI.
func initFileLogging(cfg *config.Config) (func(), error) {
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(f)); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	return func() { _ = f.Close() }, nil
}

func parseWeek(s string, now time.Time) (model.Week, error) {
	if s == "" {
		return model.WeekOf(now), nil
	}
	return model.ParseWeek(s)
}
