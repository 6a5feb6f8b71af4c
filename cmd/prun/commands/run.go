package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	apprun "github.com/slok/prun/internal/app/run"
	"github.com/slok/prun/internal/model"
	"github.com/slok/prun/internal/progress"
	"github.com/slok/prun/internal/progress/terminal"
	"github.com/slok/prun/internal/storage"
	storageio "github.com/slok/prun/internal/storage/io"
	"github.com/slok/prun/internal/storage/sqlite"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file            string
	reporting       bool
	format          string
	failOnTaskError bool
	noHistory       bool
	noProgress      bool
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a task set concurrently.")
	c.Cmd.Flag("file", "Task set file (YAML or TOML), if missing the demo task set is used.").Short('f').StringVar(&c.file)
	c.Cmd.Flag("reporting", "Report every task completion as it happens.").BoolVar(&c.reporting)
	c.Cmd.Flag("format", "Summary output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Flag("fail-on-task-error", "Exit with error when any task fails.").BoolVar(&c.failOnTaskError)
	c.Cmd.Flag("no-history", "Don't save the run on the history.").BoolVar(&c.noHistory)
	c.Cmd.Flag("no-progress", "Don't render the task progress.").BoolVar(&c.noProgress)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	specs, err := c.loadTaskSet(ctx)
	if err != nil {
		return err
	}

	var repo storage.RunRepository
	if !c.noHistory {
		sqliteRepo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: c.rootCmd.DBPath,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create repository: %w", err)
		}
		defer sqliteRepo.Close()
		repo = sqliteRepo
	}

	var display progress.Display = progress.Noop
	if !c.noProgress {
		d, err := terminal.NewDisplay(terminal.DisplayConfig{
			Out:         c.rootCmd.Stderr,
			Interactive: c.rootCmd.Interactive,
			NoColor:     c.rootCmd.NoColor,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("could not create progress display: %w", err)
		}
		display = d
	}

	svc, err := apprun.NewService(apprun.ServiceConfig{
		Repository: repo,
		Display:    display,
		Logger:     logger,
	})
	if err != nil {
		_ = display.Close()
		return fmt.Errorf("could not create service: %w", err)
	}

	summary, runErr := svc.Run(ctx, apprun.Request{
		Tasks:     specs,
		Reporting: c.reporting,
	})

	// The progress must be done before printing the summary.
	if err := display.Close(); err != nil {
		logger.Warningf("Could not close progress display: %s", err)
	}

	if summary.ID != "" {
		if err := c.rootCmd.printer(c.format).PrintSummary(summary); err != nil {
			return fmt.Errorf("could not print summary: %w", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	if c.failOnTaskError && summary.HasFailures() {
		return fmt.Errorf("%d of %d tasks failed", summary.Count(model.TaskOutcomeFailed), len(summary.Results))
	}

	return nil
}

func (c RunCommand) loadTaskSet(ctx context.Context) ([]model.TaskSpec, error) {
	if c.file == "" {
		return storageio.DefaultTaskSet(), nil
	}

	path, err := filepath.Abs(c.file)
	if err != nil {
		return nil, fmt.Errorf("invalid task set path: %w", err)
	}

	repo := storageio.NewTaskSetRepository(os.DirFS(filepath.Dir(path)))
	specs, err := repo.GetTaskSet(ctx, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("could not load task set %s: %w", c.file, err)
	}

	return specs, nil
}
