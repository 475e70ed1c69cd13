// Command cleanup 删除存储中没有任何照片或缩略图记录引用的孤儿文件。
//
// 清理范围由 GALLERY_CONFIG 中的 cleanup_targets 决定，每个目录只能存放对应字段的文件。
// 运行期间不要上传照片，否则刚写入、尚未入库的文件会被当作孤儿删除。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"gallery/internal/app"
	"gallery/internal/cleanup"
	"gallery/internal/config"
	"gallery/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gallery-cleanup",
		Short: "Delete orphaned photo and thumbnail files",
		Long: `gallery-cleanup compares the files in each configured storage directory
with the file references held by the database and deletes every file that
no record points to. Do not upload photos while it runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newScheduleCmd())
	return root
}

type cleanupEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	repos   *app.Repositories
	store   cleanup.Store
	targets []cleanup.Target
}

func setup(ctx context.Context, stderr io.Writer) (*cleanupEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "memory" {
		return nil, errors.New("orphan cleanup needs the persistent database, set DB_DRIVER=postgres")
	}
	logger := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)

	repos, err := app.OpenRepositories(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		repos.Close()
		return nil, err
	}
	targets, err := app.CleanupTargets(cfg, repos)
	if err != nil {
		repos.Close()
		return nil, err
	}
	return &cleanupEnv{cfg: cfg, logger: logger, repos: repos, store: store, targets: targets}, nil
}

func newRunCmd() *cobra.Command {
	var (
		opts   cleanup.Options
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Delete orphaned files once and print a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.repos.Close()

			report, runErr := cleanup.NewReclaimer(rt.store, rt.logger, opts).Run(cmd.Context(), rt.targets...)
			if err := printReport(cmd.OutOrStdout(), report, asJSON); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every deleted path")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list orphans without deleting them")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the cleanup on CLEANUP_SCHEDULE until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.repos.Close()

			loc, err := time.LoadLocation(rt.cfg.CleanupTimezone)
			if err != nil {
				rt.logger.Error("invalid timezone, using UTC", "timezone", rt.cfg.CleanupTimezone, "error", err)
				loc = time.UTC
			}

			reclaimer := cleanup.NewReclaimer(rt.store, rt.logger, cleanup.Options{})
			c := cron.New(cron.WithLocation(loc))
			if _, err := c.AddFunc(rt.cfg.CleanupSchedule, func() {
				start := time.Now()
				report, err := reclaimer.Run(ctx, rt.targets...)
				if err != nil {
					rt.logger.Error("cleanup finished with errors", "deleted", report.Deleted, "failed", report.Failed, "error", err)
					return
				}
				rt.logger.Info("cleanup finished", "deleted", report.Deleted, "duration", time.Since(start))
			}); err != nil {
				return fmt.Errorf("schedule %q: %w", rt.cfg.CleanupSchedule, err)
			}

			c.Start()
			rt.logger.Info("cleanup scheduled", "schedule", rt.cfg.CleanupSchedule, "timezone", loc.String())
			<-ctx.Done()

			// 等待正在执行的任务结束
			<-c.Stop().Done()
			rt.logger.Info("cleanup scheduler stopped")
			return nil
		},
	}
}

func printReport(w io.Writer, report cleanup.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	for _, t := range report.Targets {
		if _, err := fmt.Fprintf(w, "%s: %d orphaned, %d deleted, %d failed\n", t.Name, len(t.Orphans), t.Deleted, t.Failed); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "total: %d deleted, %d failed\n", report.Deleted, report.Failed)
	return err
}
