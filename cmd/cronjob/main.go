package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"library-lending/internal/config"
	"library-lending/internal/jobs"
	"library-lending/internal/logger"
	"library-lending/internal/notification"
	"library-lending/internal/repository/postgres"
	"library-lending/internal/scheduler"
)

var configPath string

// runners maps CLI job names to job runner methods
var runners = map[string]func(*jobs.JobRunner){
	"mark-overdue-items":         (*jobs.JobRunner).MarkOverdueItems,
	"send-overdue-notifications": (*jobs.JobRunner).SendOverdueNotifications,
	"rollback-stale-settlements": (*jobs.JobRunner).RollbackStaleSettlements,
	"all":                        (*jobs.JobRunner).RunAll,
}

func main() {
	root := &cobra.Command{
		Use:          "cronjob",
		Short:        "Library lending reconciliation jobs",
		SilenceUsage: true,
		RunE:         runScheduler,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.dev.yaml", "Path to configuration file")

	root.AddCommand(&cobra.Command{
		Use:       "run <job>",
		Short:     "Run a single job once and exit",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: jobNames(),
		RunE:      runOnce,
	})
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the jobs that can be run",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range jobNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func jobNames() []string {
	names := make([]string, 0, len(runners))
	for name := range runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// runtime holds the resources shared by both modes
type runtime struct {
	db         *sql.DB
	dispatcher *notification.Dispatcher
	runner     *jobs.JobRunner
}

func (rt *runtime) Close() {
	rt.dispatcher.Close()
	rt.db.Close()
}

func setup(ctx context.Context) (*runtime, error) {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting cronjob runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := postgres.NewStore(db)
	if err := store.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	dispatcher := notification.NewDispatcherFromConfig(cfg)
	// Workers outlive ctx so Close can drain notifications queued by a finished job.
	dispatcher.Start(context.WithoutCancel(ctx))

	return &runtime{
		db:         db,
		dispatcher: dispatcher,
		runner:     jobs.NewJobRunner(store, dispatcher, cfg, nil),
	}, nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("Running job once", "job", args[0])
	runners[args[0]](rt.runner)
	logger.Info("Job execution completed", "job", args[0])
	return nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	cronScheduler, err := scheduler.NewScheduler(rt.runner)
	if err != nil {
		return err
	}
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	<-cmd.Context().Done()

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
	return nil
}
