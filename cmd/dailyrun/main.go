package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/dailyrun/internal/config"
	"github.com/michaelbrown/dailyrun/internal/errors"
	"github.com/michaelbrown/dailyrun/internal/launcher"
	"github.com/michaelbrown/dailyrun/internal/logging"
	"github.com/michaelbrown/dailyrun/internal/sandbox"
	"github.com/michaelbrown/dailyrun/internal/server"
	"github.com/michaelbrown/dailyrun/internal/storage"
	"github.com/michaelbrown/dailyrun/internal/storage/sqlite"
	"github.com/michaelbrown/dailyrun/internal/trigger"
)

const usageHint = "Use --sandbox to launch now, or --schedule to launch every day at the configured time."

var (
	configFlag   string
	sandboxFlag  bool
	scheduleFlag bool
	verboseFlag  bool
	jsonFlag     bool
)

// Swapped out in tests.
var (
	newPlatform = func(cfg *config.Config) (sandbox.Platform, error) {
		switch cfg.Sandbox.Backend {
		case "docker":
			return sandbox.NewDockerPlatform(cfg.Sandbox.DockerBinary), nil
		default:
			return nil, errors.Config(fmt.Sprintf("unknown sandbox backend %q", cfg.Sandbox.Backend), nil)
		}
	}
	openStore = func(cfg *config.Config) (storage.Store, error) {
		return sqlite.Open(cfg.Storage.DBPath)
	}
	runTrigger = func(ctx context.Context, t *trigger.Trigger) error {
		return t.Run(ctx)
	}
)

var rootCmd = &cobra.Command{
	Use:   "dailyrun",
	Short: "Launch the analytics service in a sandbox, now or every day",
	Long: `dailyrun starts the bundled analytics service (python3 app.py) in a fresh
sandbox that is reclaimed after its timeout (24h by default).

With --schedule it stays in the foreground and launches a new sandbox every
day at 06:00 Asia/Shanghai until interrupted.

Examples:
  dailyrun --sandbox
  dailyrun --schedule
  dailyrun --schedule --config ./dailyrun.yaml`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verboseFlag, jsonFlag, cmd.ErrOrStderr())
	},
	RunE: runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./dailyrun.yaml or ~/.dailyrun/dailyrun.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Log in JSON format")

	rootCmd.Flags().BoolVar(&sandboxFlag, "sandbox", false, "Launch the service in a new sandbox now")
	rootCmd.Flags().BoolVar(&scheduleFlag, "schedule", false, "Launch the service every day at the configured time")
}

// runRoot dispatches on the flags. --sandbox wins over --schedule.
func runRoot(cmd *cobra.Command, args []string) error {
	switch {
	case sandboxFlag:
		return runSandbox(cmd)
	case scheduleFlag:
		return runSchedule(cmd)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), usageHint)
		return nil
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, errors.Config("loading config", err)
	}
	return cfg, nil
}

// openLedger opens the launch ledger. The ledger is an audit trail, so a
// failure is logged and the caller carries on without one.
func openLedger(cfg *config.Config) storage.Store {
	store, err := openStore(cfg)
	if err != nil {
		logging.Warn("opening storage", "error", err)
		return nil
	}
	return store
}

func newLauncher(cfg *config.Config, store storage.Store) (*launcher.Launcher, error) {
	platform, err := newPlatform(cfg)
	if err != nil {
		return nil, err
	}

	policy := sandbox.DefaultPolicy()
	policy.Timeout = cfg.Sandbox.Timeout
	policy.Network = cfg.Sandbox.Network
	policy.MaxMemory = cfg.Sandbox.Memory

	return launcher.New(platform, store, launcher.Options{
		App:          cfg.App.Name,
		LocalDir:     cfg.App.LocalDir,
		WorkspaceDir: cfg.App.WorkspaceDir,
		Entrypoint:   cfg.App.Entrypoint,
		ImageFile:    cfg.App.ImageFile,
		Policy:       policy,
	}), nil
}

func runSandbox(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := openLedger(cfg)
	if store != nil {
		defer store.Close()
	}

	l, err := newLauncher(cfg, store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Launching %s in a new sandbox...\n", cfg.App.Name)

	res, err := l.Launch(cmd.Context(), storage.TriggerManual)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Service is running in sandbox %s (reclaimed at %s)\n",
		res.Handle.ID, res.Handle.Deadline.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func runSchedule(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := openLedger(cfg)
	if store != nil {
		defer store.Close()
	}

	l, err := newLauncher(cfg, store)
	if err != nil {
		return err
	}

	t := trigger.New(func(ctx context.Context) error {
		_, err := l.Launch(ctx, storage.TriggerSchedule)
		return err
	}, trigger.Options{
		Hour:      cfg.Schedule.Hour,
		Minute:    cfg.Schedule.Minute,
		Timezone:  cfg.Schedule.Timezone,
		Heartbeat: cfg.Schedule.Heartbeat,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := cfg.Server.StatusAddr; addr != "" && store != nil {
		srv := server.New(store, t)
		go func() {
			if err := srv.Start(addr); err != nil {
				logging.Error("status API stopped", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scheduled daily launch at %02d:%02d %s (Ctrl+C to stop)\n",
		cfg.Schedule.Hour, cfg.Schedule.Minute, cfg.Schedule.Timezone)

	return runTrigger(ctx, t)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(errors.ExitCode(err))
	}
}
