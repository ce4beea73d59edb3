package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/daemonize"
	"github.com/kardianos/osext"
	"github.com/spf13/cobra"

	"github.com/dbfs/dbfs/internal/config"
	"github.com/dbfs/dbfs/internal/fuse"
	"github.com/dbfs/dbfs/internal/logging"
	"github.com/dbfs/dbfs/internal/materialize"
	"github.com/dbfs/dbfs/internal/metrics"
	"github.com/dbfs/dbfs/internal/query"
	"github.com/dbfs/dbfs/internal/registry"
	"github.com/dbfs/dbfs/internal/vpath"
)

func newMountCmd(root *rootFlags) *cobra.Command {
	var (
		dumpPath   string
		foreground bool
		allowOther bool
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "mount <mountpoint>",
		Short: "Mount the filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			cfg.Mount.MountPoint = args[0]
			if dumpPath != "" {
				cfg.Mount.DumpPath = dumpPath
			}
			if foreground {
				cfg.Mount.Foreground = true
			}
			if allowOther {
				cfg.Mount.AllowOther = true
			}
			if debug {
				cfg.Mount.Debug = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if !cfg.Mount.Foreground {
				return runDaemonized()
			}
			return runMount(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&dumpPath, "dump-path", "", "backing store directory")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "stay attached to the terminal")
	cmd.Flags().BoolVar(&allowOther, "allow-other", false, "allow access by other users")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable FUSE debug output")

	return cmd
}

// runDaemonized re-executes the process with --foreground and waits
// for the child to report whether the mount succeeded.
func runDaemonized() error {
	executable, err := osext.Executable()
	if err != nil {
		return fmt.Errorf("finding executable: %w", err)
	}

	args := append([]string{}, os.Args[1:]...)
	args = append(args, "--foreground")

	// The daemon needs PATH to locate fusermount.
	env := []string{
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
	}
	if home, err := os.UserHomeDir(); err == nil {
		env = append(env, fmt.Sprintf("HOME=%s", home))
	}

	if err := daemonize.Run(executable, args, env, os.Stdout, os.Stderr); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	return nil
}

// runMount builds the filesystem stack, seeds the backing store, and
// serves until unmounted or interrupted. The mount outcome is signaled
// to a waiting parent when we were daemonized.
func runMount(ctx context.Context, cfg *config.Configuration) error {
	logger, closer, err := logging.Setup(cfg.Global)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	reg := registry.New(cfg)
	executor := query.NewExecutor(cfg.Query, logger)

	if cfg.Query.VerifyOnStartup {
		if err := reg.Verify(ctx, executor); err != nil {
			daemonize.SignalOutcome(err)
			return err
		}
	}

	collector, err := metrics.NewCollector(cfg.Metrics, logger)
	if err != nil {
		daemonize.SignalOutcome(err)
		return err
	}

	translator := vpath.NewTranslator(cfg.Mount.DumpPath)
	seeder := materialize.NewSeeder(translator, reg, executor, logger)
	if err := seeder.Seed(ctx); err != nil {
		daemonize.SignalOutcome(err)
		return err
	}

	materializer := materialize.NewMaterializer(translator, reg, executor, collector, logger)
	synchronizer := materialize.NewSynchronizer(translator, reg, executor, collector, logger)
	core := fuse.NewDBFS(translator, materializer, synchronizer, collector, logger, cfg.Mount)

	mounter := fuse.NewMounter(core, cfg.Mount, logger)
	if err := mounter.Mount(ctx); err != nil {
		daemonize.SignalOutcome(err)
		return err
	}
	daemonize.SignalOutcome(nil)

	if err := collector.Start(ctx); err != nil {
		logger.Warn("metrics endpoint not started", "error", err)
	}

	unmountOnSignal(mounter, logger)
	mounter.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Query.ResponseTimeout)
	defer cancel()
	if err := collector.Stop(stopCtx); err != nil {
		logger.Warn("metrics endpoint shutdown failed", "error", err)
	}
	logger.Info("exiting")
	return nil
}

func unmountOnSignal(mounter fuse.Mounter, logger *slog.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range signals {
			logger.Info("signal received, unmounting")
			if err := mounter.Unmount(); err == nil {
				return
			}
		}
	}()
}
