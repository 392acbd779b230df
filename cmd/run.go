package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/meurit/app"
	"github.com/kilianp07/meurit/config"
	coremon "github.com/kilianp07/meurit/core/monitoring"
	"github.com/kilianp07/meurit/infra/logger"
	"github.com/kilianp07/meurit/infra/monitoring"
)

var (
	rounds    int
	exportDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the isolated calculation and the coupling rounds",
	RunE:  run,
}

func init() {
	runCmd.Flags().IntVarP(&rounds, "rounds", "n", -1, "override simulation.rounds")
	runCmd.Flags().StringVarP(&exportDir, "out", "o", "", "override export.dir")
	rootCmd.AddCommand(runCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.SetLevel(level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupMonitoring(cfg config.SentryConfig) {
	mon, err := monitoring.NewSentryMonitor(cfg)
	if err != nil {
		logger.New("main").Warnf("sentry disabled: %v", err)
		return
	}
	coremon.Init(mon)
}

func run(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupMonitoring(cfg.Sentry)
	defer coremon.Flush(2 * time.Second)
	defer coremon.Recover()
	tags := map[string]string{"command": "run"}
	defer func() {
		if err != nil {
			coremon.CaptureException(err, tags)
		}
	}()
	if cmd.Flags().Changed("rounds") {
		if rounds < 0 {
			return fmt.Errorf("rounds must be >= 0, got %d", rounds)
		}
		cfg.Simulation.Rounds = &rounds
	}
	if exportDir != "" {
		cfg.Export.Dir = exportDir
	}

	r, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	tags["run_id"] = r.RunID()
	defer func() {
		if err := r.Close(); err != nil {
			logger.New("main").Errorf("runner close: %v", err)
		}
	}()
	report, err := r.Run(ctx)
	if err != nil {
		return err
	}
	return printSummary(cmd.OutOrStdout(), report)
}
