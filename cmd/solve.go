package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/spotmarket/app"
	"github.com/kilianp07/spotmarket/config"
	"github.com/kilianp07/spotmarket/infra/logger"
)

var solveCmd = &cobra.Command{
	Use:   "solve [scenario file]",
	Short: "Dispatch one market interval from a scenario file",
	Args:  cobra.ExactArgs(1),
	RunE:  solve,
}

func init() {
	rootCmd.AddCommand(solveCmd)
}

func solve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx, args[0])
}
