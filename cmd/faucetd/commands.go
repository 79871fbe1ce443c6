package main

import (
	"context"
	"fmt"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/testnetops/faucetd/config"
	"github.com/testnetops/faucetd/core"
	"github.com/testnetops/faucetd/logger"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(versionCmd())
}

func startCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the faucet daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			daemon, err := core.NewDaemon(ctx, cfg, log)
			if err != nil {
				return err
			}
			return daemon.Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (embedded defaults when empty)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print faucetd version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version: %s\n", Version)
			if info, ok := debug.ReadBuildInfo(); ok {
				fmt.Printf("Go:      %s\n", info.GoVersion)
			}
		},
	}
}
