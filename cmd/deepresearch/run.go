package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nithiin7/deep-research-app/config"
	"github.com/nithiin7/deep-research-app/internal/research"
	"github.com/nithiin7/deep-research-app/internal/telemetry"
	"github.com/nithiin7/deep-research-app/utils"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var query string
	var run = &cobra.Command{
		Use:   "run",
		Short: "Run one research query and print progress to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := utils.SanitizeQuery(query)
			if q == "" {
				return fmt.Errorf("query is required")
			}
			cfg := config.LoadConfig(cfgPath)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tele := telemetry.NewTelemetry(cfg.Telemetry)
			defer tele.Shutdown()

			mgr, err := research.New(cfg, log.New(log.Writer(), "[MANAGER] ", log.LstdFlags), tele)
			if err != nil {
				return err
			}

			for msg := range mgr.Run(ctx, q) {
				fmt.Println(msg)
			}
			return ctx.Err()
		},
	}
	run.Flags().StringVarP(&query, "query", "q", "", "research query")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	_ = run.MarkFlagRequired("query")

	return run
}
