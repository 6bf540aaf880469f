/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taskforge/apiserver/config"
	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/notify"
	"github.com/taskforge/apiserver/internal/server"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes account notifications and sends the emails",
	Long: `Consumes welcome and cancellation notifications from MQ_BACKEND and
delivers them over SMTP. Without SMTP_HOST the rendered emails are logged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := server.NewQueue(ctx, cfg)
		if err != nil {
			return err
		}
		defer queue.Close()

		mailer, err := server.NewMailer(cfg.SMTP, log)
		if err != nil {
			return err
		}
		return notify.NewWorker(queue, mailer, log).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
