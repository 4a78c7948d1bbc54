package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/mall-admin/internal/config"
	"github.com/iliyamo/mall-admin/internal/logging"
	"github.com/iliyamo/mall-admin/internal/queue"
)

var auditConsumerCmd = &cobra.Command{
	Use:   "audit-consumer",
	Short: "Append audit events from the broker to the audit log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		cfg, err := config.AuditFromEnv()
		if err != nil {
			return err
		}
		logging.Init(level(cfg.LogLevel), os.Stdout)
		logger := logging.New("audit-consumer")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Infoj(log.JSON{"msg": "consuming", "queue": cfg.AuditQueue, "dir": cfg.AuditLogDir})
		c := &queue.Consumer{URL: cfg.RabbitURL, Queue: cfg.AuditQueue, Dir: cfg.AuditLogDir, Log: logger}
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
