package main

import (
	"fmt"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/mall-admin/internal/config"
	"github.com/iliyamo/mall-admin/internal/database"
	"github.com/iliyamo/mall-admin/internal/logging"
)

var printSchema bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded MySQL schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if printSchema {
			fmt.Fprint(cmd.OutOrStdout(), database.Schema())
			return nil
		}
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		cfg, err := config.DatabaseFromEnv()
		if err != nil {
			return err
		}
		logging.Init(level(cfg.LogLevel), os.Stdout)
		logger := logging.New("migrate")

		db, err := database.Open(cmd.Context(), database.Options{User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName})
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := database.Migrate(cmd.Context(), db)
		if err != nil {
			logger.Errorj(log.JSON{"msg": "migration failed", "applied": n, "error": err.Error()})
			return err
		}
		logger.Infoj(log.JSON{"msg": "schema applied", "statements": n, "database": cfg.DBName})
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&printSchema, "print", false, "print the schema instead of applying it")
}
