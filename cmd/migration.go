package cmd

import (
	"context"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/database"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/repository"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the complaint tables",
	Run:   runMigration,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigration(_ *cobra.Command, _ []string) {
	cfg := config.Global
	logrus.WithField("driver", cfg.Database.Driver).Info("[MIGRATION] Migrating complaint schema...")

	db, err := database.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[MIGRATION] %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	repo := repository.NewComplaintGormRepository(db, cfg.Conversation.OfficeCode)
	if err := repo.InitSchema(context.Background()); err != nil {
		logrus.Fatalf("[MIGRATION] Failed to migrate complaint tables: %v", err)
	}
	logrus.Info("[MIGRATION] Complaint schema is up to date")
}
