package cmd

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"example.com/auctionhouse/config"
	"example.com/auctionhouse/internal/models"
)

var rootCmd = &cobra.Command{
	Use:   "auctionhouse",
	Short: "Auction platform services",
	Long: `Auction platform core: the auction record store and finisher, the bid
ledger and evaluator, and the event propagation between them.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}

// initDatabases opens the write and read-only connections and runs migrations
// on the write side.
func initDatabases(cfg config.Config) (*gorm.DB, *gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}

	if err := models.SetupModels(db); err != nil {
		return nil, nil, err
	}

	if err := configurePool(db, cfg.DB); err != nil {
		return nil, nil, err
	}

	readOnlyDB := db
	if cfg.DB.ReadOnlyDSN != "" && cfg.DB.ReadOnlyDSN != cfg.DB.DSN {
		readOnlyDB, err = gorm.Open(postgres.Open(cfg.DB.ReadOnlyDSN), &gorm.Config{})
		if err != nil {
			return nil, nil, err
		}
		if err := configurePool(readOnlyDB, cfg.DB); err != nil {
			return nil, nil, err
		}
	}

	return db, readOnlyDB, nil
}

func configurePool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return nil
}
