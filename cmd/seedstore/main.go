// cmd/seedstore creates the default bank account and a few products for a
// store so the sale flow can be exercised locally. Safe to run twice.
// Usage: go run ./cmd/seedstore -owner store-1
package main

import (
	"flag"
	"os"

	"gestorpos/internal/config"
	"gestorpos/internal/infra"
	"gestorpos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	owner := flag.String("owner", "store-1", "owner to seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.BankAccount{}).
			Where("owner = ? AND is_default", *owner).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			account := model.BankAccount{ID: uuid.New(), Owner: *owner, Code: "001", Name: "Cash", IsDefault: true}
			if err := tx.Create(&account).Error; err != nil {
				return err
			}
			log.Info().Str("owner", *owner).Str("account", account.ID.String()).Msg("default bank account created")
		}

		products := []model.Product{
			{Owner: *owner, Code: "P1", Name: "Sample product", Quantity: decimal.NewFromInt(100)},
			{Owner: *owner, Code: "P2", Name: "Sample accessory", Quantity: decimal.NewFromInt(50)},
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Str("owner", *owner).Msg("store seeded")
}
