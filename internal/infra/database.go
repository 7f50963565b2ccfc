package infra

import (
	"fmt"

	"gestorpos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection backed by pgx, migrates the settlement
// tables and applies the idempotent patches AutoMigrate cannot express.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table the settlement engine writes.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Counter{},
		&model.Sale{},
		&model.Product{},
		&model.ProductStock{},
		&model.StockMovement{},
		&model.BankAccount{},
		&model.BankPosting{},
		&model.ReceivableBill{},
		&model.WorkOrder{},
		&model.Request{},
		&model.AuditLog{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL that GORM tags cannot express.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// at most one default account per owner
		{"unique default bank account", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_bank_accounts_owner_default
    ON bank_accounts (owner) WHERE is_default`},
		{"stock movements by sale", `
CREATE INDEX IF NOT EXISTS idx_stock_movements_owner_reference
    ON stock_movements (owner, reference_code)`},
		{"open receivable bills", `
CREATE INDEX IF NOT EXISTS idx_receivable_bills_pendent
    ON receivable_bills (owner, code) WHERE status = 'PENDENT'`},
		{"non-negative counters", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_counters_value') THEN
    ALTER TABLE counters ADD CONSTRAINT chk_counters_value CHECK (value >= 0);
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
