package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	directorydomain "github.com/smallbiznis/royalti/internal/directory/domain"
	ledgerdomain "github.com/smallbiznis/royalti/internal/ledger/domain"
	payoutdomain "github.com/smallbiznis/royalti/internal/payout/domain"
	perioddomain "github.com/smallbiznis/royalti/internal/period/domain"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
	"gorm.io/gorm"
)

// Models lists every persisted type in creation order.
func Models() []any {
	return []any{
		&perioddomain.Period{},
		&reportdomain.ReportJob{},
		&reportdomain.RowError{},
		&recorddomain.AnalyticsRecord{},
		&recorddomain.RoyaltyRecord{},
		&recorddomain.ChannelRevenueRecord{},
		&directorydomain.AccountOwner{},
		&walletdomain.Wallet{},
		&walletdomain.Adjustment{},
		&ledgerdomain.Entry{},
		&payoutdomain.Payout{},
	}
}

// Run applies the embedded SQL migrations on postgres. Other dialects are
// local or test setups and use AutoMigrate.
func Run(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if !strings.EqualFold(strings.TrimSpace(dbType), "postgres") {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
