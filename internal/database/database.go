package database

import (
	"fmt"

	"github.com/familyledger/backend/internal/config"
	"github.com/familyledger/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Family{},
		&models.BudgetItem{},
		&models.ShoppingItem{},
		&models.EditPermission{},
		&models.Message{},
		&models.Reminder{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	// Two simultaneous identical requests must not both land as pending;
	// the partial unique index is the storage-level backstop behind the
	// check-then-insert in PermissionService.
	constraint := `
CREATE UNIQUE INDEX IF NOT EXISTS idx_one_pending_request
ON edit_permissions (budget_item_id, requested_by)
WHERE status = 'pending';`

	return db.Exec(constraint).Error
}
