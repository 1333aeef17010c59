package services

import (
	"testing"

	"github.com/familyledger/backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Family{},
		&models.BudgetItem{},
		&models.ShoppingItem{},
		&models.EditPermission{},
		&models.Message{},
		&models.Reminder{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

func seedUser(t *testing.T, db *gorm.DB, email, name string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         name,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user %s: %v", email, err)
	}
	return user
}

// seedFamily creates a family with the first user as admin and puts
// every given user into it.
func seedFamily(t *testing.T, db *gorm.DB, name string, users ...*models.User) *models.Family {
	t.Helper()

	if len(users) == 0 {
		t.Fatal("seedFamily needs at least the admin")
	}

	family := &models.Family{
		Name:           name,
		JoinSecretHash: "hash",
		AdminID:        users[0].ID,
	}
	if err := db.Create(family).Error; err != nil {
		t.Fatalf("failed creating family %s: %v", name, err)
	}

	for _, user := range users {
		if err := db.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("family_id", family.ID).Error; err != nil {
			t.Fatalf("failed adding %s to family: %v", user.Email, err)
		}
		user.FamilyID = &family.ID
	}

	return family
}

func seedBudgetItem(t *testing.T, db *gorm.DB, familyID, createdBy uuid.UUID, itemType models.BudgetItemType, category string, amount float64, period string) *models.BudgetItem {
	t.Helper()

	item := &models.BudgetItem{
		FamilyID:  familyID,
		Type:      itemType,
		Category:  category,
		Amount:    amount,
		Period:    period,
		CreatedBy: createdBy,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed creating budget item: %v", err)
	}
	return item
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var count int64
	if err := db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("failed counting rows: %v", err)
	}
	return count
}
