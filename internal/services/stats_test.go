package services

import (
	"context"
	"testing"

	"github.com/familyledger/backend/internal/models"
	"github.com/google/uuid"
)

func TestStatsService_Summary(t *testing.T) {
	db := setupTestDB(t)
	service := NewStatsService(db)

	admin := seedUser(t, db, "admin@test.com", "Admin")
	family := seedFamily(t, db, "Summary Family", admin)

	seedBudgetItem(t, db, family.ID, admin.ID, models.BudgetItemTypeIncome, "Salary", 2000, "2026-08")
	seedBudgetItem(t, db, family.ID, admin.ID, models.BudgetItemTypeExpense, "Rent", 800, "2026-08")
	seedBudgetItem(t, db, family.ID, admin.ID, models.BudgetItemTypeExpense, "Groceries", 150, "2026-08")
	seedBudgetItem(t, db, family.ID, admin.ID, models.BudgetItemTypeExpense, "Rent", 800, "2026-07")

	summary, err := service.Summary(context.TODO(), family.ID, "2026-08")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	if summary.Income != 2000 {
		t.Errorf("expected income 2000, got %.2f", summary.Income)
	}
	if summary.Expenses != 950 {
		t.Errorf("expected expenses 950, got %.2f", summary.Expenses)
	}
	if summary.Balance != 1050 {
		t.Errorf("expected balance 1050, got %.2f", summary.Balance)
	}
	if len(summary.Items) != 3 {
		t.Errorf("expected 3 items in period, got %d", len(summary.Items))
	}
}

func TestStatsService_PerMember(t *testing.T) {
	db := setupTestDB(t)
	service := NewStatsService(db)

	alice := seedUser(t, db, "alice@test.com", "Alice")
	bob := seedUser(t, db, "bob@test.com", "Bob")
	family := seedFamily(t, db, "Stats Family", alice, bob)

	const period = "2026-08"

	// Alice's own rows.
	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeIncome, "Salary", 1500, period)
	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeExpense, "Rent", 700, period)

	// Bob buys on Alice's behalf; attribution moves the row to Alice.
	attributed := seedBudgetItem(t, db, family.ID, bob.ID, models.BudgetItemTypeExpense, "Shopping", 50, period)
	if err := db.Model(attributed).Update("attributed_to", alice.ID).Error; err != nil {
		t.Fatalf("failed attributing item: %v", err)
	}

	// Bob's own row.
	seedBudgetItem(t, db, family.ID, bob.ID, models.BudgetItemTypeExpense, "Fuel", 60, period)

	// A row attributed to someone who is no longer a member.
	orphan := seedBudgetItem(t, db, family.ID, bob.ID, models.BudgetItemTypeExpense, "Gifts", 999, period)
	if err := db.Model(orphan).Update("attributed_to", uuid.New()).Error; err != nil {
		t.Fatalf("failed orphaning item: %v", err)
	}

	stats, err := service.PerMember(context.TODO(), family.ID, period)
	if err != nil {
		t.Fatalf("per-member stats failed: %v", err)
	}

	if len(stats) != 2 {
		t.Fatalf("expected 2 members, got %d", len(stats))
	}
	if stats[0].Name != "Alice" || stats[1].Name != "Bob" {
		t.Fatalf("expected name-ordered members, got %s then %s", stats[0].Name, stats[1].Name)
	}

	t.Run("attribution overrides creator", func(t *testing.T) {
		aliceStats := stats[0]
		if aliceStats.Expenses != 750 {
			t.Errorf("expected Alice expenses 750, got %.2f", aliceStats.Expenses)
		}
		if aliceStats.Income != 1500 {
			t.Errorf("expected Alice income 1500, got %.2f", aliceStats.Income)
		}
		if aliceStats.Balance != 750 {
			t.Errorf("expected Alice balance 750, got %.2f", aliceStats.Balance)
		}
		if aliceStats.ItemCount != 3 {
			t.Errorf("expected Alice item count 3, got %d", aliceStats.ItemCount)
		}
	})

	t.Run("creator loses the attributed row", func(t *testing.T) {
		bobStats := stats[1]
		if bobStats.Expenses != 60 {
			t.Errorf("expected Bob expenses 60, got %.2f", bobStats.Expenses)
		}
		if bobStats.ItemCount != 1 {
			t.Errorf("expected Bob item count 1, got %d", bobStats.ItemCount)
		}
	})

	t.Run("rows attributed to former members are not reassigned", func(t *testing.T) {
		for _, member := range stats {
			for _, category := range member.TopCategories {
				if category.Category == "Gifts" {
					t.Fatalf("orphaned row leaked into %s's categories", member.Name)
				}
			}
		}
	})
}

func TestStatsService_TopCategories(t *testing.T) {
	db := setupTestDB(t)
	service := NewStatsService(db)

	alice := seedUser(t, db, "alice@test.com", "Alice")
	family := seedFamily(t, db, "Category Family", alice)

	const period = "2026-08"

	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeExpense, "Rent", 900, period)
	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeExpense, "Groceries", 120, period)
	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeExpense, "Groceries", 80, period)
	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeExpense, "Fuel", 200, period)
	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeExpense, "Dining", 200, period)
	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeExpense, "Hobby", 40, period)

	stats, err := service.PerMember(context.TODO(), family.ID, period)
	if err != nil {
		t.Fatalf("per-member stats failed: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 member, got %d", len(stats))
	}

	top := stats[0].TopCategories
	if len(top) != 3 {
		t.Fatalf("expected top 3 categories, got %d", len(top))
	}

	// Rent 900, then the 200 tie broken alphabetically: Dining before Fuel.
	expected := []CategoryTotal{
		{Category: "Rent", Total: 900},
		{Category: "Dining", Total: 200},
		{Category: "Fuel", Total: 200},
	}
	for i, want := range expected {
		if top[i] != want {
			t.Errorf("category %d: expected %+v, got %+v", i, want, top[i])
		}
	}
}

func TestStatsService_ExpenseCategories(t *testing.T) {
	db := setupTestDB(t)
	service := NewStatsService(db)

	alice := seedUser(t, db, "alice@test.com", "Alice")
	family := seedFamily(t, db, "Breakdown Family", alice)

	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeExpense, "Rent", 900, "2026-08")
	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeExpense, "Groceries", 120, "2026-08")
	seedBudgetItem(t, db, family.ID, alice.ID, models.BudgetItemTypeIncome, "Salary", 2000, "2026-08")

	totals, err := service.ExpenseCategories(context.TODO(), family.ID, "2026-08")
	if err != nil {
		t.Fatalf("expense categories failed: %v", err)
	}

	if len(totals) != 2 {
		t.Fatalf("expected 2 expense categories, got %d", len(totals))
	}
	if totals[0].Category != "Rent" || totals[0].Total != 900 {
		t.Errorf("expected Rent 900 first, got %+v", totals[0])
	}
	if totals[1].Category != "Groceries" || totals[1].Total != 120 {
		t.Errorf("expected Groceries 120 second, got %+v", totals[1])
	}
}
