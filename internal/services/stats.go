package services

import (
	"context"
	"sort"

	"github.com/familyledger/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemberStats is one member's rollup for a reporting period. Every sum
// follows attribution precedence: a row counts against AttributedTo
// when set, against CreatedBy otherwise.
type MemberStats struct {
	UserID        uuid.UUID       `json:"userID"`
	Name          string          `json:"name"`
	Income        float64         `json:"income"`
	Expenses      float64         `json:"expenses"`
	Balance       float64         `json:"balance"`
	ItemCount     int             `json:"itemCount"`
	TopCategories []CategoryTotal `json:"topCategories"`
}

type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type MonthSummary struct {
	Period   string              `json:"period"`
	Income   float64             `json:"income"`
	Expenses float64             `json:"expenses"`
	Balance  float64             `json:"balance"`
	Items    []models.BudgetItem `json:"items"`
}

// StatsService is the read-side aggregation over budget items. It never
// mutates anything and tolerates a read-committed snapshot.
type StatsService struct {
	DB *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

func (s *StatsService) Summary(ctx context.Context, familyID uuid.UUID, period string) (*MonthSummary, error) {
	var items []models.BudgetItem
	if err := s.DB.WithContext(ctx).
		Where("family_id = ? AND period = ?", familyID, period).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	summary := MonthSummary{Period: period, Items: items}
	for _, item := range items {
		switch item.Type {
		case models.BudgetItemTypeIncome:
			summary.Income += item.Amount
		case models.BudgetItemTypeExpense:
			summary.Expenses += item.Amount
		}
	}
	summary.Balance = summary.Income - summary.Expenses

	return &summary, nil
}

func (s *StatsService) ExpenseCategories(ctx context.Context, familyID uuid.UUID, period string) ([]CategoryTotal, error) {
	var totals []CategoryTotal
	err := s.DB.WithContext(ctx).
		Model(&models.BudgetItem{}).
		Select("category, SUM(amount) AS total").
		Where("family_id = ? AND period = ? AND type = ?", familyID, period, models.BudgetItemTypeExpense).
		Group("category").
		Order("total DESC").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// PerMember folds the family's budget rows for the period into one
// rollup per current member, ordered by member name for stable output.
func (s *StatsService) PerMember(ctx context.Context, familyID uuid.UUID, period string) ([]MemberStats, error) {
	var members []models.User
	if err := s.DB.WithContext(ctx).
		Where("family_id = ?", familyID).
		Order("name ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}

	var items []models.BudgetItem
	if err := s.DB.WithContext(ctx).
		Where("family_id = ? AND period = ?", familyID, period).
		Find(&items).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		stats      MemberStats
		categories map[string]float64
	}

	buckets := make(map[uuid.UUID]*bucket, len(members))
	order := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		buckets[m.ID] = &bucket{
			stats:      MemberStats{UserID: m.ID, Name: m.Name},
			categories: map[string]float64{},
		}
		order = append(order, m.ID)
	}

	for _, item := range items {
		b, ok := buckets[item.AttributionTarget()]
		if !ok {
			// Attributed to a former member; nobody present claims it.
			continue
		}
		b.stats.ItemCount++
		switch item.Type {
		case models.BudgetItemTypeIncome:
			b.stats.Income += item.Amount
		case models.BudgetItemTypeExpense:
			b.stats.Expenses += item.Amount
			b.categories[item.Category] += item.Amount
		}
	}

	result := make([]MemberStats, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		b.stats.Balance = b.stats.Income - b.stats.Expenses
		b.stats.TopCategories = topCategories(b.categories, 3)
		result = append(result, b.stats)
	}

	return result, nil
}

// topCategories ranks by total descending, category name ascending on
// ties, so output is deterministic.
func topCategories(totals map[string]float64, n int) []CategoryTotal {
	ranked := make([]CategoryTotal, 0, len(totals))
	for category, total := range totals {
		ranked = append(ranked, CategoryTotal{Category: category, Total: total})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].Category < ranked[j].Category
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
