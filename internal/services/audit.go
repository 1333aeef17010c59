package services

import (
	"context"
	"time"

	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/pkg/logger"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	FamilyID     *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
}

// AuditService appends permission decisions and membership changes to
// an append-only trail. Writes go through a queue so request handling
// never waits on the audit insert.
type AuditService struct {
	DB    *gorm.DB
	queue chan models.AuditLog
}

func NewAuditService(db *gorm.DB) *AuditService {
	s := &AuditService{
		DB:    db,
		queue: make(chan models.AuditLog, 1000),
	}
	go s.processQueue()
	return s
}

func (s *AuditService) LogAsync(entry AuditEntry) {
	row := models.AuditLog{
		UserID:       entry.UserID,
		FamilyID:     entry.FamilyID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		CreatedAt:    time.Now().UTC(),
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

func (s *AuditService) processQueue() {
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}

func (s *AuditService) List(ctx context.Context, familyID uuid.UUID, p utils.PaginationParams) ([]models.AuditLog, int64, error) {
	var total int64
	if err := s.DB.WithContext(ctx).
		Model(&models.AuditLog{}).
		Where("family_id = ?", familyID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AuditLog
	if err := utils.ApplyPagination(
		s.DB.WithContext(ctx).
			Where("family_id = ?", familyID).
			Order("created_at DESC"),
		p,
	).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}
