package services

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"famledger/internal/logger"
	"famledger/internal/models"
)

// SystemActor is the audit user id of actions taken by the engine itself.
const SystemActor = "system"

// Audit actions.
const (
	AuditCreateBudget          = "CREATE_BUDGET"
	AuditUpdateCategoryBudgets = "UPDATE_CATEGORY_BUDGETS"
	AuditCloseAndAdvance       = "CLOSE_AND_ADVANCE"
	AuditSweep                 = "SWEEP"
	AuditHealRollover          = "HEAL_ROLLOVER"
)

// auditService writes audit rows synchronously on the caller's goroutine.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Failures are logged and swallowed: an audit
// row is never worth failing a budget operation for.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	log := logger.Named("audit").With("user_id", userID, "action", action, "resource_type", resourceType, "resource_id", resourceID)

	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(changes, log),
	}
	if err := s.db.Create(entry).Error; err != nil {
		log.Errorw("failed to create audit log entry", "error", err)
	}
}

// encodeChanges renders changes as a JSON object, "" when there are none.
func encodeChanges(changes map[string]any, log *zap.SugaredLogger) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		log.Errorw("failed to marshal audit log changes", "error", err)
		return "{}"
	}
	return string(data)
}
