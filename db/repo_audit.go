package db

import (
	"context"
	"fmt"

	"github.com/Mohammedr4/library-management-system/models"

	"gorm.io/gorm"
)

// logAction 写一条审计记录；在调用方的事务里执行，跟业务写同生共死
func (r *Repo) logAction(tx *gorm.DB, actorID, action string, bookID, loanID, note *string) error {
	var actorEmail string
	// 查不到也记，actor 可能刚被删
	tx.Model(&models.User{}).Select("email").Where("id = ?", actorID).Scan(&actorEmail)
	entry := &models.AuditLog{
		ActorID:    actorID,
		ActorEmail: actorEmail,
		Action:     action,
		BookID:     bookID,
		LoanID:     loanID,
		Note:       note,
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *Repo) ListAuditLog(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.AuditLog
	err := r.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
