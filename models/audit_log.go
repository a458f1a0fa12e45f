package models

import "time"

// AuditLog 记录管理员纠错操作（改书目副本数、代还、删借阅记录）
type AuditLog struct {
	ID         string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID    string    `gorm:"type:uuid" json:"actorId"`
	ActorEmail string    `json:"actorEmail"`
	Action     string    `gorm:"size:40;not null" json:"action"` // book_update / force_return / loan_delete ...
	BookID     *string   `gorm:"type:uuid" json:"bookId,omitempty"`
	LoanID     *string   `gorm:"type:uuid" json:"loanId,omitempty"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (AuditLog) TableName() string { return "lib_audit_log" }
