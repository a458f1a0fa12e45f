// models/book_loan.go
package models

import "time"

const BookTable = "lib_books"
const LoanTable = "lib_loans"

type Book struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Author        string     `gorm:"size:255;not null" json:"author"`
	ISBN          string     `gorm:"size:13;uniqueIndex;not null" json:"isbn"` // 唯一书号
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
	Genre         string     `gorm:"size:100" json:"genre,omitempty"`

	// 不变式：available_copies == total_copies - 未归还 Loan 数
	// 只允许借还事务修改；管理员纠错路径会按未归还数重新推导
	TotalCopies     int `gorm:"not null;default:1" json:"totalCopies"`
	AvailableCopies int `gorm:"not null;default:1" json:"availableCopies"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Loan struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string     `gorm:"type:uuid;index;not null" json:"userId"`
	BookID     string     `gorm:"type:uuid;index;not null" json:"bookId"`
	BorrowedAt time.Time  `gorm:"index;not null" json:"borrowedAt"` // 建档后不可改
	DueAt      *time.Time `json:"dueAt,omitempty"`

	ReturnedAt *time.Time `gorm:"index" json:"returnedAt,omitempty"` // null = 未归还，只写一次
	ReturnedBy *string    `gorm:"type:uuid" json:"returnedBy,omitempty"`

	Note      string    `gorm:"size:255" json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Book) TableName() string { return BookTable }
func (Loan) TableName() string { return LoanTable }

// Open 表示该 Loan 尚未归还
func (l *Loan) Open() bool { return l.ReturnedAt == nil }

// Available 汇总：还有没有可借副本
func (b *Book) Available() bool { return b.AvailableCopies > 0 }
