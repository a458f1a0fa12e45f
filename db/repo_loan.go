package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Mohammedr4/library-management-system/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Loans

var (
	ErrBookNotFound    = errors.New("book not found")
	ErrUnavailable     = errors.New("no copies available")
	ErrLoanAlreadyOpen = errors.New("user already has an open loan for this book")
	ErrNoOpenLoan      = errors.New("no open loan for this book")
	ErrAlreadyReturned = errors.New("loan already returned")
	ErrLoanNotFound    = errors.New("loan not found")
)

// isUniqueViolation Postgres SQLSTATE 23505
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// reserveCopy 占一个副本：单条有条件 UPDATE，不做读-改-写，
// 两个并发借最后一本时只有一个能拿到 rows-affected = 1
func reserveCopy(tx *gorm.DB, bookID string) error {
	res := tx.Model(&models.Book{}).
		Where("id = ? AND available_copies > 0", bookID).
		Update("available_copies", gorm.Expr("available_copies - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUnavailable
	}
	return nil
}

// releaseCopy 还一个副本。只能在借还事务里调用，
// 每条 Loan 至多一次（由 returned_at 只写一次保证），所以这里不做条件检查
func releaseCopy(tx *gorm.DB, bookID string) error {
	return tx.Model(&models.Book{}).
		Where("id = ?", bookID).
		Update("available_copies", gorm.Expr("available_copies + 1")).Error
}

// BorrowBook 借书：原子单元 = 占副本 → 建 Loan。
// Loan 上 (user_id, book_id) where returned_at is null 的唯一部分索引
// 是并发重复借的仲裁者；插入撞索引时整个事务回滚，占的副本一并退回。
func (r *Repo) BorrowBook(ctx context.Context, userID, bookID string, dueAt *time.Time, note string) (*models.Loan, error) {
	var loan *models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 锁住该书。所有借还事务都先拿书的行锁再碰 Loan，顺序一致才不会死锁
		var b models.Book
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&b, "id = ?", bookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		// 2) 占副本
		if err := reserveCopy(tx, bookID); err != nil {
			return err
		}
		// 3) 建 Loan
		bNow := now()
		l := &models.Loan{
			ID:         uuid.NewString(),
			UserID:     userID,
			BookID:     bookID,
			BorrowedAt: bNow,
			DueAt:      dueAt,
			Note:       note,
		}
		if err := tx.Create(l).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrLoanAlreadyOpen
			}
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// ReturnBook 还书：原子单元 = 关 Loan → 释放副本。
// returned_at 用条件 UPDATE 只写一次；写不进说明拿到的是旧记录。
func (r *Repo) ReturnBook(ctx context.Context, userID, bookID string) (*models.Loan, error) {
	return r.closeLoan(ctx, userID, bookID, nil, "")
}

// ForceReturn 管理员代还：记下经手人，连同审计日志一起提交
func (r *Repo) ForceReturn(ctx context.Context, userID, bookID, actorID, actorEmail, note string) (*models.Loan, error) {
	return r.closeLoan(ctx, userID, bookID, &actorID, noteOrEmpty(actorEmail, note))
}

func noteOrEmpty(actorEmail, note string) string {
	if strings.TrimSpace(note) == "" {
		return ""
	}
	return strings.TrimSpace(note) + " (" + actorEmail + ")"
}

func (r *Repo) closeLoan(ctx context.Context, userID, bookID string, returnedBy *string, note string) (*models.Loan, error) {
	var loan models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 先锁书（与借出同序），再找该 (user, book) 的未归还 Loan
		//    唯一部分索引保证至多一条
		var b models.Book
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&b, "id = ?", bookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND book_id = ? AND returned_at IS NULL", userID, bookID).
			First(&loan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoOpenLoan
			}
			return err
		}
		// 2) 关闭：returned_at 只写一次
		rNow := now()
		update := map[string]any{
			"returned_at": rNow,
			"updated_at":  rNow,
		}
		if returnedBy != nil {
			update["returned_by"] = *returnedBy
		}
		if strings.TrimSpace(note) != "" {
			merged := strings.TrimSpace(strings.TrimSpace(loan.Note+" ") + note)
			update["note"] = merged
			loan.Note = merged
		}
		res := tx.Model(&models.Loan{}).
			Where("id = ? AND returned_at IS NULL", loan.ID).
			Updates(update)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyReturned
		}
		loan.ReturnedAt = &rNow
		loan.ReturnedBy = returnedBy
		loan.UpdatedAt = rNow
		// 3) 释放副本
		if returnedBy != nil {
			if err := r.logAction(tx, *returnedBy, "force_return", &bookID, &loan.ID, nil); err != nil {
				return err
			}
		}
		return releaseCopy(tx, bookID)
	})
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// DeleteLoan 管理员删借阅记录；删未归还的要把占的副本退回去
func (r *Repo) DeleteLoan(ctx context.Context, loanID, actorID string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先不加锁拿到 book_id，再按 书→Loan 的顺序锁
		var l models.Loan
		if err := tx.First(&l, "id = ?", loanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&models.Book{}, "id = ?", l.BookID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&l, "id = ?", loanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}
		if l.ReturnedAt == nil {
			if err := releaseCopy(tx, l.BookID); err != nil {
				return err
			}
		}
		if err := r.logAction(tx, actorID, "loan_delete", &l.BookID, &l.ID, nil); err != nil {
			return err
		}
		return tx.Delete(&models.Loan{}, "id = ?", loanID).Error
	})
}

type LoansFilter struct {
	UserID string
	BookID string
	Status string // "" | "open" | "returned"
}

func (r *Repo) ListLoans(ctx context.Context, f LoansFilter) ([]models.Loan, error) {
	q := r.DB.WithContext(ctx).Model(&models.Loan{}).Order("borrowed_at DESC")
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.BookID != "" {
		q = q.Where("book_id = ?", f.BookID)
	}
	switch f.Status {
	case "open":
		q = q.Where("returned_at IS NULL")
	case "returned":
		q = q.Where("returned_at IS NOT NULL")
	}
	var ls []models.Loan
	if err := q.Find(&ls).Error; err != nil {
		return nil, err
	}
	return ls, nil
}

// ListOpenLoansForUser 普通用户：自己手上正在借着的书
func (r *Repo) ListOpenLoansForUser(ctx context.Context, userID string) ([]models.Loan, error) {
	return r.ListLoans(ctx, LoansFilter{UserID: userID, Status: "open"})
}

// CountOpenLoansForBook 纠错路径推导库存时用
func CountOpenLoansForBook(tx *gorm.DB, bookID string) (int64, error) {
	var n int64
	err := tx.Model(&models.Loan{}).
		Where("book_id = ? AND returned_at IS NULL", bookID).
		Count(&n).Error
	return n, err
}
