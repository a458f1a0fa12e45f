package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Mohammedr4/library-management-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Books

var ErrISBNTaken = errors.New("isbn already registered")

type CreateBookInput struct {
	Title         string
	Author        string
	ISBN          string
	PublishedDate *time.Time
	Genre         string
	TotalCopies   int
}

func (r *Repo) CreateBook(ctx context.Context, in CreateBookInput) (*models.Book, error) {
	if in.TotalCopies <= 0 {
		in.TotalCopies = 1
	}
	b := &models.Book{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		PublishedDate:   in.PublishedDate,
		Genre:           in.Genre,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies, // 新书没有借阅，全可借
	}
	if err := r.DB.WithContext(ctx).Create(b).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrISBNTaken
		}
		return nil, err
	}
	return b, nil
}

func (r *Repo) FindBookByID(ctx context.Context, id string) (*models.Book, error) {
	var b models.Book
	if err := r.DB.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *Repo) ListBooks(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	err := r.DB.WithContext(ctx).Order("created_at DESC").Find(&books).Error
	return books, err
}

type UpdateBookInput struct {
	Title         *string
	Author        *string
	ISBN          *string
	PublishedDate *time.Time
	Genre         *string
	TotalCopies   *int
}

// UpdateBook 管理员纠错路径。书目字段直接改；动 total_copies 时
// available_copies 不信任客户端，按未归还数在同一事务里重新推导，
// 推出负数说明副本数低于在借数，整单拒绝。
func (r *Repo) UpdateBook(ctx context.Context, id, actorID string, in UpdateBookInput) (*models.Book, error) {
	var b models.Book
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		update := map[string]any{"updated_at": now()}
		if in.Title != nil {
			update["title"] = *in.Title
		}
		if in.Author != nil {
			update["author"] = *in.Author
		}
		if in.ISBN != nil {
			update["isbn"] = *in.ISBN
		}
		if in.PublishedDate != nil {
			update["published_date"] = *in.PublishedDate
		}
		if in.Genre != nil {
			update["genre"] = *in.Genre
		}
		if in.TotalCopies != nil {
			open, err := CountOpenLoansForBook(tx, id)
			if err != nil {
				return err
			}
			if int64(*in.TotalCopies) < open {
				return ErrUnavailable
			}
			update["total_copies"] = *in.TotalCopies
			update["available_copies"] = *in.TotalCopies - int(open)
		}
		if err := tx.Model(&models.Book{}).Where("id = ?", id).Updates(update).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrISBNTaken
			}
			return err
		}
		if err := r.logAction(tx, actorID, "book_update", &id, nil, nil); err != nil {
			return err
		}
		return tx.First(&b, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBook 连同借阅记录一起删（级联语义），并留审计
func (r *Repo) DeleteBook(ctx context.Context, id, actorID string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Book
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if err := tx.Where("book_id = ?", id).Delete(&models.Loan{}).Error; err != nil {
			return err
		}
		if err := r.logAction(tx, actorID, "book_delete", &id, nil, nil); err != nil {
			return err
		}
		return tx.Delete(&models.Book{}, "id = ?", id).Error
	})
}

// 管理端列表：书目 + 在借数 + 是否有逾期

type AdminBookRow struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Genre           string    `json:"genre,omitempty"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	OpenLoans       int64     `json:"openLoans"`
	Overdue         bool      `json:"overdue"` // 由 SQL 计算
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type AdminBooksQuery struct {
	Q      string // 模糊搜索：title/author/isbn
	Status string // "", "open", "available", "overdue"
	Page   int
	Size   int
}

type PagedAdminBooks struct {
	Total int64          `json:"total"`
	Books []AdminBookRow `json:"books"`
}

func (r *Repo) ListBooksWithOpenLoans(ctx context.Context, q AdminBooksQuery) (*PagedAdminBooks, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}
	offset := (q.Page - 1) * q.Size

	// 条件在 Count 和 Scan 之间复用，每次都重建，避免 builder 串味
	base := func() *gorm.DB {
		tx := r.DB.WithContext(ctx).
			Table(models.BookTable + " b").
			Joins("LEFT JOIN " + models.LoanTable + " ol ON ol.book_id = b.id AND ol.returned_at IS NULL")
		if s := strings.TrimSpace(q.Q); s != "" {
			pat := "%" + strings.ToLower(s) + "%"
			tx = tx.Where("LOWER(b.title) LIKE ? OR LOWER(b.author) LIKE ? OR LOWER(b.isbn) LIKE ?", pat, pat, pat)
		}
		switch q.Status {
		case "open":
			tx = tx.Where("ol.id IS NOT NULL")
		case "available":
			tx = tx.Where("b.available_copies > 0")
		case "overdue":
			tx = tx.Where("ol.due_at IS NOT NULL AND ol.due_at < NOW()")
		default:
			// all
		}
		return tx
	}

	var total int64
	if err := base().Distinct("b.id").Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []AdminBookRow
	if err := base().
		Select(`
			b.id, b.title, b.author, b.isbn, b.genre,
			b.total_copies, b.available_copies, b.created_at, b.updated_at,
			COUNT(ol.id) AS open_loans,
			COALESCE(BOOL_OR(ol.due_at IS NOT NULL AND ol.due_at < NOW()), FALSE) AS overdue
		`).
		Group("b.id").
		Order("b.created_at DESC").
		Offset(offset).
		Limit(q.Size).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	return &PagedAdminBooks{Total: total, Books: rows}, nil
}
