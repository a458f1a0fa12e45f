// controllers/book_controller.go
package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Mohammedr4/library-management-system/app"
	"github.com/Mohammedr4/library-management-system/db"

	"github.com/gin-gonic/gin"
)

type BookController struct{ *Srv }

func NewBookController(s *Srv) *BookController { return &BookController{Srv: s} }

// 管理员建书目
func (bc *BookController) CreateBook(c *gin.Context) {
	var in struct {
		Title         string     `json:"title" binding:"required"`
		Author        string     `json:"author" binding:"required"`
		ISBN          string     `json:"isbn" binding:"required"`
		PublishedDate *time.Time `json:"publishedDate"`
		Genre         string     `json:"genre"`
		TotalCopies   int        `json:"totalCopies"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	b, err := bc.Repo.CreateBook(c.Request.Context(), db.CreateBookInput{
		Title:         in.Title,
		Author:        in.Author,
		ISBN:          in.ISBN,
		PublishedDate: in.PublishedDate,
		Genre:         in.Genre,
		TotalCopies:   in.TotalCopies,
	})
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, b)
}

// 列表（含可借副本数），未登录也可浏览
func (bc *BookController) ListBooks(c *gin.Context) {
	books, err := bc.Repo.ListBooks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"books": books})
}

func (bc *BookController) GetBook(c *gin.Context) {
	b, err := bc.Repo.FindBookByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, b)
}

// 管理员纠错：改书目字段；改 total_copies 时库存按在借数重新推导
func (bc *BookController) UpdateBook(c *gin.Context) {
	var in struct {
		Title         *string    `json:"title"`
		Author        *string    `json:"author"`
		ISBN          *string    `json:"isbn"`
		PublishedDate *time.Time `json:"publishedDate"`
		Genre         *string    `json:"genre"`
		TotalCopies   *int       `json:"totalCopies"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if in.TotalCopies != nil && *in.TotalCopies <= 0 {
		c.JSON(http.StatusBadRequest, app.H{"error": "totalCopies must be positive"})
		return
	}
	b, err := bc.Repo.UpdateBook(c.Request.Context(), c.Param("id"), currentUserID(c), db.UpdateBookInput{
		Title:         in.Title,
		Author:        in.Author,
		ISBN:          in.ISBN,
		PublishedDate: in.PublishedDate,
		Genre:         in.Genre,
		TotalCopies:   in.TotalCopies,
	})
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (bc *BookController) DeleteBook(c *gin.Context) {
	if err := bc.Repo.DeleteBook(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// 管理端：书目 + 在借数 + 逾期
func (bc *BookController) ListBooksAdmin(c *gin.Context) {
	q := db.AdminBooksQuery{
		Q:      c.Query("q"),
		Status: c.Query("status"), // "", "open", "available", "overdue"
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := bc.Repo.ListBooksWithOpenLoans(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "total": res.Total, "books": res.Books})
}
