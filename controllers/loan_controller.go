// controllers/loan_controller.go
package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Mohammedr4/library-management-system/app"
	"github.com/Mohammedr4/library-management-system/db"

	"github.com/gin-gonic/gin"
)

type LoanController struct{ *Srv }

func NewLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

func currentUserID(c *gin.Context) string {
	v, _ := c.Get("userID")
	uid, _ := v.(string)
	return uid
}

func isStaff(c *gin.Context) bool {
	v, _ := c.Get("isStaff")
	staff, _ := v.(bool)
	return staff
}

// statusForError 领域错误 → HTTP 状态码。
// 没副本/重复借/重复还是调用方问题，400；对象不存在 404；其余内部错误。
func statusForError(err error) int {
	switch {
	case errors.Is(err, db.ErrUnavailable),
		errors.Is(err, db.ErrLoanAlreadyOpen),
		errors.Is(err, db.ErrAlreadyReturned),
		errors.Is(err, db.ErrISBNTaken),
		errors.Is(err, db.ErrEmailTaken):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrBookNotFound),
		errors.Is(err, db.ErrNoOpenLoan),
		errors.Is(err, db.ErrLoanNotFound),
		errors.Is(err, db.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// 借书
func (lc *LoanController) Borrow(c *gin.Context) {
	bookID := c.Param("id")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing book id"})
		return
	}
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}

	var in struct {
		DueAt *time.Time `json:"dueAt"`
		Note  string     `json:"note"`
	}
	_ = c.ShouldBindJSON(&in)

	loan, err := lc.Repo.BorrowBook(c.Request.Context(), userID, bookID, in.DueAt, in.Note)
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, loan)
}

// 还书：按 (当前用户, 书) 找未归还记录
func (lc *LoanController) Return(c *gin.Context) {
	bookID := c.Param("id")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing book id"})
		return
	}
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}

	loan, err := lc.Repo.ReturnBook(c.Request.Context(), userID, bookID)
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loan)
}

// 借还记录：staff 看全部，普通用户只能看自己的
func (lc *LoanController) ListLoans(c *gin.Context) {
	f := db.LoansFilter{
		UserID: c.Query("userId"),
		BookID: c.Query("bookId"),
		Status: c.Query("status"), // open|returned
	}
	if !isStaff(c) {
		f.UserID = currentUserID(c)
	}
	ls, err := lc.Repo.ListLoans(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": ls})
}

// 普通用户：查看自己手上正在借着的书；?all=true 连历史一起
func (lc *LoanController) ListMyLoans(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	f := db.LoansFilter{UserID: userID, Status: "open"}
	if c.Query("all") == "true" {
		f.Status = ""
	}
	ls, err := lc.Repo.ListLoans(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": ls})
}

// 管理员删借阅记录（未归还的会退回库存）
func (lc *LoanController) DeleteLoan(c *gin.Context) {
	if err := lc.Repo.DeleteLoan(c.Request.Context(), c.Param("loanId"), currentUserID(c)); err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

type AdminBorrowReq struct {
	BookID string     `json:"bookId" binding:"required"`
	Email  string     `json:"email" binding:"required,email"`
	DueAt  *time.Time `json:"dueAt,omitempty"`
	Note   string     `json:"note,omitempty"`
}

// 借阅台：管理员替读者办借书
func (lc *LoanController) AdminBorrow(c *gin.Context) {
	var req AdminBorrowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid request: " + err.Error()})
		return
	}

	// 先用邮箱查读者
	user, err := lc.Repo.FindUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}

	loan, err := lc.Repo.BorrowBook(c.Request.Context(), user.ID, req.BookID, req.DueAt, req.Note)
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, loan)
}

type AdminReturnReq struct {
	BookID string `json:"bookId" binding:"required"`
	Email  string `json:"email" binding:"required,email"`
	Note   string `json:"note,omitempty"`
}

// 借阅台：管理员替读者办还书，记经手人
func (lc *LoanController) AdminReturn(c *gin.Context) {
	var req AdminReturnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid request: " + err.Error()})
		return
	}

	user, err := lc.Repo.FindUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}

	v, _ := c.Get("email")
	actorEmail, _ := v.(string)

	loan, err := lc.Repo.ForceReturn(c.Request.Context(), user.ID, req.BookID, currentUserID(c), actorEmail, req.Note)
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loan)
}
