package controllers

import (
	"net/http"
	"strconv"

	"github.com/Mohammedr4/library-management-system/app"
	"github.com/Mohammedr4/library-management-system/db"
	"github.com/Mohammedr4/library-management-system/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserController struct {
	repo    *db.Repo
	appSess *session.AppSessionStore
	cfg     app.Config
}

func GetUserController(repo *db.Repo, appSess *session.AppSessionStore, cfg app.Config) *UserController {
	return &UserController{repo: repo, appSess: appSess, cfg: cfg}
}

// GET /api/users?q=alice&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	q := c.Query("q")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := uc.repo.ListUsers(c.Request.Context(), q, page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, app.H{
		"total": res.Total,
		"users": res.Users,
	})
}

// GET /api/users/:id — staff 任意查，普通用户只能查自己
func (uc *UserController) GetUser(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid uuid"})
		return
	}
	if !isStaff(c) && id != currentUserID(c) {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}
	user, err := uc.repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, app.H{
		"user": user,
	})
}

// PUT /api/users/:id/staff — 提升/撤销 staff
func (uc *UserController) SetStaff(c *gin.Context) {
	id := c.Param("id")
	var in struct {
		IsStaff *bool `json:"isStaff" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	// 不允许撤自己的权限，避免锁死
	if id == currentUserID(c) && !*in.IsStaff {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot revoke your own staff role"})
		return
	}
	if _, err := uc.repo.FindUserByID(c.Request.Context(), id); err != nil {
		c.JSON(statusForError(err), app.H{"error": err.Error()})
		return
	}
	if err := uc.repo.SetUserStaff(c.Request.Context(), id, *in.IsStaff); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// DELETE /api/users/:id
func (uc *UserController) DeleteUser(c *gin.Context) {
	id := c.Param("id")

	// 不允许删除自己，避免锁死
	if id == currentUserID(c) {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot delete yourself"})
		return
	}

	target, err := uc.repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, app.H{"error": "user not found"})
		return
	}
	if target.IsStaff {
		c.JSON(http.StatusForbidden, app.H{"error": "cannot delete a staff account"})
		return
	}

	// 真正删除（未归还借阅的库存会退回）
	if err := uc.repo.DeleteUserByID(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	// 撤销该用户的所有登录会话
	_ = uc.appSess.RevokeAllForUser(c.Request.Context(), id)
	c.JSON(http.StatusOK, app.H{"ok": true})
}
