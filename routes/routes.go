package routes

import (
	"time"

	"github.com/Mohammedr4/library-management-system/app"
	"github.com/Mohammedr4/library-management-system/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	uc := controllers.GetUserController(s.Repo, s.AppSessions(), a.Config)
	bookCtl := controllers.NewBookController(s)
	loanCtl := controllers.NewLoanController(s)
	auditCtl := controllers.NewAuditController(s)

	// 复用的中间件
	authMW := app.AuthRequired(s.AppSessions(), s.Repo)
	staffMW := app.StaffOnly()
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, 5*time.Minute)

	// ------------------------------
	// 认证（公开+受保护）
	// ------------------------------
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", s.Register)
		auth.POST("/login", s.Login)
	}
	authed := auth.Group("", authMW, seenMW)
	{
		authed.GET("/whoami", s.WhoAmI)
		authed.POST("/logout", s.Logout)
	}

	// ------------------------------
	// 书目：浏览公开，写操作仅 staff
	// ------------------------------
	books := r.Group("/api/books")
	{
		books.GET("", bookCtl.ListBooks)
		books.GET("/:id", bookCtl.GetBook)
	}
	booksStaff := books.Group("", authMW, staffMW)
	{
		booksStaff.POST("", bookCtl.CreateBook)
		booksStaff.PUT("/:id", bookCtl.UpdateBook)
		booksStaff.DELETE("/:id", bookCtl.DeleteBook)
	}

	// ------------------------------
	// 借还：任何登录用户
	// ------------------------------
	lend := r.Group("/api/books", authMW, seenMW)
	{
		lend.POST("/:id/borrow", loanCtl.Borrow)
		lend.POST("/:id/return", loanCtl.Return)
	}
	loans := r.Group("/api/loans", authMW, seenMW)
	{
		loans.GET("", loanCtl.ListLoans) // ?status=open|returned&userId=&bookId=（非 staff 固定看自己）
		loans.GET("/mine", loanCtl.ListMyLoans)
	}

	// ------------------------------
	// 借阅台 + 用户管理（仅 staff）
	// ------------------------------
	admin := r.Group("/api/admin", authMW, staffMW)
	{
		admin.GET("/books", bookCtl.ListBooksAdmin) // ?q=&status=&page=&size=
		admin.POST("/loans", loanCtl.AdminBorrow)
		admin.POST("/loans/return", loanCtl.AdminReturn)
		admin.DELETE("/loans/:loanId", loanCtl.DeleteLoan)
		admin.GET("/audit", auditCtl.ListAuditLog) // ?limit=
	}

	users := r.Group("/api/users", authMW)
	{
		users.GET("/:id", uc.GetUser) // staff 或本人
	}
	usersStaff := users.Group("", staffMW)
	{
		usersStaff.GET("", uc.ListUsers) // ?q=&page=&size=
		usersStaff.PUT("/:id/staff", uc.SetStaff)
		usersStaff.DELETE("/:id", uc.DeleteUser)
	}
}
