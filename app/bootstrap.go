// app/bootstrap.go
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"

	"github.com/Mohammedr4/library-management-system/db"
)

// BootstrapFirstStaff 没有任何 staff 账号时，用环境变量建第一个。
// 没配 BOOTSTRAP_PASSWORD 就生成一个随机密码并打到日志。
func BootstrapFirstStaff(ctx context.Context, cfg Config, repo *db.Repo) {
	if cfg.BootstrapEmail == "" {
		return
	}
	n, err := repo.CountStaff(ctx)
	if err != nil {
		log.Printf("bootstrap: count staff: %v", err)
		return
	}
	if n > 0 {
		return // 已经有管理员，跳过
	}

	pwd := cfg.BootstrapPassword
	generated := false
	if pwd == "" {
		buf := make([]byte, 12)
		rand.Read(buf)
		pwd = hex.EncodeToString(buf)
		generated = true
	}

	u, err := repo.CreateUser(ctx, db.CreateUserInput{
		Email:    cfg.BootstrapEmail,
		Password: pwd,
		IsStaff:  true,
	})
	if err != nil {
		log.Printf("bootstrap staff failed: %v", err)
		return
	}
	log.Printf("[BOOTSTRAP] No staff found, created staff account %s (%s)", u.Email, u.ID)
	if generated {
		log.Printf("[BOOTSTRAP] Generated password: %s — change it after first login", pwd)
	}
}
