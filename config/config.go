package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv 读取 .env；生产环境靠真实环境变量，缺文件不算错
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		if os.Getenv("DB_HOST") == "" {
			log.Println("no .env file found, relying on process environment")
		}
	}
}
