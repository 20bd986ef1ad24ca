package models

import (
	"strings"

	"github.com/ZeoXel/SUNSTUDIO/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// InitDemoUser 初始化开发环境演示用户（已存在则跳过）
func InitDemoUser(email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = "demo@example.com"
	}
	if password == "" {
		password = "demo123456"
	}

	var count int64
	DB.Model(&User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  "Demo",
		Status:       "active",
	}
	if err := DB.Create(&user).Error; err != nil {
		return err
	}

	if password == "demo123456" {
		logger.Warnw("demo_user_created_with_default_password", "email", email)
	} else {
		logger.Infow("demo_user_created", "email", email)
	}
	return nil
}
