package main

import (
	"fmt"
	"time"

	"github.com/ZeoXel/SUNSTUDIO/internal/config"
	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
	"github.com/ZeoXel/SUNSTUDIO/internal/logger"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"
	"github.com/ZeoXel/SUNSTUDIO/internal/service"

	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	email       string
	password    string
	displayName string
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库连接失败: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	users := []seedUser{
		{email: "alice@example.com", password: "alice-demo-123", displayName: "Alice"},
		{email: "bob@example.com", password: "bob-demo-123", displayName: "Bob"},
	}

	for _, su := range users {
		user, err := ensureUser(su)
		if err != nil {
			stdLog.Printf("创建用户 %s 失败: %v", su.email, err)
			continue
		}
		stdLog.Printf("用户就绪: %s (id=%d)", user.Email, user.ID)

		if err := ensureRechargeHistory(user); err != nil {
			stdLog.Printf("初始化 %s 的充值记录失败: %v", user.Email, err)
		}
	}

	stdLog.Printf("种子数据初始化完成")
}

func ensureUser(su seedUser) (*models.User, error) {
	var existing models.User
	err := models.DB.Where("email = ?", su.email).First(&existing).Error
	if err == nil {
		return &existing, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(su.password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Email:        su.email,
		PasswordHash: string(hash),
		DisplayName:  su.displayName,
		Status:       constants.UserStatusActive,
	}
	if err := models.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ensureRechargeHistory 为演示用户补一条已入账订单和一条待支付订单
func ensureRechargeHistory(user *models.User) error {
	var count int64
	if err := models.DB.Model(&models.PaymentOrder{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	paidAt := time.Now().Add(-24 * time.Hour)
	paidOrder := models.PaymentOrder{
		OrderNo:       service.GenerateOrderNo(),
		UserID:        user.ID,
		Amount:        10000,
		Points:        service.CalculatePoints(10000),
		PaymentMethod: constants.PaymentMethodAlipay,
		Status:        constants.OrderStatusPaid,
		Description:   "账户充值",
		TransactionID: fmt.Sprintf("seed%d", paidAt.UnixMilli()),
		CreatedAt:     paidAt.Add(-2 * time.Minute),
		PaidAt:        &paidAt,
	}
	if err := models.DB.Create(&paidOrder).Error; err != nil {
		return err
	}

	entry := models.BalanceLedgerEntry{
		UserID:        user.ID,
		OrderNo:       paidOrder.OrderNo,
		EntryType:     constants.LedgerEntryTypeRecharge,
		Amount:        paidOrder.Amount,
		Points:        paidOrder.Points,
		BalanceBefore: 0,
		BalanceAfter:  paidOrder.Amount,
		PointsBefore:  0,
		PointsAfter:   paidOrder.Points,
		Remark:        "种子数据",
		CreatedAt:     paidAt,
	}
	if err := models.DB.Create(&entry).Error; err != nil {
		return err
	}
	if err := models.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"balance": paidOrder.Amount,
			"points":  paidOrder.Points,
		}).Error; err != nil {
		return err
	}

	pendingOrder := models.PaymentOrder{
		OrderNo:       service.GenerateOrderNo(),
		UserID:        user.ID,
		Amount:        5000,
		Points:        service.CalculatePoints(5000),
		PaymentMethod: constants.PaymentMethodWechat,
		Status:        constants.OrderStatusPending,
		Description:   "账户充值",
	}
	return models.DB.Create(&pendingOrder).Error
}
