package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ZeoXel/SUNSTUDIO/internal/config"
	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
	"github.com/ZeoXel/SUNSTUDIO/internal/logger"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"
	"github.com/ZeoXel/SUNSTUDIO/internal/payment/alipay"
	"github.com/ZeoXel/SUNSTUDIO/internal/payment/wechatpay"
	"github.com/ZeoXel/SUNSTUDIO/internal/queue"
	"github.com/ZeoXel/SUNSTUDIO/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrPaymentInvalid              = errors.New("支付请求参数无效")
	ErrPaymentAmountInvalid        = errors.New("充值金额超出允许范围")
	ErrPaymentChannelNotConfigured = errors.New("支付渠道未启用")
	ErrPaymentGatewayRequestFailed = errors.New("支付网关请求失败")
	ErrPaymentNotificationInvalid  = errors.New("支付回调校验失败")
	ErrPaymentAmountMismatch       = errors.New("支付回调金额不一致")
	ErrPaymentUpdateFailed         = errors.New("支付订单更新失败")
	ErrOrderNotFound               = errors.New("充值订单不存在")
	ErrOrderAccessDenied           = errors.New("无权访问该订单")
	ErrUserNotFound                = errors.New("用户不存在")
)

// PaymentService 充值支付服务
type PaymentService struct {
	cfg          *config.Config
	orderRepo    *repository.GormPaymentOrderRepository
	ledgerRepo   *repository.GormBalanceLedgerRepository
	userRepo     *repository.GormUserRepository
	alipayClient *alipay.Client
	wechatClient *wechatpay.Client
	queueClient  *queue.Client
}

// NewPaymentService 创建充值支付服务。未启用的渠道客户端传 nil。
func NewPaymentService(cfg *config.Config, orderRepo *repository.GormPaymentOrderRepository, ledgerRepo *repository.GormBalanceLedgerRepository, userRepo *repository.GormUserRepository, alipayClient *alipay.Client, wechatClient *wechatpay.Client, queueClient *queue.Client) *PaymentService {
	return &PaymentService{
		cfg:          cfg,
		orderRepo:    orderRepo,
		ledgerRepo:   ledgerRepo,
		userRepo:     userRepo,
		alipayClient: alipayClient,
		wechatClient: wechatClient,
		queueClient:  queueClient,
	}
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// rechargeTier 充值档位对应的赠送积分
type rechargeTier struct {
	AmountCents int64
	Points      int64
}

// 充值档位表，档位外按 1 元 = 10 积分折算
var rechargeTiers = []rechargeTier{
	{AmountCents: 1000, Points: 100},
	{AmountCents: 5000, Points: 550},
	{AmountCents: 10000, Points: 1200},
	{AmountCents: 20000, Points: 2500},
	{AmountCents: 50000, Points: 6500},
}

// CalculatePoints 计算充值金额对应的积分
func CalculatePoints(amountCents int64) int64 {
	for _, tier := range rechargeTiers {
		if tier.AmountCents == amountCents {
			return tier.Points
		}
	}
	return amountCents / constants.ExchangeRate
}

// RechargeOption 充值档位展示项
type RechargeOption struct {
	AmountCents int64  `json:"amount"`
	AmountYuan  string `json:"amount_yuan"`
	Points      int64  `json:"points"`
}

// ListRechargeOptions 返回预设充值档位
func (s *PaymentService) ListRechargeOptions() []RechargeOption {
	options := make([]RechargeOption, 0, len(rechargeTiers))
	for _, tier := range rechargeTiers {
		options = append(options, RechargeOption{
			AmountCents: tier.AmountCents,
			AmountYuan:  models.FormatCentsToYuan(tier.AmountCents),
			Points:      tier.Points,
		})
	}
	return options
}

// GenerateOrderNo 生成充值订单号：PAY + 毫秒时间戳 + 6 位大写 base36 随机尾缀
func GenerateOrderNo() string {
	return fmt.Sprintf("PAY%d%s", time.Now().UnixMilli(), randBase36(6))
}

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randBase36(length int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(base36Alphabet[n.Int64()])
	}
	return b.String()
}

// CreateRechargeInput 创建充值订单输入
type CreateRechargeInput struct {
	UserID      uint
	AmountCents int64
	Description string
	ClientIP    string
	Context     context.Context
}

// CreateRechargeResult 创建充值订单结果
type CreateRechargeResult struct {
	Order    *models.PaymentOrder
	PayURL   string // 支付宝网关跳转链接
	FormHTML string // 支付宝自动提交表单
	QRCode   string // 微信 Native 二维码内容
}

func (s *PaymentService) validateCreateInput(input *CreateRechargeInput) error {
	if input.UserID == 0 {
		return ErrPaymentInvalid
	}
	if input.AmountCents < constants.MinRechargeAmountCents || input.AmountCents > constants.MaxRechargeAmountCents {
		return ErrPaymentAmountInvalid
	}
	if input.Context == nil {
		input.Context = context.Background()
	}
	return nil
}

// newPendingOrder 持久化待支付订单，订单号冲突时换号重试一次
func (s *PaymentService) newPendingOrder(input CreateRechargeInput, method string) (*models.PaymentOrder, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = fmt.Sprintf("账户充值 %s 元", models.FormatCentsToYuan(input.AmountCents))
	}
	order := &models.PaymentOrder{
		OrderNo:       GenerateOrderNo(),
		UserID:        input.UserID,
		Amount:        input.AmountCents,
		Points:        CalculatePoints(input.AmountCents),
		PaymentMethod: method,
		Status:        constants.OrderStatusPending,
		Description:   description,
	}
	if err := s.orderRepo.Create(order); err != nil {
		order.ID = 0
		order.OrderNo = GenerateOrderNo()
		if retryErr := s.orderRepo.Create(order); retryErr != nil {
			return nil, retryErr
		}
	}
	return order, nil
}

// scheduleOrderTasks 注册过期关单与延迟对账任务
func (s *PaymentService) scheduleOrderTasks(orderNo string, log *zap.SugaredLogger) {
	if s.queueClient == nil || !s.queueClient.Enabled() {
		return
	}
	expireAfter := time.Duration(s.expireMinutes()) * time.Minute
	if err := s.queueClient.EnqueuePaymentExpire(queue.PaymentExpirePayload{OrderNo: orderNo}, expireAfter); err != nil {
		log.Errorw("payment_expire_enqueue_failed", "error", err)
	}
	if err := s.queueClient.EnqueuePaymentReconcile(queue.PaymentReconcilePayload{OrderNo: orderNo}, constants.ReconcileDelaySeconds*time.Second); err != nil {
		log.Errorw("payment_reconcile_enqueue_failed", "error", err)
	}
}

func (s *PaymentService) expireMinutes() int {
	if s.cfg != nil && s.cfg.Payment.ExpireMinutes > 0 {
		return s.cfg.Payment.ExpireMinutes
	}
	return constants.OrderExpireMinutes
}

// CreateAlipayOrder 创建支付宝电脑网站充值订单
func (s *PaymentService) CreateAlipayOrder(input CreateRechargeInput) (*CreateRechargeResult, error) {
	if err := s.validateCreateInput(&input); err != nil {
		return nil, err
	}
	if s.alipayClient == nil {
		return nil, ErrPaymentChannelNotConfigured
	}

	order, err := s.newPendingOrder(input, constants.PaymentMethodAlipay)
	if err != nil {
		paymentLogger("user_id", input.UserID).Errorw("payment_order_create_failed", "error", err)
		return nil, ErrPaymentUpdateFailed
	}

	log := paymentLogger(
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"amount", order.Amount,
		"pay_type", order.PaymentMethod,
	)

	payment, err := s.alipayClient.CreatePagePayment(input.Context, alipay.CreateInput{
		OrderNo:        order.OrderNo,
		Amount:         models.FormatCentsToYuan(order.Amount),
		Subject:        order.Description,
		TimeoutExpress: fmt.Sprintf("%dm", s.expireMinutes()),
	})
	if err != nil {
		log.Errorw("alipay_create_payment_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayRequestFailed, err)
	}

	s.scheduleOrderTasks(order.OrderNo, log)
	log.Infow("payment_order_created", "points", order.Points)
	return &CreateRechargeResult{
		Order:    order,
		PayURL:   payment.PayURL,
		FormHTML: payment.FormHTML,
	}, nil
}

// CreateWechatOrder 创建微信 Native 扫码充值订单
func (s *PaymentService) CreateWechatOrder(input CreateRechargeInput) (*CreateRechargeResult, error) {
	if err := s.validateCreateInput(&input); err != nil {
		return nil, err
	}
	if s.wechatClient == nil {
		return nil, ErrPaymentChannelNotConfigured
	}

	order, err := s.newPendingOrder(input, constants.PaymentMethodWechat)
	if err != nil {
		paymentLogger("user_id", input.UserID).Errorw("payment_order_create_failed", "error", err)
		return nil, ErrPaymentUpdateFailed
	}

	log := paymentLogger(
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"amount", order.Amount,
		"pay_type", order.PaymentMethod,
	)

	payment, err := s.wechatClient.CreateNativePayment(input.Context, wechatpay.CreateInput{
		OrderNo:     order.OrderNo,
		AmountCents: order.Amount,
		Description: order.Description,
		ClientIP:    input.ClientIP,
	})
	if err != nil {
		log.Errorw("wechat_create_payment_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayRequestFailed, err)
	}

	s.scheduleOrderTasks(order.OrderNo, log)
	log.Infow("payment_order_created", "points", order.Points)
	return &CreateRechargeResult{
		Order:  order,
		QRCode: payment.QRCode,
	}, nil
}
