package provider

import (
	"context"

	"github.com/ZeoXel/SUNSTUDIO/internal/cache"
	"github.com/ZeoXel/SUNSTUDIO/internal/config"
	"github.com/ZeoXel/SUNSTUDIO/internal/logger"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"
	"github.com/ZeoXel/SUNSTUDIO/internal/payment/alipay"
	"github.com/ZeoXel/SUNSTUDIO/internal/payment/wechatpay"
	"github.com/ZeoXel/SUNSTUDIO/internal/queue"
	"github.com/ZeoXel/SUNSTUDIO/internal/repository"
	"github.com/ZeoXel/SUNSTUDIO/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	UserRepo          *repository.GormUserRepository
	PaymentOrderRepo  *repository.GormPaymentOrderRepository
	BalanceLedgerRepo *repository.GormBalanceLedgerRepository

	// Payment gateway clients
	AlipayClient *alipay.Client
	WechatClient *wechatpay.Client

	// Services
	AuthService    *service.AuthService
	PaymentService *service.PaymentService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initPaymentClients()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.PaymentOrderRepo = repository.NewPaymentOrderRepository(db)
	c.BalanceLedgerRepo = repository.NewBalanceLedgerRepository(db)
}

// initPaymentClients 按配置初始化支付渠道客户端。
// 配置不完整的渠道保持禁用，不阻塞服务启动。
func (c *Container) initPaymentClients() {
	if c.Config.Payment.Alipay.Enabled {
		client, err := alipay.NewClient(alipay.Config{
			AppID:           c.Config.Payment.Alipay.AppID,
			PrivateKey:      c.Config.Payment.Alipay.PrivateKey,
			AlipayPublicKey: c.Config.Payment.Alipay.AlipayPublicKey,
			GatewayURL:      c.Config.Payment.Alipay.GatewayURL,
			NotifyURL:       c.Config.Payment.Alipay.NotifyURL,
			ReturnURL:       c.Config.Payment.Alipay.ReturnURL,
			SignType:        c.Config.Payment.Alipay.SignType,
		})
		if err != nil {
			logger.Errorw("provider_init_alipay_failed", "error", err)
		} else {
			c.AlipayClient = client
			logger.Infow("provider_alipay_enabled")
		}
	}

	if c.Config.Payment.Wechat.Enabled {
		client, err := wechatpay.NewClient(context.Background(), wechatpay.Config{
			AppID:              c.Config.Payment.Wechat.AppID,
			MerchantID:         c.Config.Payment.Wechat.MchID,
			MerchantSerialNo:   c.Config.Payment.Wechat.MerchantSerialNo,
			MerchantPrivateKey: c.Config.Payment.Wechat.MerchantPrivateKey,
			APIV3Key:           c.Config.Payment.Wechat.APIV3Key,
			NotifyURL:          c.Config.Payment.Wechat.NotifyURL,
		})
		if err != nil {
			logger.Errorw("provider_init_wechat_failed", "error", err)
		} else {
			c.WechatClient = client
			logger.Infow("provider_wechat_enabled")
		}
	}
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.UserRepo)
	c.PaymentService = service.NewPaymentService(
		c.Config,
		c.PaymentOrderRepo,
		c.BalanceLedgerRepo,
		c.UserRepo,
		c.AlipayClient,
		c.WechatClient,
		c.QueueClient,
	)
}
