package router

import (
	"fmt"
	"strings"

	"github.com/ZeoXel/SUNSTUDIO/internal/cache"
	"github.com/ZeoXel/SUNSTUDIO/internal/config"
	publichandlers "github.com/ZeoXel/SUNSTUDIO/internal/http/handlers/public"
	"github.com/ZeoXel/SUNSTUDIO/internal/logger"
	"github.com/ZeoXel/SUNSTUDIO/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sun"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		Message:       "登录尝试过于频繁",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	basePath := strings.TrimSpace(cfg.Server.BasePath)
	if basePath == "" {
		basePath = "/api"
	}
	api := r.Group(basePath)
	{
		// 用户认证接口
		auth := api.Group("/auth")
		{
			auth.POST("/register", publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}

		// 支付网关回调（无需鉴权）
		payment := api.Group("/payment")
		{
			payment.POST("/alipay/notify", publicHandler.HandleAlipayNotify)
			payment.GET("/alipay/notify", publicHandler.HandleAlipayReturn)
			payment.POST("/wechat/notify", publicHandler.HandleWechatNotify)
			payment.GET("/recharge-options", publicHandler.ListRechargeOptions)
		}

		// 用户接口（需鉴权）
		user := api.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.Profile)
			user.POST("/auth/logout", publicHandler.Logout)
			user.POST("/payment/alipay", publicHandler.CreateAlipayPayment)
			user.POST("/payment/wechat", publicHandler.CreateWechatPayment)
			user.GET("/payment/order-status/:order_no", publicHandler.GetOrderStatus)
			user.GET("/payment/orders", publicHandler.ListOrders)
		}
	}

	return r
}
