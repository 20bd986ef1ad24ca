package constants

// 订单状态常量
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

// 支付方式常量
const (
	PaymentMethodAlipay = "alipay"
	PaymentMethodWechat = "wechat"
)

// 账变类型常量
const (
	LedgerEntryTypeRecharge = "recharge"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 支付宝异步通知应答常量
const (
	AlipayCallbackSuccess = "success"
	AlipayCallbackFail    = "fail"
)

// 微信支付异步通知应答常量
const (
	WechatCallbackCodeSuccess = "SUCCESS"
	WechatCallbackCodeFail    = "FAIL"
)

// 充值金额与积分换算常量
const (
	// ExchangeRate 1 元兑换积分数
	ExchangeRate = 10
	// MinRechargeAmountCents 单笔最低充值金额（分）
	MinRechargeAmountCents = 100
	// MaxRechargeAmountCents 单笔最高充值金额（分）
	MaxRechargeAmountCents = 1000000
)

// 订单超时与对账常量
const (
	// OrderExpireMinutes 待支付订单超时时间（分钟）
	OrderExpireMinutes = 15
	// PollIntervalSeconds 前端轮询间隔（秒）
	PollIntervalSeconds = 2
	// MaxPollCount 前端轮询次数上限
	MaxPollCount = 150
	// ReconcileDelaySeconds 服务端主动查询兜底延迟（秒）
	ReconcileDelaySeconds = 30
)

// AmountToleranceCents 通知金额与订单金额允许的最大偏差（分）
const AmountToleranceCents = 1

// 异步任务常量
const (
	TaskPaymentExpire    = "payment:expire"
	TaskPaymentReconcile = "payment:reconcile"
	QueueDefault         = "default"
	QueueCritical        = "critical"
)
