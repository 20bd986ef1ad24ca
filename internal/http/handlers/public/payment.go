package public

import (
	"github.com/ZeoXel/SUNSTUDIO/internal/http/response"
	"github.com/ZeoXel/SUNSTUDIO/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateRechargeRequest 创建充值订单请求，金额单位为分
type CreateRechargeRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

// CreateAlipayPayment 创建支付宝充值订单
func (h *Handler) CreateAlipayPayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreateRechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	result, err := h.PaymentService.CreateAlipayOrder(service.CreateRechargeInput{
		UserID:      uid,
		AmountCents: req.Amount,
		Description: req.Description,
		ClientIP:    c.ClientIP(),
		Context:     c.Request.Context(),
	})
	if err != nil {
		respondPaymentCreateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no":     result.Order.OrderNo,
		"amount":       result.Order.Amount,
		"points":       result.Order.Points,
		"pay_type":     result.Order.PaymentMethod,
		"pay_url":      result.PayURL,
		"payment_form": result.FormHTML,
	})
}

// CreateWechatPayment 创建微信扫码充值订单
func (h *Handler) CreateWechatPayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreateRechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	result, err := h.PaymentService.CreateWechatOrder(service.CreateRechargeInput{
		UserID:      uid,
		AmountCents: req.Amount,
		Description: req.Description,
		ClientIP:    c.ClientIP(),
		Context:     c.Request.Context(),
	})
	if err != nil {
		respondPaymentCreateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no": result.Order.OrderNo,
		"amount":   result.Order.Amount,
		"points":   result.Order.Points,
		"pay_type": result.Order.PaymentMethod,
		"qr_code":  result.QRCode,
	})
}

// ListRechargeOptions 获取预设充值档位
func (h *Handler) ListRechargeOptions(c *gin.Context) {
	response.Success(c, h.PaymentService.ListRechargeOptions())
}
