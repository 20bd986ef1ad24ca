package public

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
	"github.com/ZeoXel/SUNSTUDIO/internal/service"

	"github.com/gin-gonic/gin"
)

// HandleAlipayNotify 处理支付宝异步通知。
// 应答为纯文本协议：处理成功回 success 终止重试，否则回 fail。
func (h *Handler) HandleAlipayNotify(c *gin.Context) {
	log := requestLog(c)
	if err := c.Request.ParseForm(); err != nil {
		log.Warnw("alipay_notify_form_parse_failed", "error", err)
		c.String(http.StatusOK, constants.AlipayCallbackFail)
		return
	}
	form := url.Values{}
	for key, values := range c.Request.PostForm {
		form[key] = values
	}
	for key, values := range c.Request.URL.Query() {
		if _, exists := form[key]; !exists {
			form[key] = values
		}
	}

	log.Infow("alipay_notify_received",
		"client_ip", c.ClientIP(),
		"out_trade_no", strings.TrimSpace(form.Get("out_trade_no")),
		"trade_no", strings.TrimSpace(form.Get("trade_no")),
		"trade_status", strings.TrimSpace(form.Get("trade_status")),
	)

	order, err := h.PaymentService.HandleAlipayNotification(form)
	if err != nil {
		log.Warnw("alipay_notify_handle_failed", "error", err)
		c.String(http.StatusOK, constants.AlipayCallbackFail)
		return
	}
	log.Infow("alipay_notify_processed",
		"order_no", order.OrderNo,
		"status", order.Status,
	)
	c.String(http.StatusOK, constants.AlipayCallbackSuccess)
}

// HandleAlipayReturn 处理支付宝同步跳转。
// 验签后把用户重定向到结果页；通知处理失败也跳转，状态以轮询为准。
func (h *Handler) HandleAlipayReturn(c *gin.Context) {
	log := requestLog(c)
	form := url.Values{}
	for key, values := range c.Request.URL.Query() {
		form[key] = values
	}
	orderNo := strings.TrimSpace(form.Get("out_trade_no"))

	if _, err := h.PaymentService.HandleAlipayNotification(form); err != nil {
		if !errors.Is(err, service.ErrPaymentNotificationInvalid) {
			log.Warnw("alipay_return_handle_failed", "order_no", orderNo, "error", err)
		} else {
			log.Warnw("alipay_return_verify_failed", "order_no", orderNo, "error", err)
		}
	}

	resultURL := strings.TrimSpace(h.Config.Payment.ResultURL)
	if resultURL == "" {
		resultURL = "/pay-result"
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("%s?orderNo=%s", resultURL, url.QueryEscape(orderNo)))
}
