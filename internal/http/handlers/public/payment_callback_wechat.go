package public

import (
	"io"
	"net/http"
	"strings"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"

	"github.com/gin-gonic/gin"
)

// HandleWechatNotify 处理微信支付回调。
// 应答为 JSON 协议：成功 {"code":"SUCCESS"}，失败 {"code":"FAIL"} 触发重试。
func (h *Handler) HandleWechatNotify(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnw("wechat_notify_body_read_failed", "error", err)
		respondWechatNotify(c, false)
		return
	}

	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) == 0 {
			continue
		}
		headers[key] = values[0]
	}

	log.Infow("wechat_notify_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"wechatpay_serial", strings.TrimSpace(c.GetHeader("Wechatpay-Serial")),
	)

	order, err := h.PaymentService.HandleWechatNotification(c.Request.Context(), headers, body)
	if err != nil {
		log.Warnw("wechat_notify_handle_failed", "error", err)
		respondWechatNotify(c, false)
		return
	}
	if order == nil {
		// 非支付事件：已验签，确认应答终止重试
		log.Infow("wechat_notify_event_acked")
		respondWechatNotify(c, true)
		return
	}
	log.Infow("wechat_notify_processed",
		"order_no", order.OrderNo,
		"status", order.Status,
	)
	respondWechatNotify(c, true)
}

func respondWechatNotify(c *gin.Context, ok bool) {
	if ok {
		c.JSON(http.StatusOK, gin.H{
			"code":    constants.WechatCallbackCodeSuccess,
			"message": "成功",
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    constants.WechatCallbackCodeFail,
		"message": "失败",
	})
}
