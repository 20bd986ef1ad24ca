package public

import (
	"strconv"
	"strings"

	handlershared "github.com/ZeoXel/SUNSTUDIO/internal/http/handlers/shared"
	"github.com/ZeoXel/SUNSTUDIO/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetOrderStatus 查询充值订单状态（轮询入口）
func (h *Handler) GetOrderStatus(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "订单号不能为空", nil)
		return
	}

	data, err := h.PaymentService.GetOrderStatus(c.Request.Context(), uid, orderNo)
	if err != nil {
		respondOrderQueryError(c, err)
		return
	}
	response.Success(c, data)
}

// ListOrders 分页获取充值订单
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	result, err := h.PaymentService.ListOrders(uid, pageSize, (page-1)*pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "查询充值订单失败", err)
		return
	}

	totalPage := result.Total / int64(pageSize)
	if result.Total%int64(pageSize) > 0 {
		totalPage++
	}
	response.SuccessWithPage(c, result.Items, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     result.Total,
		TotalPage: totalPage,
	})
}
