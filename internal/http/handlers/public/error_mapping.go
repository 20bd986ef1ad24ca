package public

import (
	"errors"

	"github.com/ZeoXel/SUNSTUDIO/internal/http/response"
	"github.com/ZeoXel/SUNSTUDIO/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var paymentCreateErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentInvalid, code: response.CodeBadRequest, msg: "支付请求参数无效"},
	{target: service.ErrPaymentAmountInvalid, code: response.CodeBadRequest, msg: "充值金额超出允许范围"},
	{target: service.ErrPaymentChannelNotConfigured, code: response.CodeUnavailable, msg: "支付渠道未启用"},
	{target: service.ErrPaymentGatewayRequestFailed, code: response.CodeInternal, msg: "支付网关请求失败"},
}

var orderQueryErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentInvalid, code: response.CodeBadRequest, msg: "请求参数无效"},
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "充值订单不存在"},
	{target: service.ErrOrderAccessDenied, code: response.CodeForbidden, msg: "无权访问该订单"},
}

var authErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidEmail, code: response.CodeBadRequest, msg: "邮箱格式无效"},
	{target: service.ErrInvalidPassword, code: response.CodeBadRequest, msg: "密码长度需在 8-64 位之间"},
	{target: service.ErrEmailExists, code: response.CodeBadRequest, msg: "邮箱已被注册"},
	{target: service.ErrInvalidCredentials, code: response.CodeUnauthorized, msg: "邮箱或密码错误"},
	{target: service.ErrUserDisabled, code: response.CodeForbidden, msg: "账号已被禁用"},
}

func respondPaymentCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentCreateErrorRules, response.CodeInternal, "创建充值订单失败")
}

func respondOrderQueryError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderQueryErrorRules, response.CodeInternal, "查询充值订单失败")
}

func respondAuthError(c *gin.Context, err error) {
	respondWithMappedError(c, err, authErrorRules, response.CodeInternal, "认证请求失败")
}
