package queue

import (
	"encoding/json"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentExpire 订单超时关闭任务
	TaskPaymentExpire = constants.TaskPaymentExpire
	// TaskPaymentReconcile 订单主动查询对账任务
	TaskPaymentReconcile = constants.TaskPaymentReconcile
)

// PaymentExpirePayload 订单超时关闭任务载荷
type PaymentExpirePayload struct {
	OrderNo string `json:"order_no"`
}

// PaymentReconcilePayload 订单主动查询对账任务载荷
type PaymentReconcilePayload struct {
	OrderNo string `json:"order_no"`
}

// NewPaymentExpireTask 创建订单超时关闭任务
func NewPaymentExpireTask(payload PaymentExpirePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentExpire, body), nil
}

// NewPaymentReconcileTask 创建订单对账任务
func NewPaymentReconcileTask(payload PaymentReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentReconcile, body), nil
}
