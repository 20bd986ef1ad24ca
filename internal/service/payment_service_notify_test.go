package service

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
)

// signAlipayNotifyForm 模拟支付宝平台对回调表单签名（sign/sign_type 不参与签名）
func signAlipayNotifyForm(t *testing.T, key *rsa.PrivateKey, form url.Values) {
	t.Helper()
	keys := make([]string, 0, len(form))
	for k := range form {
		if strings.EqualFold(k, "sign") || strings.EqualFold(k, "sign_type") {
			continue
		}
		if form.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+form.Get(k))
	}
	digest := sha256.Sum256([]byte(strings.Join(parts, "&")))
	sign, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign notify form failed: %v", err)
	}
	form.Set("sign", base64.StdEncoding.EncodeToString(sign))
}

func buildAlipayNotifyForm(orderNo, tradeNo, tradeStatus, totalAmount string) url.Values {
	return url.Values{
		"notify_id":    {"notify-test-1"},
		"notify_type":  {"trade_status_sync"},
		"out_trade_no": {orderNo},
		"trade_no":     {tradeNo},
		"trade_status": {tradeStatus},
		"total_amount": {totalAmount},
		"sign_type":    {"RSA2"},
	}
}

func TestHandleAlipayNotificationCreditsOrder(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "https://openapi.alipay.com/gateway.do")
	user := fixture.createUser(t, "notify@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000010NTF001", 10000)

	form := buildAlipayNotifyForm(order.OrderNo, "2026082922001400777", "TRADE_SUCCESS", "100.00")
	signAlipayNotifyForm(t, fixture.userKey, form)

	got, err := fixture.svc.HandleAlipayNotification(form)
	if err != nil {
		t.Fatalf("handle notification failed: %v", err)
	}
	if got == nil || got.OrderNo != order.OrderNo {
		t.Fatalf("unexpected returned order: %+v", got)
	}

	stored, _ := fixture.orderRepo.GetByOrderNo(order.OrderNo)
	if stored.Status != constants.OrderStatusPaid {
		t.Fatalf("expected paid status, got %s", stored.Status)
	}
	if stored.TransactionID != "2026082922001400777" {
		t.Fatalf("unexpected transaction id: %s", stored.TransactionID)
	}
	updated, _ := fixture.userRepo.GetByID(user.ID)
	if updated.Balance != 10000 || updated.Points != 1200 {
		t.Fatalf("expected credit, got balance %d points %d", updated.Balance, updated.Points)
	}
}

func TestHandleAlipayNotificationIdempotent(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "https://openapi.alipay.com/gateway.do")
	user := fixture.createUser(t, "notify2@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000011NTF002", 5000)

	form := buildAlipayNotifyForm(order.OrderNo, "tx-dup", "TRADE_SUCCESS", "50.00")
	signAlipayNotifyForm(t, fixture.userKey, form)

	if _, err := fixture.svc.HandleAlipayNotification(form); err != nil {
		t.Fatalf("first notification failed: %v", err)
	}
	if _, err := fixture.svc.HandleAlipayNotification(form); err != nil {
		t.Fatalf("duplicate notification must ack: %v", err)
	}

	updated, _ := fixture.userRepo.GetByID(user.ID)
	if updated.Balance != 5000 || updated.Points != 550 {
		t.Fatalf("expected single credit, got balance %d points %d", updated.Balance, updated.Points)
	}
}

func TestHandleAlipayNotificationRejectsBadSign(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "https://openapi.alipay.com/gateway.do")
	user := fixture.createUser(t, "badsign@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000012NTF003", 5000)

	form := buildAlipayNotifyForm(order.OrderNo, "tx-bad", "TRADE_SUCCESS", "50.00")
	form.Set("sign", base64.StdEncoding.EncodeToString([]byte("forged")))

	_, err := fixture.svc.HandleAlipayNotification(form)
	if !errors.Is(err, ErrPaymentNotificationInvalid) {
		t.Fatalf("expected notification invalid error, got: %v", err)
	}
	stored, _ := fixture.orderRepo.GetByOrderNo(order.OrderNo)
	if stored.Status != constants.OrderStatusPending {
		t.Fatalf("order must stay pending after bad sign, got %s", stored.Status)
	}
}

func TestHandleAlipayNotificationRejectsTamperedAmount(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "https://openapi.alipay.com/gateway.do")
	user := fixture.createUser(t, "tamper@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000013NTF004", 10000)

	// 签名有效但金额与订单不符
	form := buildAlipayNotifyForm(order.OrderNo, "tx-tamper", "TRADE_SUCCESS", "1.00")
	signAlipayNotifyForm(t, fixture.userKey, form)

	_, err := fixture.svc.HandleAlipayNotification(form)
	if !errors.Is(err, ErrPaymentAmountMismatch) {
		t.Fatalf("expected amount mismatch error, got: %v", err)
	}
	stored, _ := fixture.orderRepo.GetByOrderNo(order.OrderNo)
	if stored.Status != constants.OrderStatusPending {
		t.Fatalf("order must stay pending after mismatch, got %s", stored.Status)
	}
	updated, _ := fixture.userRepo.GetByID(user.ID)
	if updated.Balance != 0 {
		t.Fatalf("expected no credit after mismatch")
	}
}

func TestHandleAlipayNotificationToleratesOneCent(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "https://openapi.alipay.com/gateway.do")
	user := fixture.createUser(t, "tolerance@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000014NTF005", 10000)

	form := buildAlipayNotifyForm(order.OrderNo, "tx-tol", "TRADE_SUCCESS", "100.01")
	signAlipayNotifyForm(t, fixture.userKey, form)

	if _, err := fixture.svc.HandleAlipayNotification(form); err != nil {
		t.Fatalf("one cent difference must be tolerated: %v", err)
	}
	stored, _ := fixture.orderRepo.GetByOrderNo(order.OrderNo)
	if stored.Status != constants.OrderStatusPaid {
		t.Fatalf("expected paid status, got %s", stored.Status)
	}
	// 入账以订单金额为准
	updated, _ := fixture.userRepo.GetByID(user.ID)
	if updated.Balance != 10000 {
		t.Fatalf("expected order amount credited, got %d", updated.Balance)
	}
}

func TestHandleAlipayNotificationIgnoresWaitBuyerPay(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "https://openapi.alipay.com/gateway.do")
	user := fixture.createUser(t, "waitpay@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000015NTF006", 5000)

	form := buildAlipayNotifyForm(order.OrderNo, "tx-wait", "WAIT_BUYER_PAY", "50.00")
	signAlipayNotifyForm(t, fixture.userKey, form)

	if _, err := fixture.svc.HandleAlipayNotification(form); err != nil {
		t.Fatalf("wait buyer pay must ack without error: %v", err)
	}
	stored, _ := fixture.orderRepo.GetByOrderNo(order.OrderNo)
	if stored.Status != constants.OrderStatusPending {
		t.Fatalf("order must stay pending, got %s", stored.Status)
	}
}

func TestHandleAlipayNotificationLateAfterExpiry(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "https://openapi.alipay.com/gateway.do")
	user := fixture.createUser(t, "latenotify@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000016NTF007", 5000)

	if _, err := fixture.svc.FailExpiredOrder(order.OrderNo); err != nil {
		t.Fatalf("close order failed: %v", err)
	}

	form := buildAlipayNotifyForm(order.OrderNo, "tx-late-notify", "TRADE_SUCCESS", "50.00")
	signAlipayNotifyForm(t, fixture.userKey, form)

	// 终态订单确认通知但不入账
	if _, err := fixture.svc.HandleAlipayNotification(form); err != nil {
		t.Fatalf("late notification must ack: %v", err)
	}
	stored, _ := fixture.orderRepo.GetByOrderNo(order.OrderNo)
	if stored.Status != constants.OrderStatusFailed {
		t.Fatalf("expected failed status preserved, got %s", stored.Status)
	}
	updated, _ := fixture.userRepo.GetByID(user.ID)
	if updated.Balance != 0 || updated.Points != 0 {
		t.Fatalf("late notification must not credit")
	}
}

func TestHandleAlipayNotificationUnknownOrder(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "https://openapi.alipay.com/gateway.do")

	form := buildAlipayNotifyForm("PAY1700000000017NTF008", "tx-miss", "TRADE_SUCCESS", "50.00")
	signAlipayNotifyForm(t, fixture.userKey, form)

	_, err := fixture.svc.HandleAlipayNotification(form)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected order not found error, got: %v", err)
	}
}

func TestHandleWechatNotificationChannelNotConfigured(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "")
	_, err := fixture.svc.HandleWechatNotification(context.Background(), map[string]string{}, []byte("{}"))
	if !errors.Is(err, ErrPaymentChannelNotConfigured) {
		t.Fatalf("expected channel not configured error, got: %v", err)
	}
}
